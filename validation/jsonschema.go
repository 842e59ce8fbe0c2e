package validation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nazmi/sqlmodel/schema"
)

// Definer is a nested model that can describe itself as a JSON schema.
type Definer interface {
	schema.Modeler
	JSONSchema() map[string]any
}

// FieldTitle returns the title of a field: the explicit Title, else the
// name with underscores as spaces in title case.
func FieldTitle(f *Field) string {
	if f.Info.Title != "" {
		return f.Info.Title
	}
	return cases.Title(language.English).String(strings.ReplaceAll(f.Name, "_", " "))
}

// JSONSchema describes the schema as a JSON schema object.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.fields))
	definitions := make(map[string]any)
	var required []string

	for _, f := range s.fields {
		prop := s.typeSchema(f.Type, definitions)
		prop["title"] = FieldTitle(f)
		if f.Info.Description != "" {
			prop["description"] = f.Info.Description
		}
		if f.Info.IsSet("default") && f.Info.Default != nil {
			prop["default"] = f.Info.Default
		}
		if f.Info.Const {
			prop["const"] = f.Info.Default
		}
		addConstraints(prop, f.Info)
		for k, v := range f.Info.SchemaExtra {
			prop[k] = v
		}
		props[f.Key()] = prop
		if f.Required {
			required = append(required, f.Key())
		}
	}

	out := map[string]any{
		"title":      s.Name,
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	if len(definitions) > 0 {
		out["definitions"] = definitions
	}
	if s.Config.Extra == ExtraForbid {
		out["additionalProperties"] = false
	}
	return out
}

func (s *Schema) typeSchema(t *schema.TypeSpec, definitions map[string]any) map[string]any {
	if t.ArrayElement != nil {
		return map[string]any{"type": "array", "items": s.typeSchema(t.ArrayElement, definitions)}
	}

	switch t.BaseType {
	case schema.TypeString, schema.TypeText:
		return map[string]any{"type": "string"}
	case schema.TypeInt, schema.TypeBigInt:
		return map[string]any{"type": "integer"}
	case schema.TypeFloat, schema.TypeDecimal:
		return map[string]any{"type": "number"}
	case schema.TypeBool:
		return map[string]any{"type": "boolean"}
	case schema.TypeTimestamp:
		return map[string]any{"type": "string", "format": "date-time"}
	case schema.TypeDate:
		return map[string]any{"type": "string", "format": "date"}
	case schema.TypeTime:
		return map[string]any{"type": "string", "format": "time"}
	case schema.TypeDuration:
		return map[string]any{"type": "number", "format": "time-delta"}
	case schema.TypeUUID:
		return map[string]any{"type": "string", "format": "uuid"}
	case schema.TypeEmail:
		return map[string]any{"type": "string", "format": "email"}
	case schema.TypeURL:
		return map[string]any{"type": "string", "format": "uri", "minLength": 1}
	case schema.TypeBytes:
		return map[string]any{"type": "string", "format": "binary"}
	case schema.TypeEnum:
		return map[string]any{"type": "string", "enum": append([]string(nil), t.EnumValues...)}
	case schema.TypeModel:
		name := t.ModelName()
		m := t.Model
		if m == nil && s.resolver != nil {
			m = s.resolver(name)
		}
		if d, ok := m.(Definer); ok {
			if _, done := definitions[name]; !done {
				definitions[name] = d.JSONSchema()
			}
		}
		return map[string]any{"$ref": "#/definitions/" + name}
	}
	return map[string]any{}
}

func addConstraints(prop map[string]any, info *schema.FieldInfo) {
	if info.Gt != nil {
		prop["exclusiveMinimum"] = *info.Gt
	}
	if info.Ge != nil {
		prop["minimum"] = *info.Ge
	}
	if info.Lt != nil {
		prop["exclusiveMaximum"] = *info.Lt
	}
	if info.Le != nil {
		prop["maximum"] = *info.Le
	}
	if info.MultipleOf != nil {
		prop["multipleOf"] = *info.MultipleOf
	}
	if info.MinLength != nil {
		prop["minLength"] = *info.MinLength
	}
	if info.MaxLength != nil {
		prop["maxLength"] = *info.MaxLength
	}
	if info.Regex != "" {
		prop["pattern"] = info.Regex
	}
	if info.MinItems != nil {
		prop["minItems"] = *info.MinItems
	}
	if info.MaxItems != nil {
		prop["maxItems"] = *info.MaxItems
	}
	if info.UniqueItems {
		prop["uniqueItems"] = true
	}
}
