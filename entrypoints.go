package sqlmodel

import (
	"context"
	"maps"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-json"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/validation"
)

// New creates an instance from input keyed by field name or alias.
//
// For classes that are not tables, invalid input is an error. Table
// instances tolerate it: the valid values are assigned, the issues are
// logged and kept on the instance, and relationship keys in data are
// assigned as relationships. With StrictTable only missing fields are
// tolerated.
func (m *Model) New(data map[string]any) (*Instance, error) {
	values, fieldsSet, issues := m.schema.ValidateModel(data)
	if issues.HasErrors() {
		if m.mapper == nil {
			return nil, issues
		}
		if flag(m.config.StrictTable) {
			if fatal := issues.Without(validation.CodeRequired); fatal.HasErrors() {
				return nil, fatal
			}
		}
		m.registry.log().Warn(context.Background(), "table instance created from invalid input",
			"model", m.name, "issues", issues.Error())
	}

	inst, err := m.construct(values, fieldsSet)
	if err != nil {
		return nil, err
	}
	if issues.HasErrors() {
		inst.issues = issues
	}
	if m.mapper != nil {
		for _, name := range m.Relationships() {
			v, ok := data[name]
			if !ok {
				continue
			}
			if err := inst.Set(name, v); err != nil {
				return nil, err
			}
		}
	}
	return inst, nil
}

// MustNew is New for input known to be valid.
func (m *Model) MustNew(data map[string]any) *Instance {
	inst, err := m.New(data)
	if err != nil {
		panic(err)
	}
	return inst
}

// construct assigns already validated values in field order, then extras.
func (m *Model) construct(values map[string]any, fieldsSet map[string]bool) (*Instance, error) {
	inst, err := m.Construct()
	if err != nil {
		return nil, err
	}
	for _, f := range m.schema.Fields() {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		if err := inst.set(f.Name, v, true); err != nil {
			return nil, err
		}
	}
	for k, v := range values {
		if m.schema.Field(k) == nil {
			inst.dict[k] = v
		}
	}
	inst.fieldsSet = fieldsSet
	return inst, nil
}

// Validate is the strict entry point: it always returns the validation
// error, table class or not.
//
// An instance of the class is returned as a copy (or as-is without
// CopyOnValidate). A map is validated as input. Any other object is read
// through FromORM when ReadFromAttributes is on.
func (m *Model) Validate(obj any) (*Instance, error) {
	switch v := obj.(type) {
	case *Instance:
		if v != nil && v.model == m {
			if !flag(m.config.CopyOnValidate) {
				return v, nil
			}
			return v.Copy(nil)
		}
	case map[string]any:
		return m.validateMap(v)
	}
	if flag(m.config.ReadFromAttributes) {
		return m.FromORM(obj, nil)
	}
	if data, err := cast.ToStringMapE(obj); err == nil {
		return m.validateMap(data)
	}
	issues := validation.NewErrors(m.name)
	issues.Add("__root__", validation.CodeInvalidType, "value is not a valid dict", nil)
	return nil, issues
}

func (m *Model) validateMap(data map[string]any) (*Instance, error) {
	values, fieldsSet, issues := m.schema.ValidateModel(data)
	if issues.HasErrors() {
		return nil, issues
	}
	inst, err := m.construct(values, fieldsSet)
	if err != nil {
		return nil, err
	}
	if m.mapper != nil {
		for _, name := range m.Relationships() {
			if v, ok := data[name]; ok {
				if err := inst.Set(name, v); err != nil {
					return nil, err
				}
			}
		}
	}
	return inst, nil
}

// ValidateNested lets the class be used as a field type.
func (m *Model) ValidateNested(v any) (any, error) {
	return m.Validate(v)
}

// FromORM builds a validated instance from the attributes of obj: another
// instance, a map, or a struct read through its json tags. update
// overrides keys before validation. Validation errors are always returned.
func (m *Model) FromORM(obj any, update map[string]any) (*Instance, error) {
	if !flag(m.config.ReadFromAttributes) {
		return nil, errs.Configf(m.name, "", "you must have the config attribute ReadFromAttributes=true to use FromORM")
	}
	data, err := m.attributes(obj)
	if err != nil {
		return nil, err
	}
	maps.Copy(data, update)
	values, fieldsSet, issues := m.schema.ValidateModel(data)
	if issues.HasErrors() {
		return nil, issues
	}
	return m.construct(values, fieldsSet)
}

func (m *Model) attributes(obj any) (map[string]any, error) {
	switch v := obj.(type) {
	case nil:
		return nil, m.rootError("value is not a valid dict")
	case map[string]any:
		return maps.Clone(v), nil
	case *Instance:
		data := make(map[string]any)
		for _, f := range m.schema.Fields() {
			if val, err := v.Get(f.Name); err == nil {
				data[f.Key()] = val
			}
		}
		return data, nil
	}
	rv := reflect.Indirect(reflect.ValueOf(obj))
	switch rv.Kind() {
	case reflect.Struct:
		return structAttributes(obj)
	case reflect.Map:
		data, err := cast.ToStringMapE(obj)
		if err != nil {
			return nil, m.rootError("value is not a valid dict")
		}
		return maps.Clone(data), nil
	}
	return nil, m.rootError("value is not a valid dict")
}

// structAttributes reads exported struct fields keyed by their json tag.
func structAttributes(obj any) (map[string]any, error) {
	data := make(map[string]any)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &data})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(obj); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "reading struct attributes", err)
	}
	return data, nil
}

func (m *Model) rootError(msg string) *validation.Errors {
	issues := validation.NewErrors(m.name)
	issues.Add("__root__", validation.CodeInvalidType, msg, nil)
	return issues
}

// ParseObj validates a map-like object through New, with update applied
// first.
func (m *Model) ParseObj(obj any, update map[string]any) (*Instance, error) {
	data, err := cast.ToStringMapE(obj)
	if err != nil {
		return nil, m.rootError("value is not a valid dict")
	}
	data = maps.Clone(data)
	maps.Copy(data, update)
	return m.New(data)
}

// ParseJSON decodes a JSON object and validates it through New.
func (m *Model) ParseJSON(b []byte) (*Instance, error) {
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		issues := validation.NewErrors(m.name)
		issues.Add("__root__", validation.CodeInvalidFormat, err.Error(), nil)
		return nil, issues
	}
	return m.New(data)
}

// ParseYAML decodes a YAML mapping and validates it through New.
func (m *Model) ParseYAML(b []byte) (*Instance, error) {
	var data map[string]any
	if err := yaml.Unmarshal(b, &data); err != nil {
		issues := validation.NewErrors(m.name)
		issues.Add("__root__", validation.CodeInvalidFormat, err.Error(), nil)
		return nil, issues
	}
	return m.New(data)
}

// JSONSchema describes the class as a JSON schema object.
func (m *Model) JSONSchema() map[string]any {
	return m.schema.JSONSchema()
}
