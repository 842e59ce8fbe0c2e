package validation

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jinzhu/now"
	"github.com/spf13/cast"

	"github.com/nazmi/sqlmodel/schema"
)

// Nested is a model usable as a field type. ValidateNested returns the
// validated value or an error, typically *Errors.
type Nested interface {
	schema.Modeler
	ValidateNested(value any) (any, error)
}

// Resolver finds a declared model by name for forward references.
type Resolver func(name string) schema.Modeler

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// coerce converts v to the Go representation of t, recording issues under
// path. The second result is false when the value must be dropped.
func (s *Schema) coerce(path string, t *schema.TypeSpec, v any, issues *Errors) (any, bool) {
	if v == nil {
		if t.Nullable || t.BaseType == schema.TypeAny && t.ArrayElement == nil {
			return nil, true
		}
		issues.Add(path, CodeNoneNotAllowed, "none is not an allowed value", nil)
		return nil, false
	}

	if t.ArrayElement != nil {
		return s.coerceList(path, t.ArrayElement, v, issues)
	}

	if t.BaseType == schema.TypeModel {
		return s.coerceModel(path, t, v, issues)
	}

	out, err := coerceScalar(t, v)
	if err != nil {
		code := CodeInvalidType
		if ce, ok := err.(*coerceError); ok {
			code = ce.code
		}
		issues.Add(path, code, err.Error(), map[string]any{"type": t.BaseType.String()})
		return nil, false
	}
	return out, true
}

func (s *Schema) coerceList(path string, elem *schema.TypeSpec, v any, issues *Errors) (any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		issues.Add(path, CodeInvalidType, "value is not a valid list", nil)
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		issues.Add(path, CodeInvalidType, "value is not a valid list", nil)
		return nil, false
	}

	out := make([]any, 0, rv.Len())
	ok := true
	for i := 0; i < rv.Len(); i++ {
		item, itemOK := s.coerce(joinPath(path, strconv.Itoa(i)), elem, rv.Index(i).Interface(), issues)
		if !itemOK {
			ok = false
			continue
		}
		out = append(out, item)
	}
	return out, ok
}

func (s *Schema) coerceModel(path string, t *schema.TypeSpec, v any, issues *Errors) (any, bool) {
	m := t.Model
	if m == nil && s.resolver != nil {
		m = s.resolver(t.Ref)
	}
	nested, ok := m.(Nested)
	if !ok {
		issues.Add(path, CodeInvalidType, fmt.Sprintf("model %q is not defined", t.ModelName()), nil)
		return nil, false
	}
	out, err := nested.ValidateNested(v)
	if err != nil {
		if ve, isVE := AsErrors(err); isVE {
			issues.Merge(path, ve)
		} else {
			issues.Add(path, CodeInvalidType, err.Error(), nil)
		}
		return nil, false
	}
	return out, true
}

type coerceError struct {
	code string
	msg  string
}

func (e *coerceError) Error() string { return e.msg }

func typeErr(msg string) error { return &coerceError{code: CodeInvalidType, msg: msg} }

func formatErr(msg string) error { return &coerceError{code: CodeInvalidFormat, msg: msg} }

func coerceScalar(t *schema.TypeSpec, v any) (any, error) {
	switch t.BaseType {
	case schema.TypeString, schema.TypeText:
		return toString(v)
	case schema.TypeInt, schema.TypeBigInt:
		return toInt(v)
	case schema.TypeFloat, schema.TypeDecimal:
		return toFloat(v)
	case schema.TypeBool:
		return toBool(v)
	case schema.TypeTimestamp:
		return toTimestamp(v)
	case schema.TypeDate:
		return toDate(v)
	case schema.TypeTime:
		return toTimeOfDay(v)
	case schema.TypeDuration:
		return toDuration(v)
	case schema.TypeUUID:
		return toUUID(v)
	case schema.TypeEmail:
		return toEmail(v)
	case schema.TypeURL:
		return toURL(v)
	case schema.TypeJSON:
		return toJSON(v)
	case schema.TypeBytes:
		return toBytes(v)
	case schema.TypeEnum:
		return toEnum(t.EnumValues, v)
	case schema.TypeAny:
		return v, nil
	}
	return nil, typeErr(fmt.Sprintf("unsupported type %s", t.BaseType))
}

func toString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	case bool:
		return nil, typeErr("str type expected")
	}
	if isNumber(v) {
		return cast.ToStringE(v)
	}
	return nil, typeErr("str type expected")
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return nil, typeErr("value is not a valid integer")
	case float32:
		return intFromFloat(float64(x))
	case float64:
		return intFromFloat(x)
	case json.Number:
		return intFromString(x.String())
	case string:
		return intFromString(x)
	}
	if isNumber(v) {
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil, typeErr("value is not a valid integer")
		}
		return n, nil
	}
	return nil, typeErr("value is not a valid integer")
}

func intFromFloat(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, typeErr("value is not a valid integer")
	}
	return int64(f), nil
}

func intFromString(s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, typeErr("value is not a valid integer")
	}
	return n, nil
}

func toFloat(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return nil, typeErr("value is not a valid float")
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, typeErr("value is not a valid float")
		}
		return f, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, typeErr("value is not a valid float")
		}
		return f, nil
	}
	if isNumber(v) {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, typeErr("value is not a valid float")
		}
		return f, nil
	}
	return nil, typeErr("value is not a valid float")
}

func toBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "on", "t", "true", "y", "yes":
			return true, nil
		case "0", "off", "f", "false", "n", "no":
			return false, nil
		}
		return nil, typeErr("value could not be parsed to a boolean")
	}
	if isNumber(v) {
		f, err := cast.ToFloat64E(v)
		if err == nil && (f == 0 || f == 1) {
			return f == 1, nil
		}
	}
	return nil, typeErr("value could not be parsed to a boolean")
}

func toTimestamp(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x != nil {
			return *x, nil
		}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return ts, nil
		}
		ts, err := now.Parse(x)
		if err != nil {
			return nil, formatErr("invalid datetime format")
		}
		return ts, nil
	}
	if isNumber(v) {
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, typeErr("invalid datetime format")
		}
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	}
	return nil, typeErr("invalid datetime format")
}

func toDate(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		y, m, d := x.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case string:
		d, err := time.Parse(dateLayout, x)
		if err != nil {
			return nil, formatErr("invalid date format")
		}
		return d, nil
	}
	return nil, typeErr("invalid date format")
}

func toTimeOfDay(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return time.Date(0, 1, 1, x.Hour(), x.Minute(), x.Second(), x.Nanosecond(), time.UTC), nil
	case string:
		for _, layout := range []string{timeLayout, "15:04", "15:04:05.999999999"} {
			if tt, err := time.Parse(layout, x); err == nil {
				return tt, nil
			}
		}
		return nil, formatErr("invalid time format")
	}
	return nil, typeErr("invalid time format")
}

func toDuration(v any) (any, error) {
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case string:
		d, err := time.ParseDuration(x)
		if err != nil {
			return nil, formatErr("invalid duration format")
		}
		return d, nil
	}
	if isNumber(v) {
		secs, err := cast.ToFloat64E(v)
		if err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
	}
	return nil, typeErr("invalid duration format")
}

func toUUID(v any) (any, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case string:
		id, err := uuid.Parse(x)
		if err != nil {
			return nil, formatErr("value is not a valid uuid")
		}
		return id, nil
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		id, err := uuid.ParseBytes(x)
		if err != nil {
			return nil, formatErr("value is not a valid uuid")
		}
		return id, nil
	}
	return nil, typeErr("value is not a valid uuid")
}

func toEmail(v any) (any, error) {
	str, ok := v.(string)
	if !ok {
		return nil, typeErr("str type expected")
	}
	if strings.TrimSpace(str) == "" {
		return nil, formatErr("email address cannot be empty")
	}
	addr, err := mail.ParseAddress(str)
	if err != nil || addr.Address != str {
		return nil, formatErr("value is not a valid email address")
	}
	return str, nil
}

func toURL(v any) (any, error) {
	str, ok := v.(string)
	if !ok {
		return nil, typeErr("str type expected")
	}
	parsed, err := url.Parse(str)
	if err != nil {
		return nil, formatErr("invalid or missing URL scheme")
	}
	if parsed.Scheme == "" {
		return nil, formatErr("invalid or missing URL scheme")
	}
	if parsed.Host == "" {
		return nil, formatErr("URL host invalid")
	}
	return str, nil
}

func toJSON(v any) (any, error) {
	var raw []byte
	switch x := v.(type) {
	case json.RawMessage:
		raw = x
	case []byte:
		raw = x
	default:
		return v, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, formatErr("invalid JSON")
	}
	return out, nil
}

func toBytes(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, typeErr("byte type expected")
}

func toEnum(values []string, v any) (any, error) {
	str, ok := v.(string)
	if !ok {
		if s, isStringer := v.(fmt.Stringer); isStringer {
			str, ok = s.String(), true
		}
	}
	if ok {
		for _, allowed := range values {
			if str == allowed {
				return str, nil
			}
		}
	}
	return nil, &coerceError{
		code: CodeInvalidEnum,
		msg:  fmt.Sprintf("value is not a valid enumeration member; permitted: %s", quoteAll(values)),
	}
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}
