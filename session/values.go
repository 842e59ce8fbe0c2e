package session

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/nazmi/sqlmodel/ddl"
	"github.com/nazmi/sqlmodel/mapping"
)

// encodeValue converts an attribute value to a driver argument for col.
func encodeValue(d ddl.Dialect, col *mapping.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type.Kind {
	case mapping.KindJSON:
		switch v.(type) {
		case []byte, json.RawMessage:
			return v, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s as JSON: %w", col.FullName(), err)
		}
		return string(data), nil
	case mapping.KindUUID:
		if id, ok := v.(uuid.UUID); ok {
			return id.String(), nil
		}
	case mapping.KindInterval:
		if dur, ok := v.(time.Duration); ok && d.Name() != ddl.Postgres {
			return int64(dur), nil
		}
	}
	return v, nil
}

// decodeValue converts a scanned column value to the attribute
// representation used by validated instances.
func decodeValue(col *mapping.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok && col.Type.Kind != mapping.KindLargeBinary && col.Type.Kind != mapping.KindJSON {
		v = string(b)
	}
	switch col.Type.Kind {
	case mapping.KindInteger, mapping.KindBigInteger:
		return cast.ToInt64E(v)
	case mapping.KindFloat, mapping.KindNumeric:
		return cast.ToFloat64E(v)
	case mapping.KindBoolean:
		return cast.ToBoolE(v)
	case mapping.KindString, mapping.KindText, mapping.KindEnum:
		return cast.ToStringE(v)
	case mapping.KindDateTime, mapping.KindDate, mapping.KindTime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		return cast.ToTimeE(v)
	case mapping.KindInterval:
		if dur, ok := v.(time.Duration); ok {
			return dur, nil
		}
		return cast.ToDurationE(v)
	case mapping.KindUUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case [16]byte:
			return uuid.UUID(x), nil
		}
		return uuid.Parse(cast.ToString(v))
	case mapping.KindJSON:
		var raw []byte
		switch x := v.(type) {
		case []byte:
			raw = x
		case string:
			raw = []byte(x)
		default:
			return v, nil
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decoding %s as JSON: %w", col.FullName(), err)
		}
		return out, nil
	}
	return v, nil
}
