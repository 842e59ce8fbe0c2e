package sqlmodel

import (
	"bytes"
	"slices"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/nazmi/sqlmodel/validation"
)

// DumpOptions selects the keys of a dump.
type DumpOptions struct {
	// Include restricts the dump to these names. Relationships are dumped
	// only when named here.
	Include []string
	Exclude []string
	// ByAlias keys the output by field alias.
	ByAlias         bool
	ExcludeUnset    bool
	ExcludeDefaults bool
	ExcludeNone     bool
}

// Dump returns the field values as a map. Bookkeeping keys are never part
// of it, and relationships only when explicitly included.
func (i *Instance) Dump(opts DumpOptions) map[string]any {
	out := make(map[string]any)
	for _, e := range i.entries(opts) {
		out[e.key] = e.value
	}
	return out
}

// DumpJSON encodes Dump, keeping the declaration order of the fields.
func (i *Instance) DumpJSON(opts DumpOptions) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for n, e := range i.entries(opts) {
		if n > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type entry struct {
	key   string
	value any
}

func (i *Instance) entries(opts DumpOptions) []entry {
	keys := i.keys(opts)
	var out []entry
	for _, f := range i.model.schema.Fields() {
		if !keys[f.Name] {
			continue
		}
		v, ok := i.dict[f.Name]
		if !ok {
			if i.state != nil {
				v = nil
			} else {
				v = f.Default()
			}
		}
		if opts.ExcludeNone && v == nil {
			continue
		}
		if opts.ExcludeDefaults && isDefault(f, v) {
			continue
		}
		key := f.Name
		if opts.ByAlias {
			key = f.Key()
		}
		out = append(out, entry{key, dumpValue(v)})
	}
	extras := lo.Keys(i.dict)
	slices.Sort(extras)
	for _, k := range extras {
		if i.model.schema.Field(k) != nil || !keys[k] {
			continue
		}
		v := i.dict[k]
		if opts.ExcludeNone && v == nil {
			continue
		}
		out = append(out, entry{k, dumpValue(v)})
	}
	if i.state != nil {
		for _, name := range i.model.Relationships() {
			if !slices.Contains(opts.Include, name) || slices.Contains(opts.Exclude, name) {
				continue
			}
			rel := i.related(name)
			if rel == nil && opts.ExcludeNone {
				continue
			}
			out = append(out, entry{name, dumpValue(rel)})
		}
	}
	return out
}

// keys computes the names taking part in a dump. Fields flagged Exclude
// never do; fields flagged Include survive an explicit include set.
func (i *Instance) keys(opts DumpOptions) map[string]bool {
	keys := make(map[string]bool)
	switch {
	case opts.ExcludeUnset:
		for k := range i.fieldsSet {
			keys[k] = true
		}
	default:
		for _, n := range i.model.schema.Names() {
			keys[n] = true
		}
		for k := range i.dict {
			keys[k] = true
		}
	}
	if opts.Include != nil {
		for k := range keys {
			f := i.model.schema.Field(k)
			if !slices.Contains(opts.Include, k) && (f == nil || !f.Info.Include) {
				delete(keys, k)
			}
		}
	}
	for _, k := range opts.Exclude {
		delete(keys, k)
	}
	for _, f := range i.model.schema.Fields() {
		if f.Info.Exclude {
			delete(keys, f.Name)
		}
	}
	return keys
}

func isDefault(f *validation.Field, v any) bool {
	if !f.Info.HasDefault() {
		return false
	}
	d := f.Default()
	db, err1 := json.Marshal(d)
	vb, err2 := json.Marshal(v)
	return err1 == nil && err2 == nil && bytes.Equal(db, vb)
}

func dumpValue(v any) any {
	switch v := v.(type) {
	case *Instance:
		if v == nil {
			return nil
		}
		return v.Dump(DumpOptions{})
	case []*Instance:
		out := make([]any, len(v))
		for n, inst := range v {
			out[n] = inst.Dump(DumpOptions{})
		}
		return out
	case []any:
		out := make([]any, len(v))
		for n, item := range v {
			out[n] = dumpValue(item)
		}
		return out
	}
	return v
}
