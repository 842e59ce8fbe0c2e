package mapping

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"weak"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/logger"
)

// Registry owns a MetaData and the mappers registered against it.
//
// Mappers are held weakly: a registry never keeps a class alive. When a
// mapper is collected its entries are pruned and its table leaves the
// MetaData, so the same table name can be declared again.
type Registry struct {
	MetaData *MetaData

	mu         sync.Mutex
	classes    map[string]weak.Pointer[Mapper]
	tables     map[string]weak.Pointer[Mapper]
	configured bool
	logger     logger.Interface
}

// NewRegistry creates a registry with an empty MetaData.
func NewRegistry(log logger.Interface) *Registry {
	if log == nil {
		log = logger.Default
	}
	return &Registry{
		MetaData: NewMetaData(),
		classes:  make(map[string]weak.Pointer[Mapper]),
		tables:   make(map[string]weak.Pointer[Mapper]),
		logger:   log,
	}
}

// SetLogger replaces the registry logger.
func (r *Registry) SetLogger(log logger.Interface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = log
}

type registration struct {
	class string
	table *Table
}

// Map registers m and adds its table to the MetaData.
//
// A table name held by a live mapper is a configuration error. A name whose
// previous mapper was collected is taken over.
func (r *Registry) Map(m *Mapper) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := m.Table.Name
	if wp, exists := r.tables[name]; exists {
		switch live := wp.Value(); {
		case live == nil:
			r.logger.Warn(context.Background(), "replacing table of a collected class", "table", name, "class", m.ClassName)
		case live != m:
			return errs.Configf(m.ClassName, "",
				"table %q is already defined for this MetaData instance (mapped by %s)", name, live.ClassName)
		}
	}
	if wp, exists := r.classes[m.ClassName]; exists {
		if live := wp.Value(); live != nil && live != m {
			r.logger.Warn(context.Background(), "class name registered twice, the newest declaration wins for string lookups",
				"class", m.ClassName)
		}
	}

	r.MetaData.Replace(m.Table)
	r.classes[m.ClassName] = weak.Make(m)
	r.tables[name] = weak.Make(m)
	m.registry = r
	r.configured = false

	runtime.AddCleanup(m, r.prune, registration{class: m.ClassName, table: m.Table})
	return nil
}

func (r *Registry) prune(reg registration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wp, ok := r.classes[reg.class]; ok && wp.Value() == nil {
		delete(r.classes, reg.class)
	}
	if wp, ok := r.tables[reg.table.Name]; ok && wp.Value() == nil {
		delete(r.tables, reg.table.Name)
	}
	r.MetaData.Remove(reg.table)
}

// Mapper returns the live mapper registered under a class name.
func (r *Registry) Mapper(className string) *Mapper {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.classes[className]; ok {
		return wp.Value()
	}
	return nil
}

// MapperForTable returns the live mapper of a table name.
func (r *Registry) MapperForTable(table string) *Mapper {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.tables[table]; ok {
		return wp.Value()
	}
	return nil
}

// Mappers returns the live mappers sorted by class name.
func (r *Registry) Mappers() []*Mapper {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveMappers()
}

func (r *Registry) liveMappers() []*Mapper {
	out := make([]*Mapper, 0, len(r.tables))
	for _, wp := range r.tables {
		if m := wp.Value(); m != nil {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out
}

func (r *Registry) markUnconfigured() {
	r.mu.Lock()
	r.configured = false
	r.mu.Unlock()
}

// Configure resolves relationship targets, join conditions and
// back_populates for every live mapper. It is a no-op once everything is
// configured.
func (r *Registry) Configure() error {
	r.mu.Lock()
	if r.configured {
		r.mu.Unlock()
		return nil
	}
	mappers := r.liveMappers()
	r.mu.Unlock()

	for _, m := range mappers {
		for _, p := range m.relationships {
			if p.resolved {
				continue
			}
			if err := p.resolveTarget(r); err != nil {
				return err
			}
		}
	}
	for _, m := range mappers {
		if err := m.configure(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.configured = true
	r.mu.Unlock()
	return nil
}

// Reset forgets every mapper and clears the MetaData.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, wp := range r.tables {
		if m := wp.Value(); m != nil {
			m.registry = nil
		}
	}
	r.classes = make(map[string]weak.Pointer[Mapper])
	r.tables = make(map[string]weak.Pointer[Mapper])
	r.MetaData.Clear()
	r.configured = false
}
