package sqlmodel

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/samber/lo"

	"github.com/nazmi/sqlmodel/logger"
	"github.com/nazmi/sqlmodel/mapping"
	"github.com/nazmi/sqlmodel/schema"
)

// Registry groups declared classes: a mapping registry and its MetaData for
// the table classes, and a class registry resolving forward references by
// name. Both hold classes weakly.
type Registry struct {
	mapping *mapping.Registry

	mu      sync.RWMutex
	classes map[string]weak.Pointer[Model]
	logger  logger.Interface
	naming  schema.Namer
	strict  bool
	dialect string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger of the registry and its mapping registry.
func WithLogger(l logger.Interface) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithNamer sets how table names are derived from class names.
func WithNamer(n schema.Namer) RegistryOption {
	return func(r *Registry) {
		if n != nil {
			r.naming = n
		}
	}
}

// WithStrictTable sets the default of ModelConfig.StrictTable.
func WithStrictTable(strict bool) RegistryOption {
	return func(r *Registry) { r.strict = strict }
}

// WithDialect names the dialect used by sessions when it cannot be inferred
// from the driver.
func WithDialect(name string) RegistryOption {
	return func(r *Registry) { r.dialect = name }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		classes: make(map[string]weak.Pointer[Model]),
		logger:  logger.Default,
		naming:  schema.DefaultNamer,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.mapping = mapping.NewRegistry(r.logger)
	return r
}

var defaultRegistry atomic.Pointer[Registry]

func init() {
	defaultRegistry.Store(NewRegistry())
}

// DefaultRegistry returns the registry used by classes declared without
// WithRegistry and without a base bound to one.
func DefaultRegistry() *Registry { return defaultRegistry.Load() }

// ResetDefaultRegistry installs a fresh default registry. Classes already
// declared stay bound to the previous one.
func ResetDefaultRegistry(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	defaultRegistry.Store(r)
	return r
}

// Mapping returns the mapping registry of the table classes.
func (r *Registry) Mapping() *mapping.Registry { return r.mapping }

// MetaData returns the tables of the live table classes.
func (r *Registry) MetaData() *mapping.MetaData { return r.mapping.MetaData }

// Configure resolves every pending relationship.
func (r *Registry) Configure() error { return r.mapping.Configure() }

// Model returns the live class declared under name.
func (r *Registry) Model(name string) *Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if wp, ok := r.classes[name]; ok {
		return wp.Value()
	}
	return nil
}

// Models returns the live classes sorted by name.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := lo.FilterMap(lo.Values(r.classes), func(wp weak.Pointer[Model], _ int) (*Model, bool) {
		m := wp.Value()
		return m, m != nil
	})
	slices.SortFunc(out, func(a, b *Model) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})
	return out
}

// Reset forgets every class and table. Classes already declared keep
// working as schemas but are no longer mapped.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.classes = make(map[string]weak.Pointer[Model])
	r.mu.Unlock()
	r.mapping.Reset()
	r.log().Info(context.Background(), "registry reset")
}

func (r *Registry) register(m *Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[m.name] = weak.Make(m)
	runtime.AddCleanup(m, r.prune, m.name)
}

func (r *Registry) prune(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.classes[name]; ok && wp.Value() == nil {
		delete(r.classes, name)
	}
}

// resolve serves forward references of validation schemas.
func (r *Registry) resolve(name string) schema.Modeler {
	if m := r.Model(name); m != nil {
		return m
	}
	return nil
}

func (r *Registry) log() logger.Interface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

func (r *Registry) namer() schema.Namer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.naming
}

func (r *Registry) strictTable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strict
}

func (r *Registry) setLogger(l logger.Interface) {
	r.mu.Lock()
	r.logger = l
	r.mu.Unlock()
	r.mapping.SetLogger(l)
}
