package mapping

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nazmi/sqlmodel/internal/errs"
)

// MetaData owns a set of tables keyed by name.
type MetaData struct {
	mu     sync.RWMutex
	tables map[string]*Table
	order  []string
}

// NewMetaData creates an empty MetaData.
func NewMetaData() *MetaData {
	return &MetaData{tables: make(map[string]*Table)}
}

// Add registers a table. Names are unique within a MetaData.
func (m *MetaData) Add(t *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tables[t.Name]; exists {
		return errs.Newf(errs.KindConfiguration, "table %q is already defined for this MetaData instance", t.Name)
	}
	m.tables[t.Name] = t
	m.order = append(m.order, t.Name)
	t.metadata = m
	return nil
}

// Replace registers a table, dropping any previous table of the same name.
func (m *MetaData) Replace(t *Table) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, exists := m.tables[t.Name]; exists {
		old.metadata = nil
	} else {
		m.order = append(m.order, t.Name)
	}
	m.tables[t.Name] = t
	t.metadata = m
}

// Remove drops the named table when it is exactly t.
func (m *MetaData) Remove(t *Table) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tables[t.Name] != t {
		return false
	}
	delete(m.tables, t.Name)
	for i, name := range m.order {
		if name == t.Name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	t.metadata = nil
	return true
}

// Table looks up a table by name.
func (m *MetaData) Table(name string) *Table {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables[name]
}

// Tables returns tables in the order they were added.
func (m *MetaData) Tables() []*Table {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Table, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.tables[name])
	}
	return out
}

// Clear removes every table.
func (m *MetaData) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tables {
		t.metadata = nil
	}
	m.tables = make(map[string]*Table)
	m.order = nil
}

// SortedTables returns tables with referenced tables before the tables that
// reference them. Ties keep declaration order. Self references are ignored.
func (m *MetaData) SortedTables() ([]*Table, error) {
	tables := m.Tables()
	index := make(map[string]int, len(tables))
	for i, t := range tables {
		index[t.Name] = i
	}

	// deps[t] = tables t references
	deps := make(map[string]map[string]bool, len(tables))
	dependents := make(map[string][]string)
	for _, t := range tables {
		deps[t.Name] = make(map[string]bool)
		for _, fk := range t.ForeignKeys() {
			target := fk.TargetTable()
			if target == t.Name {
				continue
			}
			if _, known := index[target]; !known {
				continue
			}
			if !deps[t.Name][target] {
				deps[t.Name][target] = true
				dependents[target] = append(dependents[target], t.Name)
			}
		}
	}

	var ready []string
	for _, t := range tables {
		if len(deps[t.Name]) == 0 {
			ready = append(ready, t.Name)
		}
	}

	result := make([]*Table, 0, len(tables))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return index[ready[i]] < index[ready[j]] })
		name := ready[0]
		ready = ready[1:]
		result = append(result, tables[index[name]])

		for _, dependent := range dependents[name] {
			delete(deps[dependent], name)
			if len(deps[dependent]) == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(result) != len(tables) {
		var cycle []string
		for _, t := range tables {
			if len(deps[t.Name]) > 0 {
				cycle = append(cycle, t.Name)
			}
		}
		return nil, fmt.Errorf("circular foreign key dependency between tables: %s", strings.Join(cycle, ", "))
	}
	return result, nil
}
