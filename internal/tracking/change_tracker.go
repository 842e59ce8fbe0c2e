// Package tracking records attribute history for mapped instances.
// It is the bookkeeping behind dirty checking: which column attributes were
// written since the last flush, and what their committed values were.
package tracking

import (
	"reflect"
	"sort"
	"sync"

	"github.com/mitchellh/copystructure"
)

// FieldChange represents a pending change to a single attribute.
type FieldChange struct {
	Field    string
	OldValue any
	NewValue any
	// Added is true when the attribute had no committed value.
	Added bool
}

// ChangeTracker tracks attribute writes against a committed snapshot.
type ChangeTracker struct {
	mu        sync.RWMutex
	committed map[string]any
	current   map[string]any
	changes   map[string]*FieldChange
}

// NewChangeTracker creates a tracker whose committed state is original.
// Passing nil starts from an empty, transient state.
func NewChangeTracker(original map[string]any) *ChangeTracker {
	ct := &ChangeTracker{
		committed: snapshot(original),
		current:   snapshot(original),
		changes:   make(map[string]*FieldChange),
	}
	return ct
}

func snapshot(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies maps and slices so later in-place mutation of a value
// is still seen as a change. Values copystructure cannot handle are kept as-is.
func copyValue(v any) any {
	if v == nil {
		return nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice:
		c, err := copystructure.Copy(v)
		if err != nil {
			return v
		}
		return c
	default:
		return v
	}
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

// Set records a write. Writing the committed value back clears the change.
func (ct *ChangeTracker) Set(field string, value any) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.current[field] = copyValue(value)

	old, had := ct.committed[field]
	if had && equal(old, value) {
		delete(ct.changes, field)
		return
	}
	ct.changes[field] = &FieldChange{
		Field:    field,
		OldValue: old,
		NewValue: value,
		Added:    !had,
	}
}

// Load records a value as committed, without producing a change. Used when a
// value arrives from storage (row loads, generated primary keys).
func (ct *ChangeTracker) Load(field string, value any) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.committed[field] = copyValue(value)
	ct.current[field] = copyValue(value)
	delete(ct.changes, field)
}

// Revert restores a field to the state it had before the last Set: value
// when present is true, absent otherwise.
func (ct *ChangeTracker) Revert(field string, value any, present bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if !present {
		delete(ct.current, field)
	} else {
		ct.current[field] = copyValue(value)
	}

	old, had := ct.committed[field]
	switch {
	case !present && !had:
		delete(ct.changes, field)
	case present && had && equal(old, value):
		delete(ct.changes, field)
	default:
		ct.changes[field] = &FieldChange{Field: field, OldValue: old, NewValue: value, Added: !had}
	}
}

// Changed returns true if the specified field has a pending change.
func (ct *ChangeTracker) Changed(field string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.changes[field]
	return ok
}

// ChangedFields returns the names of all changed fields, sorted.
func (ct *ChangeTracker) ChangedFields() []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	fields := make([]string, 0, len(ct.changes))
	for field := range ct.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// PreviousValue returns the committed value of a field.
func (ct *ChangeTracker) PreviousValue(field string) any {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.committed[field]
}

// CurrentValue returns the last value written for a field.
func (ct *ChangeTracker) CurrentValue(field string) any {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.current[field]
}

// GetChange returns the FieldChange for a field, or nil if unchanged.
func (ct *ChangeTracker) GetChange(field string) *FieldChange {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.changes[field]
}

// HasChanges returns true if any field has a pending change.
func (ct *ChangeTracker) HasChanges() bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.changes) > 0
}

// ChangedTo returns true if the field changed to the given value.
func (ct *ChangeTracker) ChangedTo(field string, value any) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	change, ok := ct.changes[field]
	return ok && equal(change.NewValue, value)
}

// ChangedFrom returns true if the field changed away from the given value.
func (ct *ChangeTracker) ChangedFrom(field string, value any) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	change, ok := ct.changes[field]
	return ok && equal(change.OldValue, value)
}

// Commit makes the current state the committed one.
// Called after a successful flush.
func (ct *ChangeTracker) Commit() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.committed = snapshot(ct.current)
	ct.changes = make(map[string]*FieldChange)
}

// GetChangedData returns only the changed fields with their new values.
// This is what an UPDATE statement needs.
func (ct *ChangeTracker) GetChangedData() map[string]any {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make(map[string]any, len(ct.changes))
	for field, change := range ct.changes {
		result[field] = change.NewValue
	}
	return result
}
