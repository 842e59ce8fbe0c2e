package tracking

import (
	"reflect"
	"sync"
	"testing"
)

func TestNewChangeTracker(t *testing.T) {
	ct := NewChangeTracker(map[string]any{"id": int64(1), "name": "Deadpond"})

	if ct.HasChanges() {
		t.Fatal("fresh tracker should have no changes")
	}
	if got := ct.CurrentValue("name"); got != "Deadpond" {
		t.Errorf("CurrentValue(name) = %v, want Deadpond", got)
	}
}

func TestChangeTracker_Set(t *testing.T) {
	tests := []struct {
		name      string
		committed map[string]any
		field     string
		value     any
		want      bool
		added     bool
	}{
		{"unchanged value", map[string]any{"name": "a"}, "name", "a", false, false},
		{"changed value", map[string]any{"name": "a"}, "name", "b", true, false},
		{"new field", nil, "name", "a", true, true},
		{"nil to value", map[string]any{"age": nil}, "age", int64(3), true, false},
		{"value to nil", map[string]any{"age": int64(3)}, "age", nil, true, false},
		{"equal slices", map[string]any{"tags": []any{"x"}}, "tags", []any{"x"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := NewChangeTracker(tt.committed)
			ct.Set(tt.field, tt.value)

			if got := ct.Changed(tt.field); got != tt.want {
				t.Errorf("Changed(%q) = %v, want %v", tt.field, got, tt.want)
			}
			if tt.want {
				if change := ct.GetChange(tt.field); change.Added != tt.added {
					t.Errorf("Added = %v, want %v", change.Added, tt.added)
				}
			}
		})
	}
}

func TestChangeTracker_SetBackToCommitted(t *testing.T) {
	ct := NewChangeTracker(map[string]any{"name": "a"})
	ct.Set("name", "b")
	ct.Set("name", "a")

	if ct.Changed("name") {
		t.Error("writing the committed value back should clear the change")
	}
}

func TestChangeTracker_LoadAndCommit(t *testing.T) {
	ct := NewChangeTracker(nil)
	ct.Set("name", "Deadpond")
	ct.Load("id", int64(7))

	if ct.Changed("id") {
		t.Error("loaded values are committed, not changes")
	}
	if !ct.ChangedTo("name", "Deadpond") {
		t.Error("expected name to be changed to Deadpond")
	}

	ct.Commit()
	if ct.HasChanges() {
		t.Error("Commit should clear changes")
	}
	if got := ct.PreviousValue("name"); got != "Deadpond" {
		t.Errorf("PreviousValue(name) = %v after commit", got)
	}
}

func TestChangeTracker_Revert(t *testing.T) {
	ct := NewChangeTracker(map[string]any{"name": "a"})
	ct.Set("name", "b")
	ct.Revert("name", "a", true)
	if ct.Changed("name") {
		t.Error("revert to committed value should clear the change")
	}

	ct.Set("age", int64(1))
	ct.Revert("age", nil, false)
	if ct.Changed("age") {
		t.Error("revert of a new field should clear the change")
	}
}

func TestChangeTracker_MutationAfterSetIsIsolated(t *testing.T) {
	ct := NewChangeTracker(nil)
	tags := []any{"a"}
	ct.Set("tags", tags)
	ct.Commit()

	tags[0] = "b"
	ct.Set("tags", tags)
	if !ct.ChangedFrom("tags", []any{"a"}) {
		t.Error("in-place mutation should be detected against the committed copy")
	}
}

func TestChangeTracker_ChangedFieldsAndData(t *testing.T) {
	ct := NewChangeTracker(map[string]any{"a": 1, "b": 2})
	ct.Set("b", 3)
	ct.Set("c", 4)

	if got := ct.ChangedFields(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("ChangedFields() = %v", got)
	}
	want := map[string]any{"b": 3, "c": 4}
	if got := ct.GetChangedData(); !reflect.DeepEqual(got, want) {
		t.Errorf("GetChangedData() = %v, want %v", got, want)
	}
}

func TestChangeTracker_Concurrent(t *testing.T) {
	ct := NewChangeTracker(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ct.Set("n", i)
			_ = ct.Changed("n")
			_ = ct.GetChangedData()
		}(i)
	}
	wg.Wait()

	if !ct.Changed("n") {
		t.Error("expected n to be changed")
	}
}
