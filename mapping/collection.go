package mapping

import "slices"

// Collection holds the related states of one relationship attribute along
// with the membership history since the last commit. Scalar relationships
// use a collection of at most one member.
type Collection struct {
	items   []*InstanceState
	added   []*InstanceState
	removed []*InstanceState
	loaded  bool
}

// Items returns the members in insertion order.
func (c *Collection) Items() []*InstanceState {
	return slices.Clone(c.items)
}

// Len returns the member count.
func (c *Collection) Len() int { return len(c.items) }

// Contains reports membership.
func (c *Collection) Contains(s *InstanceState) bool {
	return slices.Contains(c.items, s)
}

// First returns the first member or nil.
func (c *Collection) First() *InstanceState {
	if len(c.items) == 0 {
		return nil
	}
	return c.items[0]
}

// Added returns members appended since the last commit.
func (c *Collection) Added() []*InstanceState { return slices.Clone(c.added) }

// Removed returns members removed since the last commit.
func (c *Collection) Removed() []*InstanceState { return slices.Clone(c.removed) }

// Loaded reports whether the collection was populated from storage.
func (c *Collection) Loaded() bool { return c.loaded }

func (c *Collection) append(s *InstanceState) {
	c.items = append(c.items, s)
	if i := slices.Index(c.removed, s); i >= 0 {
		c.removed = slices.Delete(c.removed, i, i+1)
		return
	}
	c.added = append(c.added, s)
}

func (c *Collection) remove(s *InstanceState) bool {
	i := slices.Index(c.items, s)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	if j := slices.Index(c.added, s); j >= 0 {
		c.added = slices.Delete(c.added, j, j+1)
		return true
	}
	c.removed = append(c.removed, s)
	return true
}

// reorder puts members in the order of want, keeping any member not in want
// at the end.
func (c *Collection) reorder(want []*InstanceState) {
	out := make([]*InstanceState, 0, len(c.items))
	for _, s := range want {
		if c.Contains(s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	for _, s := range c.items {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	c.items = out
}

func (c *Collection) load(items []*InstanceState) {
	c.items = slices.Clone(items)
	c.added = nil
	c.removed = nil
	c.loaded = true
}

func (c *Collection) commit() {
	c.added = nil
	c.removed = nil
}
