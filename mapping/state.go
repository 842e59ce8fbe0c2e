package mapping

import (
	"fmt"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/internal/tracking"
)

// Status is the lifecycle position of an instance relative to storage.
type Status int

const (
	Transient Status = iota
	Pending
	Persistent
	Deleted
	Detached
)

func (s Status) String() string {
	switch s {
	case Transient:
		return "transient"
	case Pending:
		return "pending"
	case Persistent:
		return "persistent"
	case Deleted:
		return "deleted"
	case Detached:
		return "detached"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// LoadObserver is implemented by objects that keep their own record of
// assigned attributes and need to hear about values written by the
// persistence side: loaded rows and synchronized foreign keys.
type LoadObserver interface {
	AttributeLoaded(key string)
}

// InstanceState is the persistence-side bookkeeping of one instance.
type InstanceState struct {
	mapper      *Mapper
	obj         any
	dict        map[string]any
	tracker     *tracking.ChangeTracker
	collections map[string]*Collection
	status      Status
	identity    []any
	owner       any
}

type initiator struct {
	prop  *RelationshipProperty
	state *InstanceState
}

func newInstanceState(m *Mapper, obj any, dict map[string]any) *InstanceState {
	if dict == nil {
		dict = make(map[string]any)
	}
	return &InstanceState{
		mapper:      m,
		obj:         obj,
		dict:        dict,
		tracker:     tracking.NewChangeTracker(nil),
		collections: make(map[string]*Collection),
	}
}

// Mapper returns the mapper of the instance class.
func (s *InstanceState) Mapper() *Mapper { return s.mapper }

// Obj returns the object that owns this state.
func (s *InstanceState) Obj() any { return s.obj }

// Status returns the lifecycle status.
func (s *InstanceState) Status() Status { return s.status }

// SetStatus moves the state through its lifecycle. Used by sessions.
func (s *InstanceState) SetStatus(st Status) { s.status = st }

// Owner returns the session-specific owner token, if any.
func (s *InstanceState) Owner() any { return s.owner }

// SetOwner records the session that tracks the state.
func (s *InstanceState) SetOwner(owner any) { s.owner = owner }

// Identity returns the primary key values once persistent.
func (s *InstanceState) Identity() []any { return s.identity }

// Value returns the current value of a column attribute.
func (s *InstanceState) Value(key string) (any, bool) {
	v, ok := s.dict[key]
	return v, ok
}

// SetAttribute writes a column attribute and records history. Listeners of
// EventSet run after the write.
func (s *InstanceState) SetAttribute(key string, value any) error {
	if s.mapper.ColumnProperty(key) == nil {
		if s.mapper.Relationship(key) != nil {
			return s.SetRelationship(key, value)
		}
		return errs.UnknownAttribute(s.mapper.ClassName, key)
	}
	old := s.dict[key]
	s.dict[key] = value
	s.tracker.Set(key, value)
	s.fire(Event{Type: EventSet, Key: key, Value: value, OldValue: old})
	return nil
}

// Restore puts a column attribute back to a previous value, undoing the
// history of a rejected write. No events fire.
func (s *InstanceState) Restore(key string, value any, present bool) {
	if present {
		s.dict[key] = value
	} else {
		delete(s.dict, key)
	}
	s.tracker.Revert(key, value, present)
}

// Sync writes a foreign key value copied from a related instance. It is
// recorded and announced like any other write, and the owning object hears
// about it as an assigned attribute.
func (s *InstanceState) Sync(key string, value any) error {
	if s.mapper.ColumnProperty(key) == nil {
		return errs.UnknownAttribute(s.mapper.ClassName, key)
	}
	if err := s.SetAttribute(key, value); err != nil {
		return err
	}
	if o, ok := s.obj.(LoadObserver); ok {
		o.AttributeLoaded(key)
	}
	return nil
}

// Coerced replaces the value of the last write to a column attribute with
// its validated form. History is recomputed against the committed value; no
// events fire.
func (s *InstanceState) Coerced(key string, value any) {
	s.dict[key] = value
	s.tracker.Set(key, value)
}

// Load stores a value that came from storage: committed, not a change.
func (s *InstanceState) Load(key string, value any) {
	s.dict[key] = value
	s.tracker.Load(key, value)
	if o, ok := s.obj.(LoadObserver); ok {
		o.AttributeLoaded(key)
	}
}

// Flushed marks column attributes as written to storage. Their current
// values become the committed ones; relationship history is kept.
func (s *InstanceState) Flushed(keys ...string) {
	for _, key := range keys {
		if v, ok := s.dict[key]; ok {
			s.tracker.Load(key, v)
		}
	}
}

// Modified reports pending column changes or relationship history.
func (s *InstanceState) Modified() bool {
	if s.tracker.HasChanges() {
		return true
	}
	for _, c := range s.collections {
		if len(c.added) > 0 || len(c.removed) > 0 {
			return true
		}
	}
	return false
}

// ChangedAttrs returns the column attributes written since the last commit, sorted.
func (s *InstanceState) ChangedAttrs() []string {
	return s.tracker.ChangedFields()
}

// Committed returns the committed value of a column attribute.
func (s *InstanceState) Committed(key string) any {
	return s.tracker.PreviousValue(key)
}

// Change returns the pending change of a column attribute or nil.
func (s *InstanceState) Change(key string) *tracking.FieldChange {
	return s.tracker.GetChange(key)
}

// Commit marks every attribute and relationship as clean and records the
// primary key identity.
func (s *InstanceState) Commit() {
	s.tracker.Commit()
	for _, c := range s.collections {
		c.commit()
	}
	s.identity = s.identity[:0]
	for _, key := range s.mapper.PrimaryKeyAttrs() {
		s.identity = append(s.identity, s.dict[key])
	}
}

// Collection returns the collection backing a relationship attribute.
func (s *InstanceState) Collection(key string) *Collection {
	c, ok := s.collections[key]
	if !ok {
		c = &Collection{}
		s.collections[key] = c
	}
	return c
}

// Related returns the members of a relationship attribute.
func (s *InstanceState) Related(key string) []*InstanceState {
	if c, ok := s.collections[key]; ok {
		return c.Items()
	}
	return nil
}

// LoadRelated populates a relationship from storage without history or
// back-population.
func (s *InstanceState) LoadRelated(key string, items []*InstanceState) {
	s.Collection(key).load(items)
}

func (s *InstanceState) relationship(key string) (*RelationshipProperty, error) {
	p := s.mapper.Relationship(key)
	if p == nil {
		return nil, errs.UnknownAttribute(s.mapper.ClassName, key)
	}
	return p, nil
}

func (s *InstanceState) checkTarget(p *RelationshipProperty, child *InstanceState) error {
	if child == nil {
		return errs.Configf(s.mapper.ClassName, p.Key, "cannot add nil to relationship")
	}
	if p.Target != nil && child.mapper != p.Target {
		return &errs.Error{
			Kind:    errs.KindValidation,
			Model:   s.mapper.ClassName,
			Attr:    p.Key,
			Message: fmt.Sprintf("expected an instance of %s, got %s", p.Target.ClassName, child.mapper.ClassName),
		}
	}
	return nil
}

// Append adds child to a relationship and mirrors the change on the
// back_populates side. For a scalar relationship it replaces the value.
func (s *InstanceState) Append(key string, child *InstanceState) error {
	p, err := s.relationship(key)
	if err != nil {
		return err
	}
	if err := s.checkTarget(p, child); err != nil {
		return err
	}
	s.appendValue(p, child, initiator{})
	return nil
}

// Remove takes child out of a relationship and mirrors the change on the
// back_populates side.
func (s *InstanceState) Remove(key string, child *InstanceState) error {
	p, err := s.relationship(key)
	if err != nil {
		return err
	}
	if child == nil {
		return nil
	}
	s.removeValue(p, child, initiator{})
	return nil
}

// SetRelationship replaces a relationship value. value is nil, an
// *InstanceState, or a []*InstanceState for collections.
func (s *InstanceState) SetRelationship(key string, value any) error {
	p, err := s.relationship(key)
	if err != nil {
		return err
	}

	var want []*InstanceState
	switch v := value.(type) {
	case nil:
	case *InstanceState:
		if v != nil {
			want = []*InstanceState{v}
		}
	case []*InstanceState:
		want = v
	default:
		return errs.Configf(s.mapper.ClassName, key, "unsupported relationship value of type %T", value)
	}
	if !p.IsCollection() && len(want) > 1 {
		return &errs.Error{Kind: errs.KindValidation, Model: s.mapper.ClassName, Attr: key,
			Message: "scalar relationship accepts a single instance"}
	}
	for _, child := range want {
		if err := s.checkTarget(p, child); err != nil {
			return err
		}
	}

	coll := s.Collection(key)
	for _, cur := range coll.Items() {
		keep := false
		for _, w := range want {
			if w == cur {
				keep = true
				break
			}
		}
		if !keep {
			s.removeValue(p, cur, initiator{})
		}
	}
	for _, child := range want {
		s.appendValue(p, child, initiator{})
	}
	coll.reorder(want)
	return nil
}

func (s *InstanceState) appendValue(p *RelationshipProperty, child *InstanceState, init initiator) {
	coll := s.Collection(p.Key)
	if coll.Contains(child) {
		return
	}
	if !p.IsCollection() {
		if old := coll.First(); old != nil {
			coll.remove(old)
			s.fire(Event{Type: EventRemove, Key: p.Key, Value: old})
			if p.Back != nil && !(init.prop == p.Back && init.state == old) {
				old.removeValue(p.Back, s, initiator{prop: p, state: s})
			}
		}
	}
	coll.append(child)
	if !p.IsCollection() {
		s.fire(Event{Type: EventSet, Key: p.Key, Value: child})
	} else {
		s.fire(Event{Type: EventAppend, Key: p.Key, Value: child})
	}
	if p.Back != nil && !(init.prop == p.Back && init.state == child) {
		child.appendValue(p.Back, s, initiator{prop: p, state: s})
	}
}

func (s *InstanceState) removeValue(p *RelationshipProperty, child *InstanceState, init initiator) {
	coll := s.Collection(p.Key)
	if !coll.remove(child) {
		return
	}
	s.fire(Event{Type: EventRemove, Key: p.Key, Value: child})
	if p.Back != nil && !(init.prop == p.Back && init.state == child) {
		child.removeValue(p.Back, s, initiator{prop: p, state: s})
	}
}

func (s *InstanceState) fire(ev Event) {
	ev.State = s
	s.mapper.listeners.dispatch(ev)
}
