package sqlmodel

import (
	"context"
	"database/sql"

	"github.com/nazmi/sqlmodel/ddl"
	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
	"github.com/nazmi/sqlmodel/session"
)

// Session errors, for use with errors.Is.
var (
	ErrNotFound = session.ErrNotFound
	ErrClosed   = session.ErrClosed
)

// Session is a unit of work over the table classes of one registry.
type Session struct {
	registry *Registry
	inner    *session.Session
}

// NewSession opens a session over the default registry.
func NewSession(db *sql.DB, opts ...session.Option) (*Session, error) {
	return DefaultRegistry().Session(db, opts...)
}

// Session opens a session over the table classes of r. The dialect is
// inferred from the driver, falling back to the registry dialect.
func (r *Registry) Session(db *sql.DB, opts ...session.Option) (*Session, error) {
	base := []session.Option{
		session.WithLogger(r.log()),
		session.WithIndexNamer(r.namer().IndexName),
	}
	if db != nil {
		if _, err := ddl.DialectOf(db); err != nil && r.dialect != "" {
			d, lerr := ddl.Lookup(r.dialect)
			if lerr != nil {
				return nil, lerr
			}
			base = append(base, session.WithDialect(d))
		}
	}
	inner, err := session.New(db, r.mapping, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Session{registry: r, inner: inner}, nil
}

// Raw returns the underlying unit of work.
func (s *Session) Raw() *session.Session { return s.inner }

func states(insts []*Instance) ([]*mapping.InstanceState, error) {
	out := make([]*mapping.InstanceState, 0, len(insts))
	for _, inst := range insts {
		if inst == nil || inst.state == nil {
			name := "<nil>"
			if inst != nil {
				name = inst.model.name
			}
			return nil, errs.Newf(errs.KindNotMapped, "class %s is not a table", name)
		}
		out = append(out, inst.state)
	}
	return out, nil
}

// Add tracks instances for the next flush, cascading along relationships.
func (s *Session) Add(insts ...*Instance) error {
	sts, err := states(insts)
	if err != nil {
		return err
	}
	for _, st := range sts {
		if err := s.inner.Add(st); err != nil {
			return err
		}
	}
	return nil
}

// Delete marks instances for deletion at the next flush.
func (s *Session) Delete(insts ...*Instance) error {
	sts, err := states(insts)
	if err != nil {
		return err
	}
	for _, st := range sts {
		if err := s.inner.Delete(st); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether inst is tracked by the session.
func (s *Session) Contains(inst *Instance) bool {
	return inst != nil && inst.state != nil && s.inner.Contains(inst.state)
}

// Flush writes pending changes inside the session transaction.
func (s *Session) Flush(ctx context.Context) error { return s.inner.Flush(ctx) }

// Commit flushes and commits.
func (s *Session) Commit(ctx context.Context) error { return s.inner.Commit(ctx) }

// Rollback discards the transaction and pending instances.
func (s *Session) Rollback() error { return s.inner.Rollback() }

// Close rolls back and detaches every instance.
func (s *Session) Close() error { return s.inner.Close() }

// CreateAll creates the tables of the registry.
func (s *Session) CreateAll(ctx context.Context) error { return s.inner.CreateAll(ctx) }

// DropAll drops the tables of the registry.
func (s *Session) DropAll(ctx context.Context) error { return s.inner.DropAll(ctx) }

// Get returns the instance of m with primary key pk.
func (s *Session) Get(ctx context.Context, m *Model, pk ...any) (*Instance, error) {
	if m.mapper == nil {
		return nil, errs.Newf(errs.KindNotMapped, "class %s is not a table", m.name)
	}
	st, err := s.inner.Get(ctx, m.mapper, pk...)
	if err != nil {
		return nil, err
	}
	return st.Obj().(*Instance), nil
}

// Load populates a relationship of inst from the database.
func (s *Session) Load(ctx context.Context, inst *Instance, name string) ([]*Instance, error) {
	if inst == nil || inst.state == nil {
		return nil, errs.New(errs.KindNotMapped, "instance is not of a table class")
	}
	sts, err := s.inner.Load(ctx, inst.state, name)
	if err != nil {
		return nil, err
	}
	return instances(sts), nil
}
