// Package session is a unit of work over a caller-supplied *sql.DB.
//
// Instances are added to a session, written by Flush in foreign key order
// and committed with Commit. Rows loaded by primary key go through an
// identity map, so one row is one instance per session.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/nazmi/sqlmodel/ddl"
	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/logger"
	"github.com/nazmi/sqlmodel/mapping"
)

// Materializer builds an empty instance of a mapped class for a loaded row.
// Mapper.Class must implement it for Get and Load to work.
type Materializer interface {
	Materialize() (*mapping.InstanceState, error)
}

// conn is satisfied by *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option configures a Session.
type Option func(*Session)

// WithDialect sets the SQL dialect instead of inferring it from the driver.
func WithDialect(d ddl.Dialect) Option {
	return func(s *Session) { s.dialect = d }
}

// WithLogger sets the statement logger.
func WithLogger(l logger.Interface) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIndexNamer sets how CreateAll names column indexes.
func WithIndexNamer(fn ddl.IndexNamer) Option {
	return func(s *Session) { s.indexNamer = fn }
}

// Session tracks instances and writes them to the database.
type Session struct {
	db         *sql.DB
	registry   *mapping.Registry
	dialect    ddl.Dialect
	gen        *ddl.Generator
	logger     logger.Interface
	indexNamer ddl.IndexNamer

	tx       *sql.Tx
	states   []*mapping.InstanceState
	tracked  map[*mapping.InstanceState]bool
	identity map[string]*mapping.InstanceState
	deleted  []*mapping.InstanceState
	closed   bool
}

// New creates a session for the mapped classes of registry.
func New(db *sql.DB, registry *mapping.Registry, opts ...Option) (*Session, error) {
	if db == nil {
		return nil, errs.New(errs.KindConfiguration, "session requires a database handle")
	}
	if registry == nil {
		return nil, errs.New(errs.KindConfiguration, "session requires a registry")
	}
	s := &Session{
		db:       db,
		registry: registry,
		logger:   logger.Default,
		tracked:  make(map[*mapping.InstanceState]bool),
		identity: make(map[string]*mapping.InstanceState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialect == nil {
		d, err := ddl.DialectOf(db)
		if err != nil {
			return nil, err
		}
		s.dialect = d
	}
	s.gen = ddl.NewGenerator(s.dialect, ddl.WithIndexNamer(s.indexNamer))
	return s, nil
}

// Dialect returns the session dialect.
func (s *Session) Dialect() ddl.Dialect { return s.dialect }

func (s *Session) conn() conn {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *Session) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	begin := time.Now()
	res, err := s.conn().ExecContext(ctx, query, args...)
	s.logger.Trace(ctx, begin, func() (string, int64) {
		rows := int64(-1)
		if err == nil {
			if n, rerr := res.RowsAffected(); rerr == nil {
				rows = n
			}
		}
		return query, rows
	}, err)
	return res, err
}

func (s *Session) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	begin := time.Now()
	rows, err := s.conn().QueryContext(ctx, query, args...)
	s.logger.Trace(ctx, begin, func() (string, int64) { return query, -1 }, err)
	return rows, err
}

// CreateAll creates every table of the registry metadata, referenced
// tables first.
func (s *Session) CreateAll(ctx context.Context) error {
	stmts, err := s.gen.CreateAll(s.registry.MetaData)
	if err != nil {
		return err
	}
	return s.execAll(ctx, stmts)
}

// DropAll drops every table of the registry metadata, dependents first.
func (s *Session) DropAll(ctx context.Context) error {
	stmts, err := s.gen.DropAll(s.registry.MetaData)
	if err != nil {
		return err
	}
	return s.execAll(ctx, stmts)
}

func (s *Session) execAll(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := s.exec(ctx, stmt); err != nil {
			return storageError("", "executing DDL", err)
		}
	}
	return nil
}

// Begin starts the session transaction. Flush begins one on demand.
func (s *Session) Begin(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.tx != nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool { return s.tx != nil }

// Add attaches st to the session and cascades along relationships whose
// cascade includes save-update.
func (s *Session) Add(st *mapping.InstanceState) error {
	if s.closed {
		return ErrClosed
	}
	if st == nil {
		return errs.New(errs.KindConfiguration, "cannot add a nil instance")
	}
	if owner := st.Owner(); owner != nil && owner != s {
		return errs.Newf(errs.KindConfiguration, "%s instance is already attached to another session", st.Mapper().ClassName)
	}
	if st.Mapper().Registry() != s.registry {
		return errs.Newf(errs.KindNotMapped, "class %s is not mapped by this session's registry", st.Mapper().ClassName)
	}
	s.attach(st)
	s.cascade(st, make(map[*mapping.InstanceState]bool))
	return nil
}

func (s *Session) attach(st *mapping.InstanceState) {
	switch st.Status() {
	case mapping.Transient:
		st.SetStatus(mapping.Pending)
	case mapping.Detached:
		st.SetStatus(mapping.Persistent)
	}
	s.track(st)
}

func (s *Session) track(st *mapping.InstanceState) {
	if s.tracked[st] {
		return
	}
	s.tracked[st] = true
	s.states = append(s.states, st)
	st.SetOwner(s)
}

func (s *Session) cascade(st *mapping.InstanceState, seen map[*mapping.InstanceState]bool) {
	if seen[st] {
		return
	}
	seen[st] = true
	for _, p := range st.Mapper().Relationships() {
		if !cascades(p, "save-update") {
			continue
		}
		for _, child := range st.Related(p.Key) {
			if child.Owner() != nil && child.Owner() != s {
				continue
			}
			if !s.tracked[child] {
				s.attach(child)
			}
			s.cascade(child, seen)
		}
	}
}

// cascades reports whether p propagates op. An empty cascade means
// "save-update, merge".
func cascades(p *mapping.RelationshipProperty, op string) bool {
	if p.Viewonly {
		return false
	}
	if p.Cascade == "" {
		return op == "save-update" || op == "merge"
	}
	for _, c := range strings.Split(p.Cascade, ",") {
		c = strings.TrimSpace(c)
		if c == op || c == "all" && op != "delete-orphan" {
			return true
		}
	}
	return false
}

// Contains reports whether the session tracks st.
func (s *Session) Contains(st *mapping.InstanceState) bool { return s.tracked[st] }

// Pending returns the instances waiting for their first INSERT, in the
// order they were added.
func (s *Session) Pending() []*mapping.InstanceState {
	return lo.Filter(s.states, func(st *mapping.InstanceState, _ int) bool {
		return st.Status() == mapping.Pending
	})
}

// Dirty returns the persistent instances with unflushed changes.
func (s *Session) Dirty() []*mapping.InstanceState {
	return lo.Filter(s.states, func(st *mapping.InstanceState, _ int) bool {
		return st.Status() == mapping.Persistent && st.Modified() && !s.isDeleted(st)
	})
}

// Expunge detaches st from the session without touching the database.
func (s *Session) Expunge(st *mapping.InstanceState) {
	if !s.tracked[st] {
		return
	}
	delete(s.tracked, st)
	s.states = slices.DeleteFunc(s.states, func(x *mapping.InstanceState) bool { return x == st })
	s.deleted = slices.DeleteFunc(s.deleted, func(x *mapping.InstanceState) bool { return x == st })
	if len(st.Identity()) > 0 {
		delete(s.identity, identityKey(st.Mapper().Table, st.Identity()))
	}
	st.SetOwner(nil)
	if st.Status() == mapping.Pending {
		st.SetStatus(mapping.Transient)
	} else {
		st.SetStatus(mapping.Detached)
	}
}

// Delete marks a persistent instance for deletion at the next flush. A
// pending instance is simply expunged. Relationships cascading delete are
// followed through their loaded members.
func (s *Session) Delete(st *mapping.InstanceState) error {
	if s.closed {
		return ErrClosed
	}
	if owner := st.Owner(); owner != nil && owner != s {
		return errs.Newf(errs.KindConfiguration, "%s instance is attached to another session", st.Mapper().ClassName)
	}
	switch st.Status() {
	case mapping.Pending:
		s.Expunge(st)
		return nil
	case mapping.Persistent, mapping.Detached:
	default:
		return errs.Newf(errs.KindConfiguration, "%s instance is not persisted", st.Mapper().ClassName)
	}
	s.attach(st)
	if !s.isDeleted(st) {
		s.deleted = append(s.deleted, st)
	}
	for _, p := range st.Mapper().Relationships() {
		if !cascades(p, "delete") {
			continue
		}
		for _, child := range st.Related(p.Key) {
			if err := s.Delete(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) isDeleted(st *mapping.InstanceState) bool {
	return slices.Contains(s.deleted, st)
}

// Flush writes pending inserts, updates, link rows and deletes inside the
// session transaction, starting one if needed. On failure the transaction
// is rolled back and the instances keep their pre-flush status.
func (s *Session) Flush(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.registry.Configure(); err != nil {
		return err
	}
	seen := make(map[*mapping.InstanceState]bool)
	for _, st := range slices.Clone(s.states) {
		s.cascade(st, seen)
	}
	if len(s.Pending()) == 0 && len(s.Dirty()) == 0 && len(s.deleted) == 0 {
		return nil
	}
	if err := s.Begin(ctx); err != nil {
		return err
	}

	f := &flush{Session: s, links: make(map[string]bool)}
	if err := f.run(ctx); err != nil {
		f.undo()
		if rbErr := s.rollbackTx(); rbErr != nil {
			return fmt.Errorf("flush failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	for _, st := range s.states {
		if s.isDeleted(st) {
			continue
		}
		st.Commit()
		st.SetStatus(mapping.Persistent)
		s.identity[identityKey(st.Mapper().Table, st.Identity())] = st
	}
	for _, st := range s.deleted {
		delete(s.tracked, st)
		s.states = slices.DeleteFunc(s.states, func(x *mapping.InstanceState) bool { return x == st })
		delete(s.identity, identityKey(st.Mapper().Table, st.Identity()))
		st.SetStatus(mapping.Deleted)
		st.SetOwner(nil)
	}
	s.deleted = nil
	return nil
}

// Commit flushes and commits the session transaction.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the session transaction, expunges pending
// instances and forgets pending deletions.
func (s *Session) Rollback() error {
	err := s.rollbackTx()
	for _, st := range s.Pending() {
		s.Expunge(st)
	}
	s.deleted = nil
	return err
}

func (s *Session) rollbackTx() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Close rolls back any open transaction and detaches every instance.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	err := s.Rollback()
	for _, st := range slices.Clone(s.states) {
		s.Expunge(st)
	}
	s.closed = true
	return err
}

func identityKey(t *mapping.Table, values []any) string {
	return fmt.Sprintf("%s%v", t.Name, values)
}

func (s *Session) placeholders(n, offset int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s.dialect.Placeholder(offset + i + 1)
	}
	return out
}

func (s *Session) quoteAll(names []string) []string {
	return lo.Map(names, func(n string, _ int) string { return s.dialect.Quote(n) })
}
