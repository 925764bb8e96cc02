package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	harvesterrors "snowmapper/internal/errors"
	"snowmapper/internal/logging"
)

// Row is one buffered result row keyed by lowercased column name.
type Row map[string]any

// Get looks a column up regardless of the casing the server used.
func (r Row) Get(column string) (any, bool) {
	v, ok := r[strings.ToLower(column)]
	return v, ok
}

// Executor runs one statement on a single server-side session and returns every row.
type Executor interface {
	Execute(ctx context.Context, query string) ([]Row, error)
	Close() error
}

// Scope is the server-side state the session currently runs under. Snowflake keeps it
// per session, so it changes only through the Use* methods.
type Scope struct {
	Role      string
	Warehouse string
	Database  string
	Schema    string
}

func (s Scope) String() string {
	return fmt.Sprintf("role=%s warehouse=%s database=%s schema=%s", s.Role, s.Warehouse, s.Database, s.Schema)
}

// Session is one warehouse session. It is not safe for concurrent use: scoping and the
// queries that depend on it must run in sequence.
type Session struct {
	exec    Executor
	scope   Scope
	timeout time.Duration
	logger  *logging.Logger
	closed  bool
}

type SessionOption func(*Session)

// WithQueryTimeout bounds every statement. Zero leaves it to the transport.
func WithQueryTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = d
	}
}

func WithLogger(l *logging.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSession(exec Executor, opts ...SessionOption) *Session {
	s := &Session{exec: exec, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Scope() Scope {
	return s.scope
}

// Query executes a statement and buffers the full result.
func (s *Session) Query(ctx context.Context, query string) ([]Row, error) {
	if s.closed {
		return nil, harvesterrors.New(harvesterrors.ErrQuery, "session is closed").WithSQL(query)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug("executing query", zap.String("sql", query))
	rows, err := s.exec.Execute(ctx, query)
	if err != nil {
		return nil, harvesterrors.Wrap(harvesterrors.ErrQuery, "query failed", err).WithSQL(query)
	}
	s.logger.Debug("query returned", zap.String("sql", query), zap.Int("rows", len(rows)))
	return rows, nil
}

func (s *Session) UseRole(ctx context.Context, role string) error {
	if err := s.use(ctx, "USE ROLE "+QuoteIdent(role), "set active role"); err != nil {
		return err.WithContext("role", role)
	}
	s.scope.Role = role
	return nil
}

func (s *Session) UseWarehouse(ctx context.Context, warehouse string) error {
	if err := s.use(ctx, "USE WAREHOUSE "+QuoteIdent(warehouse), "set active warehouse"); err != nil {
		return err.WithContext("warehouse", warehouse)
	}
	s.scope.Warehouse = warehouse
	return nil
}

// UseDatabase switches database and clears the active schema.
func (s *Session) UseDatabase(ctx context.Context, database string) error {
	if err := s.use(ctx, "USE DATABASE "+QuoteIdent(database), "set active database"); err != nil {
		return err.WithDatabase(database)
	}
	s.scope.Database = database
	s.scope.Schema = ""
	return nil
}

func (s *Session) UseSchema(ctx context.Context, database, schema string) error {
	stmt := "USE SCHEMA " + QuoteIdent(database) + "." + QuoteIdent(schema)
	if err := s.use(ctx, stmt, "set active schema"); err != nil {
		return err.WithDatabase(database).WithSchema(schema)
	}
	s.scope.Database = database
	s.scope.Schema = schema
	return nil
}

// Require fails unless every non-empty field of want matches the current scope.
func (s *Session) Require(want Scope) error {
	got := s.scope
	if (want.Role != "" && want.Role != got.Role) ||
		(want.Warehouse != "" && want.Warehouse != got.Warehouse) ||
		(want.Database != "" && want.Database != got.Database) ||
		(want.Schema != "" && want.Schema != got.Schema) {
		return harvesterrors.New(harvesterrors.ErrScoping, "session scope mismatch").
			WithContext("want", want.String()).
			WithContext("got", got.String())
	}
	return nil
}

// Close ends the session. Calling it again is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.exec.Close(); err != nil {
		return harvesterrors.Wrap(harvesterrors.ErrDisconnection, "disconnect failed", err)
	}
	return nil
}

func (s *Session) use(ctx context.Context, stmt, what string) *harvesterrors.HarvestError {
	if _, err := s.Query(ctx, stmt); err != nil {
		return harvesterrors.Wrap(harvesterrors.ErrScoping, what, err).WithSQL(stmt)
	}
	return nil
}

// QuoteIdent renders name as a double-quoted identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral renders value as a single-quoted string literal.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
