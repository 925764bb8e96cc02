package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	harvesterrors "snowmapper/internal/errors"
	"snowmapper/internal/logging"
	"snowmapper/pkg/config"
)

// Connector hands out independent sessions. Each session owns its server-side scope.
type Connector interface {
	Connect(ctx context.Context) (*Session, error)
	Close() error
}

// SQLConnector opens Snowflake sessions through database/sql. Every Connect pins one
// pooled connection, so sessions never share scope.
type SQLConnector struct {
	db      *sql.DB
	account string
	timeout time.Duration
	logger  *logging.Logger
}

// NewSQLConnector prepares a connection pool. No network traffic happens until Connect.
func NewSQLConnector(cfg config.SnowflakeConfig, queryTimeout time.Duration, logger *logging.Logger) (*SQLConnector, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, harvesterrors.Wrap(harvesterrors.ErrConfiguration, "failed to build snowflake DSN", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, harvesterrors.Wrap(harvesterrors.ErrConnection, "failed to open snowflake driver", err)
	}

	// Returned connections are closed, which logs the Snowflake session out.
	db.SetMaxIdleConns(0)

	if logger == nil {
		logger = logging.NewNop()
	}
	return &SQLConnector{
		db:      db,
		account: cfg.Account,
		timeout: queryTimeout,
		logger:  logger,
	}, nil
}

// BuildDSN renders the driver DSN for the configured account.
func BuildDSN(cfg config.SnowflakeConfig) (string, error) {
	sfCfg := &sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Warehouse: cfg.Warehouse,
		Database:  cfg.Database,
		Role:      cfg.Role,
	}
	// Accounts given as "<locator>.<region>" need the region split out for the host name.
	if i := strings.Index(cfg.Account, "."); i > 0 && !strings.Contains(cfg.Account, "snowflakecomputing") {
		sfCfg.Account = cfg.Account[:i]
		sfCfg.Region = cfg.Account[i+1:]
	}
	return sf.DSN(sfCfg)
}

func (c *SQLConnector) Connect(ctx context.Context) (*Session, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, harvesterrors.Wrap(harvesterrors.ErrConnection, "failed to connect to snowflake", err).
			WithContext("account", c.account)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, harvesterrors.Wrap(harvesterrors.ErrConnection, "failed to ping snowflake", err).
			WithContext("account", c.account)
	}
	c.logger.Debug("session opened", zap.String("account", c.account))
	return NewSession(&connExecutor{conn: conn}, WithQueryTimeout(c.timeout), WithLogger(c.logger)), nil
}

func (c *SQLConnector) Close() error {
	if err := c.db.Close(); err != nil {
		return harvesterrors.Wrap(harvesterrors.ErrDisconnection, "failed to close snowflake connections", err).
			WithContext("account", c.account)
	}
	return nil
}

type connExecutor struct {
	conn *sql.Conn
}

func (e *connExecutor) Execute(ctx context.Context, query string) ([]Row, error) {
	rows, err := e.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func (e *connExecutor) Close() error {
	return e.conn.Close()
}

type rowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRows(rows rowScanner) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	keys := make([]string, len(columns))
	for i, c := range columns {
		keys[i] = strings.ToLower(c)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[keys[i]] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
