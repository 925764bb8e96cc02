// Package warehousetest provides a scripted stand-in for a Snowflake account.
package warehousetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"snowmapper/internal/warehouse"
)

// Call is one statement as seen by the fake, tagged with the session that issued it.
type Call struct {
	Session int
	SQL     string
}

// Account answers statements by exact SQL text. USE statements succeed unless told to
// fail; any other unscripted statement is an error.
type Account struct {
	mu        sync.Mutex
	responses map[string][]warehouse.Row
	failures  map[string]error
	calls     []Call

	connectErr error
	closeErr   error
	sessions   int
	closed     int
}

func NewAccount() *Account {
	return &Account{
		responses: make(map[string][]warehouse.Row),
		failures:  make(map[string]error),
	}
}

// On scripts the rows returned for query.
func (a *Account) On(query string, rows ...warehouse.Row) *Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rows == nil {
		rows = []warehouse.Row{}
	}
	a.responses[query] = rows
	return a
}

// Fail makes query return err.
func (a *Account) Fail(query string, err error) *Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[query] = err
	return a
}

// FailConnect makes every Connect return err.
func (a *Account) FailConnect(err error) *Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectErr = err
	return a
}

// FailClose makes every session Close return err.
func (a *Account) FailClose(err error) *Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeErr = err
	return a
}

func (a *Account) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// Statements returns the SQL of every call in issue order.
func (a *Account) Statements() []string {
	calls := a.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.SQL
	}
	return out
}

// SessionsOpened counts successful connects.
func (a *Account) SessionsOpened() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions
}

func (a *Account) SessionsClosed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Executor opens a new fake session directly, bypassing the connector.
func (a *Account) Executor() warehouse.Executor {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions++
	return &executor{account: a, id: a.sessions}
}

// Connector returns a warehouse.Connector backed by this account.
func (a *Account) Connector(opts ...warehouse.SessionOption) *Connector {
	return &Connector{account: a, opts: opts}
}

type Connector struct {
	account  *Account
	opts     []warehouse.SessionOption
	attempts int
	mu       sync.Mutex
}

func (c *Connector) Connect(ctx context.Context) (*warehouse.Session, error) {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()

	c.account.mu.Lock()
	err := c.account.connectErr
	c.account.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return warehouse.NewSession(c.account.Executor(), c.opts...), nil
}

// Attempts counts Connect calls, successful or not.
func (c *Connector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Connector) Close() error {
	return nil
}

type executor struct {
	account *Account
	id      int
}

func (e *executor) Execute(ctx context.Context, query string) ([]warehouse.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := e.account
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Session: e.id, SQL: query})

	if err, ok := a.failures[query]; ok {
		return nil, err
	}
	if rows, ok := a.responses[query]; ok {
		return rows, nil
	}
	if strings.HasPrefix(query, "USE ") {
		return nil, nil
	}
	return nil, fmt.Errorf("no scripted response for %q", query)
}

func (e *executor) Close() error {
	a := e.account
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed++
	return a.closeErr
}

// ErrDenied is a convenient failure for scripted statements.
var ErrDenied = errors.New("SQL access control error: insufficient privileges")
