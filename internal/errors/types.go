package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode categorizes a harvest failure.
type ErrorCode string

const (
	ErrConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrConnection    ErrorCode = "CONNECTION_FAILED"
	ErrScoping       ErrorCode = "SCOPING_FAILED"
	ErrQuery         ErrorCode = "QUERY_FAILED"
	ErrOutputWrite   ErrorCode = "OUTPUT_WRITE_FAILED"
	ErrDisconnection ErrorCode = "DISCONNECTION_FAILED"
	ErrHarvest       ErrorCode = "HARVEST_FAILED"
)

// HarvestError carries a code, the failing operation and the context it crossed.
type HarvestError struct {
	Code    ErrorCode
	Message string
	Context map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *HarvestError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, " "))
		b.WriteString("]")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *HarvestError) Unwrap() error {
	return e.Cause
}

// WithContext adds contextual information to the error
func (e *HarvestError) WithContext(key string, value interface{}) *HarvestError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSQL records the statement that failed.
func (e *HarvestError) WithSQL(sql string) *HarvestError {
	return e.WithContext("sql", sql)
}

func (e *HarvestError) WithDatabase(database string) *HarvestError {
	return e.WithContext("database", database)
}

func (e *HarvestError) WithSchema(schema string) *HarvestError {
	return e.WithContext("schema", schema)
}

func New(code ErrorCode, message string) *HarvestError {
	return &HarvestError{Code: code, Message: message}
}

func Wrap(code ErrorCode, message string, cause error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Cause: cause}
}

// MissingConfigError reports every required configuration key that is unset.
func MissingConfigError(keys []string) *HarvestError {
	return New(ErrConfiguration, "missing required configuration: "+strings.Join(keys, ", ")).
		WithContext("missing", keys)
}

// CodeOf returns the code of the outermost HarvestError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var he *HarvestError
	if stderrors.As(err, &he) {
		return he.Code
	}
	return ""
}

// HasCode reports whether any HarvestError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if he, ok := err.(*HarvestError); ok && he.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// SQLOf returns the statement recorded closest to the root cause, if any.
func SQLOf(err error) string {
	var sql string
	for err != nil {
		if he, ok := err.(*HarvestError); ok {
			if s, ok := he.Context["sql"].(string); ok {
				sql = s
			}
		}
		err = stderrors.Unwrap(err)
	}
	return sql
}
