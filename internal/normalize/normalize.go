// Package normalize maps raw catalog rows into schema records.
//
// Every function here is pure and never fails: a value that cannot be coerced becomes the
// zero value (or nil for optional fields) so that one odd row never blocks a harvest.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"snowmapper/internal/schema"
	"snowmapper/internal/warehouse"
)

// Warehouse maps one SHOW WAREHOUSES row.
func Warehouse(row warehouse.Row) schema.Warehouse {
	return schema.Warehouse{
		Name:      String(row, "name"),
		State:     String(row, "state"),
		Type:      String(row, "type"),
		Size:      String(row, "size"),
		IsDefault: Flag(row, "is_default"),
		IsCurrent: Flag(row, "is_current"),
		Owner:     String(row, "owner"),
		Comment:   OptionalString(row, "comment"),
	}
}

// Database maps one SHOW DATABASES row.
func Database(row warehouse.Row) schema.Database {
	origin := String(row, "origin")
	if origin == "" {
		origin = schema.DefaultOrigin
	}
	return schema.Database{
		Name:      String(row, "name"),
		CreatedOn: Time(row, "created_on"),
		Origin:    origin,
		Owner:     String(row, "owner"),
		Comment:   OptionalString(row, "comment"),
		IsCurrent: Flag(row, "is_current"),
	}
}

// SchemaName extracts the name from one SHOW SCHEMAS row.
func SchemaName(row warehouse.Row) string {
	return String(row, "name")
}

// Table maps one INFORMATION_SCHEMA.TABLES row. Columns are attached by the caller.
func Table(database string, row warehouse.Row) schema.Table {
	return schema.Table{
		Database:      database,
		Schema:        String(row, "table_schema"),
		Name:          String(row, "table_name"),
		Type:          String(row, "table_type"),
		RowCount:      OptionalInt(row, "row_count"),
		Bytes:         OptionalInt(row, "bytes"),
		RetentionTime: OptionalInt(row, "retention_time"),
		Created:       Time(row, "created"),
		LastAltered:   Time(row, "last_altered"),
		Comment:       OptionalString(row, "comment"),
		Columns:       []schema.Column{},
	}
}

// Column maps one INFORMATION_SCHEMA.COLUMNS row.
func Column(row warehouse.Row) schema.Column {
	return schema.Column{
		Name:                   String(row, "column_name"),
		DataType:               String(row, "data_type"),
		IsNullable:             strings.EqualFold(String(row, "is_nullable"), "YES"),
		CharacterMaximumLength: OptionalInt(row, "character_maximum_length"),
		NumericPrecision:       OptionalInt(row, "numeric_precision"),
		NumericScale:           OptionalInt(row, "numeric_scale"),
	}
}

// Flag is true only for the exact sentinel "Y".
func Flag(row warehouse.Row, column string) bool {
	v, ok := row.Get(column)
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == "Y"
}

func String(row warehouse.Row, column string) string {
	v, ok := row.Get(column)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

// OptionalString is nil for absent, null and empty values.
func OptionalString(row warehouse.Row, column string) *string {
	s := String(row, column)
	if s == "" {
		return nil
	}
	return &s
}

// OptionalInt is nil when the value is absent, null or not numeric.
func OptionalInt(row warehouse.Row, column string) *int64 {
	v, ok := row.Get(column)
	if !ok || v == nil {
		return nil
	}
	n, ok := toInt64(v)
	if !ok {
		return nil
	}
	return &n
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case []byte:
		return toInt64(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time accepts driver timestamps and their common string renderings. Anything else is the
// zero time.
func Time(row warehouse.Row, column string) time.Time {
	v, ok := row.Get(column)
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		return parseTime(string(t))
	case string:
		return parseTime(t)
	}
	return time.Time{}
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
