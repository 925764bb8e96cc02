package schema

import "time"

// DefaultOrigin is recorded for databases whose listing row carries no origin.
const DefaultOrigin = "snowflake"

type Warehouse struct {
	Name      string  `json:"name" yaml:"name"`
	State     string  `json:"state" yaml:"state"`
	Type      string  `json:"type" yaml:"type"`
	Size      string  `json:"size" yaml:"size"`
	IsDefault bool    `json:"is_default" yaml:"is_default"`
	IsCurrent bool    `json:"is_current" yaml:"is_current"`
	Owner     string  `json:"owner" yaml:"owner"`
	Comment   *string `json:"comment" yaml:"comment"`
}

type Database struct {
	Name      string    `json:"name" yaml:"name"`
	CreatedOn time.Time `json:"created_on" yaml:"created_on"`
	Origin    string    `json:"origin" yaml:"origin"`
	Owner     string    `json:"owner" yaml:"owner"`
	Comment   *string   `json:"comment" yaml:"comment"`
	IsCurrent bool      `json:"is_current" yaml:"is_current"`
}

// DatabaseMetadata is the per-database summary written next to its tables. CreatedOn is
// nil when the catalog did not report it.
type DatabaseMetadata struct {
	Name      string     `json:"name" yaml:"name"`
	CreatedOn *time.Time `json:"created_on" yaml:"created_on"`
	Owner     string     `json:"owner" yaml:"owner"`
	Comment   *string    `json:"comment" yaml:"comment"`
}

func (d Database) Metadata() DatabaseMetadata {
	m := DatabaseMetadata{
		Name:    d.Name,
		Owner:   d.Owner,
		Comment: d.Comment,
	}
	if !d.CreatedOn.IsZero() {
		created := d.CreatedOn
		m.CreatedOn = &created
	}
	return m
}

type Table struct {
	Database      string    `json:"database_name" yaml:"database_name"`
	Schema        string    `json:"schema_name" yaml:"schema_name"`
	Name          string    `json:"table_name" yaml:"table_name"`
	Type          string    `json:"table_type" yaml:"table_type"`
	RowCount      *int64    `json:"row_count" yaml:"row_count"`
	Bytes         *int64    `json:"bytes" yaml:"bytes"`
	RetentionTime *int64    `json:"retention_time" yaml:"retention_time"`
	Created       time.Time `json:"created" yaml:"created"`
	LastAltered   time.Time `json:"last_altered" yaml:"last_altered"`
	Comment       *string   `json:"comment" yaml:"comment"`
	Columns       []Column  `json:"columns" yaml:"columns"`
}

type Column struct {
	Name                   string `json:"name" yaml:"name"`
	DataType               string `json:"data_type" yaml:"data_type"`
	IsNullable             bool   `json:"is_nullable" yaml:"is_nullable"`
	CharacterMaximumLength *int64 `json:"character_maximum_length" yaml:"character_maximum_length"`
	NumericPrecision       *int64 `json:"numeric_precision" yaml:"numeric_precision"`
	NumericScale           *int64 `json:"numeric_scale" yaml:"numeric_scale"`
}

// Result is everything one harvest run produced.
type Result struct {
	Tables          []Table   `json:"tables" yaml:"tables"`
	FailedDatabases []string  `json:"failed_databases" yaml:"failed_databases"`
	GeneratedAt     time.Time `json:"generated_at" yaml:"generated_at"`
}
