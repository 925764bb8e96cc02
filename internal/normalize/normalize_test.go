package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"snowmapper/internal/schema"
	"snowmapper/internal/warehouse"
)

func TestFlag_OnlyExactYIsTrue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"Y", "Y", true},
		{"N", "N", false},
		{"lowercase", "y", false},
		{"padded", " Y", false},
		{"yes", "YES", false},
		{"empty", "", false},
		{"null", nil, false},
		{"bool", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Flag(warehouse.Row{"is_current": tt.value}, "is_current"))
		})
	}
	assert.False(t, Flag(warehouse.Row{}, "is_current"), "absent column")
}

func TestWarehouse(t *testing.T) {
	row := warehouse.Row{
		"name":       "COMPUTE_WH",
		"state":      "STARTED",
		"type":       "STANDARD",
		"size":       "X-Small",
		"is_default": "Y",
		"is_current": "N",
		"owner":      "SYSADMIN",
		"comment":    "",
	}

	assert.Equal(t, schema.Warehouse{
		Name:      "COMPUTE_WH",
		State:     "STARTED",
		Type:      "STANDARD",
		Size:      "X-Small",
		IsDefault: true,
		IsCurrent: false,
		Owner:     "SYSADMIN",
	}, Warehouse(row))
}

func TestDatabase_OriginDefault(t *testing.T) {
	created := time.Date(2023, 11, 2, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		origin any
		want   string
	}{
		{"present", "ORGX.SHARE", "ORGX.SHARE"},
		{"empty", "", "snowflake"},
		{"null", nil, "snowflake"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := Database(warehouse.Row{
				"name":       "ANALYTICS",
				"created_on": created,
				"origin":     tt.origin,
				"owner":      "ACCOUNTADMIN",
				"comment":    "reporting",
				"is_current": "Y",
			})
			assert.Equal(t, tt.want, db.Origin)
			assert.Equal(t, "ANALYTICS", db.Name)
			assert.Equal(t, created, db.CreatedOn)
			assert.True(t, db.IsCurrent)
			if assert.NotNil(t, db.Comment) {
				assert.Equal(t, "reporting", *db.Comment)
			}
		})
	}

	assert.Equal(t, "snowflake", Database(warehouse.Row{"name": "X"}).Origin, "absent origin")
}

func TestTable_CoercesDriverValues(t *testing.T) {
	row := warehouse.Row{
		"table_schema":   "PUBLIC",
		"table_name":     "ORDERS",
		"table_type":     "BASE TABLE",
		"row_count":      "1200",
		"bytes":          float64(65536),
		"retention_time": int64(1),
		"created":        "2024-01-05T10:00:00Z",
		"last_altered":   "2024-02-01 09:15:30.123 +0000",
		"comment":        nil,
	}

	table := Table("SALES", row)

	assert.Equal(t, "SALES", table.Database)
	assert.Equal(t, "PUBLIC", table.Schema)
	assert.Equal(t, "ORDERS", table.Name)
	assert.Equal(t, "BASE TABLE", table.Type)
	assert.Equal(t, int64(1200), *table.RowCount)
	assert.Equal(t, int64(65536), *table.Bytes)
	assert.Equal(t, int64(1), *table.RetentionTime)
	assert.True(t, table.Created.Equal(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)))
	assert.True(t, table.LastAltered.Equal(time.Date(2024, 2, 1, 9, 15, 30, 123000000, time.UTC)))
	assert.Nil(t, table.Comment)
	assert.NotNil(t, table.Columns)
	assert.Empty(t, table.Columns)
}

func TestTable_ViewHasNoStorageFigures(t *testing.T) {
	table := Table("SALES", warehouse.Row{
		"table_schema": "PUBLIC",
		"table_name":   "V_ORDERS",
		"table_type":   "VIEW",
		"row_count":    nil,
		"bytes":        "not a number",
		"created":      12345,
	})

	assert.Equal(t, "PUBLIC", table.Schema)
	assert.Equal(t, "VIEW", table.Type)
	assert.Nil(t, table.RowCount)
	assert.Nil(t, table.Bytes)
	assert.Nil(t, table.RetentionTime)
	assert.True(t, table.Created.IsZero())
}

func TestColumn(t *testing.T) {
	col := Column(warehouse.Row{
		"column_name":              "AMOUNT",
		"data_type":                "NUMBER",
		"is_nullable":              "YES",
		"character_maximum_length": nil,
		"numeric_precision":        "38",
		"numeric_scale":            int64(2),
	})

	assert.Equal(t, "AMOUNT", col.Name)
	assert.Equal(t, "NUMBER", col.DataType)
	assert.True(t, col.IsNullable)
	assert.Nil(t, col.CharacterMaximumLength)
	assert.Equal(t, int64(38), *col.NumericPrecision)
	assert.Equal(t, int64(2), *col.NumericScale)

	assert.False(t, Column(warehouse.Row{"is_nullable": "NO"}).IsNullable)
}

func TestSchemaName(t *testing.T) {
	assert.Equal(t, "PUBLIC", SchemaName(warehouse.Row{"name": "PUBLIC"}))
	assert.Equal(t, "", SchemaName(warehouse.Row{}))
}
