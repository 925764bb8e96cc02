package catalog

import (
	"fmt"

	"snowmapper/internal/warehouse"
)

const (
	showWarehouses = "SHOW WAREHOUSES"
	showDatabases  = "SHOW DATABASES"
)

// ShowDatabaseQuery lists the databases whose name matches database. LIKE is a
// case-insensitive pattern, so callers still pick the exact row.
func ShowDatabaseQuery(database string) string {
	return showDatabases + " LIKE " + warehouse.QuoteLiteral(database)
}

func ShowSchemasQuery(database string) string {
	return "SHOW SCHEMAS IN DATABASE " + warehouse.QuoteIdent(database)
}

// TablesQuery selects the table catalog of one schema, ordered for stable output.
func TablesQuery(database, schema string) string {
	return fmt.Sprintf(`SELECT table_schema, table_name, table_type, row_count, bytes, retention_time, created, last_altered, comment
FROM %s.INFORMATION_SCHEMA.TABLES
WHERE table_schema = %s
ORDER BY table_schema, table_name`, warehouse.QuoteIdent(database), warehouse.QuoteLiteral(schema))
}

// ColumnsQuery selects every column of one schema in definition order.
func ColumnsQuery(database, schema string) string {
	return fmt.Sprintf(`SELECT table_name, column_name, data_type, is_nullable, character_maximum_length, numeric_precision, numeric_scale
FROM %s.INFORMATION_SCHEMA.COLUMNS
WHERE table_schema = %s
ORDER BY table_name, ordinal_position`, warehouse.QuoteIdent(database), warehouse.QuoteLiteral(schema))
}
