// Package catalog walks a Snowflake account: warehouses, databases, schemas and the tables
// and columns inside each schema.
package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	harvesterrors "snowmapper/internal/errors"
	"snowmapper/internal/logging"
	"snowmapper/internal/normalize"
	"snowmapper/internal/schema"
	"snowmapper/internal/warehouse"
)

// TableSink receives each table as soon as it is complete.
type TableSink func(schema.Table) error

type Walker struct {
	logger         *logging.Logger
	includeColumns bool
}

// Option configures walker behavior.
type Option func(*Walker)

// WithColumns toggles the per-schema column query. Enabled by default.
func WithColumns(enabled bool) Option {
	return func(w *Walker) {
		w.includeColumns = enabled
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

func NewWalker(opts ...Option) *Walker {
	w := &Walker{logger: logging.NewNop(), includeColumns: true}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ListWarehouses returns warehouses in server order.
func (w *Walker) ListWarehouses(ctx context.Context, s *warehouse.Session) ([]schema.Warehouse, error) {
	rows, err := s.Query(ctx, showWarehouses)
	if err != nil {
		return nil, err
	}
	warehouses := make([]schema.Warehouse, 0, len(rows))
	for _, row := range rows {
		warehouses = append(warehouses, normalize.Warehouse(row))
	}
	w.logger.Info("listed warehouses", zap.Int("count", len(warehouses)))
	return warehouses, nil
}

// ListDatabases returns databases in server order.
func (w *Walker) ListDatabases(ctx context.Context, s *warehouse.Session) ([]schema.Database, error) {
	rows, err := s.Query(ctx, showDatabases)
	if err != nil {
		return nil, err
	}
	databases := make([]schema.Database, 0, len(rows))
	for _, row := range rows {
		databases = append(databases, normalize.Database(row))
	}
	w.logger.Info("listed databases", zap.Int("count", len(databases)))
	return databases, nil
}

// DescribeDatabase looks up one database by name. found is false when no listed row
// carries that name.
func (w *Walker) DescribeDatabase(ctx context.Context, s *warehouse.Session, database string) (db schema.Database, found bool, err error) {
	rows, err := s.Query(ctx, ShowDatabaseQuery(database))
	if err != nil {
		return schema.Database{}, false, err
	}
	for _, row := range rows {
		candidate := normalize.Database(row)
		if strings.EqualFold(candidate.Name, database) {
			return candidate, true, nil
		}
	}
	return schema.Database{}, false, nil
}

func (w *Walker) ListSchemas(ctx context.Context, s *warehouse.Session, database string) ([]string, error) {
	rows, err := s.Query(ctx, ShowSchemasQuery(database))
	if err != nil {
		return nil, harvesterrors.Wrap(harvesterrors.ErrQuery, "failed to list schemas", err).WithDatabase(database)
	}
	schemas := make([]string, 0, len(rows))
	for _, row := range rows {
		if name := normalize.SchemaName(row); name != "" {
			schemas = append(schemas, name)
		}
	}
	return schemas, nil
}

// TablesForDatabase scopes s to database and collects the tables of every schema in listed
// order. A schema that cannot be scoped is skipped; any other failure aborts the database.
// Each table goes to sink before the next schema is visited.
func (w *Walker) TablesForDatabase(ctx context.Context, s *warehouse.Session, database string, sink TableSink) ([]schema.Table, error) {
	if err := s.UseDatabase(ctx, database); err != nil {
		return nil, err
	}

	schemas, err := w.ListSchemas(ctx, s, database)
	if err != nil {
		return nil, err
	}
	w.logger.DatabaseInfo(database, "listed schemas", zap.Int("count", len(schemas)))

	var tables []schema.Table
	for _, schemaName := range schemas {
		if err := s.UseSchema(ctx, database, schemaName); err != nil {
			w.logger.SchemaWarn(database, schemaName, "skipping schema", err)
			continue
		}
		scope := warehouse.Scope{Database: database, Schema: schemaName}

		found, err := w.tablesInScope(ctx, s, scope)
		if err != nil {
			return tables, err
		}
		if w.includeColumns && len(found) > 0 {
			w.attachColumns(ctx, s, scope, found)
		}

		for _, table := range found {
			if sink != nil {
				if err := sink(table); err != nil {
					return tables, harvesterrors.Wrap(harvesterrors.ErrOutputWrite, "failed to store table", err).
						WithDatabase(database).
						WithSchema(schemaName).
						WithContext("table", table.Name)
				}
			}
			tables = append(tables, table)
		}
		w.logger.Debug("schema harvested",
			zap.String("database", database),
			zap.String("schema", schemaName),
			zap.Int("tables", len(found)),
		)
	}

	return tables, nil
}

func (w *Walker) tablesInScope(ctx context.Context, s *warehouse.Session, scope warehouse.Scope) ([]schema.Table, error) {
	if err := s.Require(scope); err != nil {
		return nil, err
	}
	rows, err := s.Query(ctx, TablesQuery(scope.Database, scope.Schema))
	if err != nil {
		return nil, harvesterrors.Wrap(harvesterrors.ErrQuery, "failed to list tables", err).
			WithDatabase(scope.Database).
			WithSchema(scope.Schema)
	}
	tables := make([]schema.Table, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, normalize.Table(scope.Database, row))
	}
	return tables, nil
}

// attachColumns fills the column lists in place. Column metadata is best effort: a failed
// query leaves the lists empty and is only logged.
func (w *Walker) attachColumns(ctx context.Context, s *warehouse.Session, scope warehouse.Scope, tables []schema.Table) {
	if err := s.Require(scope); err != nil {
		w.logger.SchemaWarn(scope.Database, scope.Schema, "skipping columns", err)
		return
	}
	rows, err := s.Query(ctx, ColumnsQuery(scope.Database, scope.Schema))
	if err != nil {
		w.logger.SchemaWarn(scope.Database, scope.Schema, "skipping columns", err)
		return
	}

	byTable := make(map[string][]schema.Column)
	for _, row := range rows {
		name := normalize.String(row, "table_name")
		byTable[name] = append(byTable[name], normalize.Column(row))
	}
	for i := range tables {
		if cols, ok := byTable[tables[i].Name]; ok {
			tables[i].Columns = cols
		}
	}
}
