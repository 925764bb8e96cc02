// Package harvest sequences one metadata harvest: connect, scope, discover, fan out per
// database, aggregate and disconnect.
package harvest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"snowmapper/internal/catalog"
	harvesterrors "snowmapper/internal/errors"
	"snowmapper/internal/generators"
	"snowmapper/internal/logging"
	"snowmapper/internal/output"
	"snowmapper/internal/schema"
	"snowmapper/internal/warehouse"
	"snowmapper/pkg/config"
)

// FallbackWarehouse is used when the configured warehouse is not visible to the role.
const FallbackWarehouse = config.DefaultWarehouse

type Options struct {
	Role      string
	Warehouse string
	// Database pins the run to one database. Empty means every visible database.
	Database string
	// Databases restricts the multi-database walk to these names, case-insensitively.
	Databases   []string
	Concurrency int
	// Diagram is a generators format name, or empty/"none".
	Diagram string
}

// OptionsFromConfig derives harvest options from loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Role:        cfg.Snowflake.Role,
		Warehouse:   cfg.Snowflake.Warehouse,
		Database:    cfg.Snowflake.Database,
		Databases:   cfg.Harvest.Databases,
		Concurrency: cfg.Harvest.Concurrency,
		Diagram:     cfg.Output.Diagram,
	}
}

// Failure is a database whose harvest failed in isolation.
type Failure struct {
	Database string
	Err      error
}

type Harvester struct {
	connector warehouse.Connector
	walker    *catalog.Walker
	out       *output.Materializer
	opts      Options
	logger    *logging.Logger

	mu          sync.Mutex
	transitions []State
	failures    []Failure
}

func New(connector warehouse.Connector, walker *catalog.Walker, out *output.Materializer, opts Options, logger *logging.Logger) *Harvester {
	if opts.Role == "" {
		opts.Role = config.DefaultRole
	}
	if opts.Warehouse == "" {
		opts.Warehouse = config.DefaultWarehouse
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Harvester{
		connector:   connector,
		walker:      walker,
		out:         out,
		opts:        opts,
		logger:      logger,
		transitions: []State{StateIdle},
	}
}

// State returns the current state.
func (h *Harvester) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transitions[len(h.transitions)-1]
}

// Transitions returns every state the run has passed through, in order.
func (h *Harvester) Transitions() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.transitions...)
}

// Failures returns the databases that failed in isolation.
func (h *Harvester) Failures() []Failure {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Failure(nil), h.failures...)
}

// Run performs one harvest. A nil error means the run completed, possibly with isolated
// database failures listed in the result.
func (h *Harvester) Run(ctx context.Context) (*schema.Result, error) {
	h.transition(StateConnecting)
	if err := h.out.PurgeAndRecreate(); err != nil {
		return nil, h.fail(StateConnecting, err)
	}

	sess, err := h.connector.Connect(ctx)
	if err != nil {
		if !harvesterrors.HasCode(err, harvesterrors.ErrConnection) {
			err = harvesterrors.Wrap(harvesterrors.ErrConnection, "failed to connect", err)
		}
		return nil, h.fail(StateConnecting, err)
	}

	result, runErr := h.harvest(ctx, sess)
	failedIn := h.State()

	h.transition(StateDisconnecting)
	if err := sess.Close(); err != nil {
		h.logger.Warn("disconnect failed", zap.Error(err))
	}

	if runErr != nil {
		return nil, h.fail(failedIn, runErr)
	}
	h.transition(StateDone)
	h.logger.Info("harvest complete",
		zap.Int("tables", len(result.Tables)),
		zap.Int("failed_databases", len(result.FailedDatabases)),
	)
	return result, nil
}

func (h *Harvester) harvest(ctx context.Context, sess *warehouse.Session) (*schema.Result, error) {
	target, err := h.prepare(ctx, sess)
	if err != nil {
		return nil, err
	}

	var tables []schema.Table
	if h.opts.Database != "" {
		h.transition(StateSingleDatabasePinned)
		tables, err = h.harvestDatabase(ctx, sess, h.describePinned(ctx, sess))
		if err != nil {
			return nil, err
		}
	} else {
		databases, err := h.walker.ListDatabases(ctx, sess)
		if err != nil {
			return nil, err
		}
		if err := h.out.Write(output.DatabasesPath(h.out.Ext()), databases); err != nil {
			return nil, err
		}
		h.transition(StateDatabasesListed)

		tables = h.fanOut(ctx, target, h.selectDatabases(databases))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	h.transition(StateAggregating)
	failed := []string{}
	for _, f := range h.Failures() {
		failed = append(failed, f.Database)
	}
	sort.Strings(failed)
	if tables == nil {
		tables = []schema.Table{}
	}
	return &schema.Result{
		Tables:          tables,
		FailedDatabases: failed,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// prepare scopes the main session to the configured role, stores the visible warehouses
// and switches to a usable one, whose name it returns.
func (h *Harvester) prepare(ctx context.Context, sess *warehouse.Session) (string, error) {
	if err := sess.UseRole(ctx, h.opts.Role); err != nil {
		return "", err
	}
	h.transition(StateRoleSet)

	warehouses, err := h.walker.ListWarehouses(ctx, sess)
	if err != nil {
		return "", err
	}
	if err := h.out.Write(output.WarehousesPath(h.out.Ext()), warehouses); err != nil {
		return "", err
	}
	h.transition(StateWarehousesListed)

	target := h.resolveWarehouse(warehouses)
	if err := sess.UseWarehouse(ctx, target); err != nil {
		return "", err
	}
	h.transition(StateWarehouseSet)
	return target, nil
}

func (h *Harvester) resolveWarehouse(warehouses []schema.Warehouse) string {
	if len(warehouses) == 0 {
		return h.opts.Warehouse
	}
	for _, w := range warehouses {
		if strings.EqualFold(w.Name, h.opts.Warehouse) {
			return w.Name
		}
	}
	h.logger.Warn("configured warehouse not found, falling back",
		zap.String("warehouse", h.opts.Warehouse),
		zap.String("fallback", FallbackWarehouse),
	)
	return FallbackWarehouse
}

// describePinned fetches the pinned database's listing row. The lookup is best effort: on
// failure the database is described by name alone.
func (h *Harvester) describePinned(ctx context.Context, sess *warehouse.Session) schema.Database {
	fallback := schema.Database{Name: h.opts.Database, Origin: schema.DefaultOrigin}
	db, found, err := h.walker.DescribeDatabase(ctx, sess, h.opts.Database)
	switch {
	case err != nil:
		h.logger.DatabaseError(h.opts.Database, "database details unavailable", err)
		return fallback
	case !found:
		h.logger.Warn("pinned database not listed", zap.String("database", h.opts.Database))
		return fallback
	}
	// Keep the configured spelling so paths and scoping match what was asked for.
	db.Name = h.opts.Database
	return db
}

func (h *Harvester) selectDatabases(databases []schema.Database) []schema.Database {
	if len(h.opts.Databases) == 0 {
		return databases
	}
	wanted := make(map[string]bool, len(h.opts.Databases))
	for _, name := range h.opts.Databases {
		wanted[strings.ToUpper(name)] = false
	}
	var selected []schema.Database
	for _, db := range databases {
		key := strings.ToUpper(db.Name)
		if _, ok := wanted[key]; ok {
			wanted[key] = true
			selected = append(selected, db)
		}
	}
	for _, name := range h.opts.Databases {
		if !wanted[strings.ToUpper(name)] {
			h.logger.Warn("requested database not found", zap.String("database", name))
		}
	}
	return selected
}

// fanOut harvests every database on its own session, at most Concurrency at a time. Task
// failures are recorded and never stop sibling tasks.
func (h *Harvester) fanOut(ctx context.Context, warehouseName string, databases []schema.Database) []schema.Table {
	h.transition(StatePerDatabaseFanOut)

	var (
		mu        sync.Mutex
		tables    []schema.Table
		completed atomic.Int32
		g         errgroup.Group
	)
	g.SetLimit(h.opts.Concurrency)

	for _, db := range databases {
		db := db
		g.Go(func() error {
			found, err := h.databaseTask(ctx, warehouseName, db)
			done := completed.Add(1)
			if err != nil {
				h.logger.DatabaseError(db.Name, "database harvest failed", err)
				h.mu.Lock()
				h.failures = append(h.failures, Failure{Database: db.Name, Err: err})
				h.mu.Unlock()
			} else {
				mu.Lock()
				tables = append(tables, found...)
				mu.Unlock()
			}
			h.logger.Info("database progress",
				zap.String("database", db.Name),
				zap.Int32("completed", done),
				zap.Int("total", len(databases)),
			)
			return nil
		})
	}
	_ = g.Wait()
	return tables
}

func (h *Harvester) databaseTask(ctx context.Context, warehouseName string, db schema.Database) ([]schema.Table, error) {
	sess, err := h.connector.Connect(ctx)
	if err != nil {
		return nil, harvesterrors.Wrap(harvesterrors.ErrConnection, "failed to open database session", err).
			WithDatabase(db.Name)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			h.logger.DatabaseError(db.Name, "disconnect failed", err)
		}
	}()

	if err := sess.UseRole(ctx, h.opts.Role); err != nil {
		return nil, err
	}
	if err := sess.UseWarehouse(ctx, warehouseName); err != nil {
		return nil, err
	}
	return h.harvestDatabase(ctx, sess, db)
}

// harvestDatabase writes the database summary, then walks and stores its tables.
func (h *Harvester) harvestDatabase(ctx context.Context, sess *warehouse.Session, db schema.Database) ([]schema.Table, error) {
	ext := h.out.Ext()
	if err := h.out.Write(output.MetadataPath(db.Name, ext), db.Metadata()); err != nil {
		return nil, err
	}

	tables, err := h.walker.TablesForDatabase(ctx, sess, db.Name, h.out.WriteTable)
	if err != nil {
		return nil, err
	}

	if gen, diagramExt, ok := generators.Lookup(h.opts.Diagram); ok {
		if err := h.out.WriteRaw(output.DiagramPath(db.Name, diagramExt), []byte(gen(db.Name, tables))); err != nil {
			return nil, err
		}
	}

	h.logger.DatabaseInfo(db.Name, "database harvested", zap.Int("tables", len(tables)))
	return tables, nil
}

func (h *Harvester) transition(s State) {
	h.mu.Lock()
	h.transitions = append(h.transitions, s)
	h.mu.Unlock()
	h.logger.Debug("harvest state", zap.String("state", string(s)))
}

func (h *Harvester) fail(in State, err error) error {
	h.transition(StateFailed)
	return harvesterrors.Wrap(harvesterrors.ErrHarvest, "harvest failed", err).
		WithContext("state", string(in))
}
