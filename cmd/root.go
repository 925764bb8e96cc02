package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"snowmapper/internal/catalog"
	harvesterrors "snowmapper/internal/errors"
	"snowmapper/internal/harvest"
	"snowmapper/internal/ledger"
	"snowmapper/internal/logging"
	"snowmapper/internal/output"
	"snowmapper/internal/schema"
	"snowmapper/internal/warehouse"
	"snowmapper/pkg/config"
)

var cfgFile string

// snowflakeEnv maps config keys onto the unprefixed variables users already export.
var snowflakeEnv = map[string]string{
	"snowflake.account":   "SNOWFLAKE_ACCOUNT",
	"snowflake.user":      "SNOWFLAKE_USERNAME",
	"snowflake.password":  "SNOWFLAKE_PASSWORD",
	"snowflake.warehouse": "SNOWFLAKE_WAREHOUSE",
	"snowflake.database":  "SNOWFLAKE_DATABASE",
	"snowflake.role":      "SNOWFLAKE_ROLE",
}

// newConnector is replaced in tests.
var newConnector = func(cfg config.SnowflakeConfig, queryTimeout time.Duration, logger *logging.Logger) (warehouse.Connector, error) {
	c, err := warehouse.NewSQLConnector(cfg, queryTimeout, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var rootCmd = &cobra.Command{
	Use:   "snowmapper",
	Short: "Harvest Snowflake catalog metadata into files",
	Long: `A CLI tool that connects to a Snowflake account and writes warehouses, databases,
tables and columns as JSON or YAML documents, one directory per database.

Credentials come from SNOWFLAKE_ACCOUNT, SNOWFLAKE_USERNAME and SNOWFLAKE_PASSWORD
(a .env file in the working directory is loaded first).

Examples:
  snowmapper -o output
  snowmapper -f yaml -d ANALYTICS,RAW --concurrency 8
  SNOWFLAKE_DATABASE=ANALYTICS snowmapper --diagram mermaid
  snowmapper --ledger-url sqlite://harvests.db`,
	SilenceUsage: true,
	RunE:         runHarvest,
}

// Execute runs the root command; the context is cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.snowmapper.yaml)")
	rootCmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir, "Output root directory (purged on every run)")
	rootCmd.Flags().StringP("format", "f", config.DefaultFormat, "Document format: json, yaml")
	rootCmd.Flags().StringSliceP("databases", "d", []string{}, "Only harvest these databases (multi-database mode)")
	rootCmd.Flags().Int("concurrency", config.DefaultConcurrency, "Databases harvested in parallel")
	rootCmd.Flags().Duration("query-timeout", 0, "Per-statement timeout (0 disables)")
	rootCmd.Flags().Bool("include-columns", true, "Attach column metadata to tables")
	rootCmd.Flags().String("diagram", "none", "Per-database diagram: none, mermaid, plantuml, graphviz")
	rootCmd.Flags().String("ledger-url", "", "Record runs in sqlite:// or postgres:// database")
	rootCmd.Flags().Bool("debug", false, "Enable debug logging")

	viper.BindPFlag("output.dir", rootCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("output.format", rootCmd.Flags().Lookup("format"))
	viper.BindPFlag("output.diagram", rootCmd.Flags().Lookup("diagram"))
	viper.BindPFlag("harvest.databases", rootCmd.Flags().Lookup("databases"))
	viper.BindPFlag("harvest.concurrency", rootCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("harvest.query_timeout", rootCmd.Flags().Lookup("query-timeout"))
	viper.BindPFlag("harvest.include_columns", rootCmd.Flags().Lookup("include-columns"))
	viper.BindPFlag("ledger.url", rootCmd.Flags().Lookup("ledger-url"))
	viper.BindPFlag("log.debug", rootCmd.Flags().Lookup("debug"))
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring unreadable .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".snowmapper")
	}

	configureViper(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configureViper wires environment lookups and defaults that flags do not cover.
func configureViper(v *viper.Viper) {
	v.SetEnvPrefix("SNOWMAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range snowflakeEnv {
		v.BindEnv(key, env)
	}
	v.SetDefault("harvest.include_columns", true)
}

// loadConfig decodes, defaults and validates configuration. It performs no network I/O.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	level := logging.GetLogLevel(cfg.Log.Level)
	if cfg.Log.Debug {
		level = logging.DEBUG
	}
	return logging.NewLogger(logging.Options{Level: level, Component: "snowmapper", JSON: cfg.Log.JSON})
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	return run(cmd.Context(), cfg, logger, cmd.OutOrStdout())
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, out io.Writer) error {
	started := time.Now().UTC()
	runID := ledger.NewRunID()
	logger = logger.With(zap.String("run_id", runID))

	enc, err := output.NewEncoder(cfg.Output.Format)
	if err != nil {
		return err
	}

	connector, err := newConnector(cfg.Snowflake, cfg.Harvest.QueryTimeout, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := connector.Close(); err != nil {
			if !harvesterrors.HasCode(err, harvesterrors.ErrDisconnection) {
				err = harvesterrors.Wrap(harvesterrors.ErrDisconnection, "failed to close snowflake connections", err)
			}
			logger.Warn("disconnect failed", zap.Error(err))
		}
	}()

	if cfg.Pinned() {
		logger.Info("harvesting pinned database", zap.String("database", cfg.Snowflake.Database))
	} else {
		logger.Info("harvesting all visible databases", zap.Strings("filter", cfg.Harvest.Databases))
	}

	walker := catalog.NewWalker(
		catalog.WithColumns(cfg.Harvest.IncludeColumns),
		catalog.WithLogger(logger),
	)
	materializer := output.NewMaterializer(cfg.Output.Dir, enc, logger)
	h := harvest.New(connector, walker, materializer, harvest.OptionsFromConfig(cfg), logger)

	result, runErr := h.Run(ctx)
	recordRun(ctx, cfg.Ledger.URL, logger, newLedgerRun(runID, cfg, started, result, h.Failures(), runErr))
	if runErr != nil {
		logger.Error("harvest failed", zap.Error(runErr))
		return runErr
	}

	fmt.Fprintf(out, "Harvested %d tables into %s (%d databases failed)\n",
		len(result.Tables), cfg.Output.Dir, len(result.FailedDatabases))
	return nil
}

func newLedgerRun(id string, cfg *config.Config, started time.Time, result *schema.Result, failures []harvest.Failure, runErr error) ledger.Run {
	run := ledger.Run{
		ID:         id,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Status:     ledger.StatusSucceeded,
		OutputDir:  cfg.Output.Dir,
	}
	if result != nil {
		run.Tables = len(result.Tables)
	}
	if runErr != nil {
		run.Status = ledger.StatusFailed
		run.Error = runErr.Error()
	}
	for _, f := range failures {
		run.Failures = append(run.Failures, ledger.Failure{Database: f.Database, Error: f.Err.Error()})
	}
	return run
}

// recordRun stores the run when a ledger is configured. Ledger trouble never fails a harvest.
func recordRun(ctx context.Context, url string, logger *logging.Logger, run ledger.Run) {
	if url == "" {
		return
	}
	// Record even when the harvest context was cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	l, err := ledger.Open(ctx, url)
	if err != nil {
		logger.Warn("ledger unavailable", zap.Error(err))
		return
	}
	defer l.Close()

	if err := l.Record(ctx, run); err != nil {
		logger.Warn("failed to record run", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	logger.Debug("run recorded", zap.String("run_id", run.ID), zap.String("driver", l.Driver()))
}
