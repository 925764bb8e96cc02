package config

import (
	"strings"
	"time"

	harvesterrors "snowmapper/internal/errors"
)

const (
	DefaultWarehouse   = "COMPUTE_WH"
	DefaultRole        = "SALES"
	DefaultOutputDir   = "output"
	DefaultFormat      = "json"
	DefaultConcurrency = 4
)

type Config struct {
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Output    OutputConfig    `mapstructure:"output"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Log       LogConfig       `mapstructure:"log"`
}

type SnowflakeConfig struct {
	Account   string `mapstructure:"account"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Warehouse string `mapstructure:"warehouse"`
	Database  string `mapstructure:"database"`
	Role      string `mapstructure:"role"`
}

type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	Format  string `mapstructure:"format"`
	Diagram string `mapstructure:"diagram"`
}

type HarvestConfig struct {
	Databases      []string      `mapstructure:"databases"`
	Concurrency    int           `mapstructure:"concurrency"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	IncludeColumns bool          `mapstructure:"include_columns"`
}

type LedgerConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Debug bool   `mapstructure:"debug"`
	JSON  bool   `mapstructure:"json"`
}

// requiredKeys maps each mandatory setting to the environment variable users set it with.
var requiredKeys = []struct {
	env   string
	value func(SnowflakeConfig) string
}{
	{"SNOWFLAKE_ACCOUNT", func(c SnowflakeConfig) string { return c.Account }},
	{"SNOWFLAKE_USERNAME", func(c SnowflakeConfig) string { return c.User }},
	{"SNOWFLAKE_PASSWORD", func(c SnowflakeConfig) string { return c.Password }},
}

// ApplyDefaults fills every optional setting that was left empty.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Snowflake.Warehouse) == "" {
		c.Snowflake.Warehouse = DefaultWarehouse
	}
	if strings.TrimSpace(c.Snowflake.Role) == "" {
		c.Snowflake.Role = DefaultRole
	}
	c.Snowflake.Database = strings.TrimSpace(c.Snowflake.Database)
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Output.Format == "" {
		c.Output.Format = DefaultFormat
	}
	if c.Output.Diagram == "" {
		c.Output.Diagram = "none"
	}
	if c.Harvest.Concurrency <= 0 {
		c.Harvest.Concurrency = DefaultConcurrency
	}
	c.Harvest.Databases = cleanList(c.Harvest.Databases)
}

// Validate reports every missing required key at once, then any invalid option.
func (c *Config) Validate() error {
	var missing []string
	for _, k := range requiredKeys {
		if strings.TrimSpace(k.value(c.Snowflake)) == "" {
			missing = append(missing, k.env)
		}
	}
	if len(missing) > 0 {
		return harvesterrors.MissingConfigError(missing)
	}

	switch c.Output.Format {
	case "json", "yaml", "yml":
	default:
		return harvesterrors.New(harvesterrors.ErrConfiguration,
			"invalid output format '"+c.Output.Format+"'. Valid formats: json, yaml, yml")
	}
	switch c.Output.Diagram {
	case "none", "mermaid", "plantuml", "graphviz":
	default:
		return harvesterrors.New(harvesterrors.ErrConfiguration,
			"invalid diagram format '"+c.Output.Diagram+"'. Valid formats: none, mermaid, plantuml, graphviz")
	}
	if c.Harvest.QueryTimeout < 0 {
		return harvesterrors.New(harvesterrors.ErrConfiguration, "harvest.query_timeout must not be negative")
	}
	return nil
}

// Pinned reports whether a single database was configured.
func (c *Config) Pinned() bool {
	return c.Snowflake.Database != ""
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
