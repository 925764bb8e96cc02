package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harvesterrors "snowmapper/internal/errors"
)

func validConfig() Config {
	return Config{
		Snowflake: SnowflakeConfig{
			Account:  "xy12345.eu-west-1",
			User:     "mapper",
			Password: "secret",
		},
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	assert.Equal(t, "COMPUTE_WH", cfg.Snowflake.Warehouse)
	assert.Equal(t, "SALES", cfg.Snowflake.Role)
	assert.Equal(t, "", cfg.Snowflake.Database)
	assert.False(t, cfg.Pinned())
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "none", cfg.Output.Diagram)
	assert.Equal(t, 4, cfg.Harvest.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.Snowflake.Role = "ANALYST"
	cfg.Snowflake.Warehouse = "REPORTING_WH"
	cfg.Snowflake.Database = " ANALYTICS "
	cfg.Harvest.Databases = []string{"A, B", " ", "C"}
	cfg.ApplyDefaults()

	assert.Equal(t, "ANALYST", cfg.Snowflake.Role)
	assert.Equal(t, "REPORTING_WH", cfg.Snowflake.Warehouse)
	assert.Equal(t, "ANALYTICS", cfg.Snowflake.Database)
	assert.True(t, cfg.Pinned())
	assert.Equal(t, []string{"A", "B", "C"}, cfg.Harvest.Databases)
}

func TestValidate_ReportsAllMissingKeys(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, harvesterrors.HasCode(err, harvesterrors.ErrConfiguration))
	assert.Contains(t, err.Error(), "SNOWFLAKE_ACCOUNT, SNOWFLAKE_USERNAME, SNOWFLAKE_PASSWORD")
}

func TestValidate_ReportsOnlyMissingKey(t *testing.T) {
	cfg := validConfig()
	cfg.Snowflake.Password = "  "
	cfg.ApplyDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNOWFLAKE_PASSWORD")
	assert.NotContains(t, err.Error(), "SNOWFLAKE_ACCOUNT")
}

func TestValidate_RejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"format", func(c *Config) { c.Output.Format = "xml" }},
		{"diagram", func(c *Config) { c.Output.Diagram = "svg" }},
		{"timeout", func(c *Config) { c.Harvest.QueryTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, harvesterrors.HasCode(err, harvesterrors.ErrConfiguration))
		})
	}
}

func TestValidate_AcceptsEveryEncoderFormat(t *testing.T) {
	for _, format := range []string{"json", "yaml", "yml"} {
		t.Run(format, func(t *testing.T) {
			cfg := validConfig()
			cfg.Output.Format = format
			cfg.ApplyDefaults()
			assert.NoError(t, cfg.Validate())
		})
	}
}
