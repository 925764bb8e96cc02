package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		url    string
		driver string
		dsn    string
		ok     bool
	}{
		{"postgres://u:p@localhost/ledger?sslmode=disable", "postgres", "postgres://u:p@localhost/ledger?sslmode=disable", true},
		{"postgresql://localhost/ledger", "postgres", "postgresql://localhost/ledger", true},
		{"sqlite:///var/lib/snowmapper/ledger.db", "sqlite3", "/var/lib/snowmapper/ledger.db", true},
		{"sqlite3://ledger.db", "sqlite3", "ledger.db", true},
		{"sqlite://", "", "", false},
		{"mysql://localhost/ledger", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, dsn, err := ParseDatabaseURL(tt.url)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestLedger_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "sqlite3", l.Driver())

	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	first := Run{
		ID:         NewRunID(),
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Status:     StatusSucceeded,
		Tables:     12,
		OutputDir:  "output",
		Failures: []Failure{
			{Database: "RAW", Error: "QUERY_FAILED: boom"},
			{Database: "ARCHIVE", Error: "SCOPING_FAILED: denied"},
		},
	}
	second := Run{
		StartedAt:  started.Add(time.Hour),
		FinishedAt: started.Add(time.Hour + time.Second),
		Status:     StatusFailed,
		OutputDir:  "output",
		Error:      "CONNECTION_FAILED",
	}
	require.NoError(t, l.Record(ctx, first))
	require.NoError(t, l.Record(ctx, second))

	runs, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].ID)
	assert.Empty(t, runs[0].Failures)

	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, 12, runs[1].Tables)
	assert.True(t, runs[1].StartedAt.Equal(started))
	assert.Equal(t, []Failure{
		{Database: "ARCHIVE", Error: "SCOPING_FAILED: denied"},
		{Database: "RAW", Error: "QUERY_FAILED: boom"},
	}, runs[1].Failures)
}

func TestLedger_ReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(ctx, url)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, Run{StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(), Status: StatusSucceeded}))
	require.NoError(t, l.Close())

	l, err = Open(ctx, url)
	require.NoError(t, err)
	defer l.Close()
	runs, err := l.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
