package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, ".shelfkeeper", cfg.Storage.DataDir)
	assert.Equal(t, 14, cfg.Loans.PeriodDays)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHELF_STORAGE_BACKEND", "fs")
	t.Setenv("SHELF_STORAGE_DATADIR", "/tmp/shelf")
	t.Setenv("SHELF_LOANS_PERIODDAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fs", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/shelf", cfg.Storage.DataDir)
	assert.Equal(t, 7, cfg.Loans.PeriodDays)
}

func TestRejectsUnknownBackend(t *testing.T) {
	t.Setenv("SHELF_STORAGE_BACKEND", "s3")
	_, err := Load()
	assert.Error(t, err)
}

func TestRejectsBadLoanPeriod(t *testing.T) {
	t.Setenv("SHELF_LOANS_PERIODDAYS", "0")
	_, err := Load()
	assert.Error(t, err)
}
