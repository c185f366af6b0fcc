package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapReportsConfigError(t *testing.T) {
	t.Setenv("LEDGER_MAX_RETRIES", "-1")
	require.NotPanics(t, func() {
		_, logger, err := bootstrap("wallet-api")
		assert.ErrorContains(t, err, "load config")
		assert.Nil(t, logger)
	})
}

func TestBootstrapBuildsLogger(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("LEDGER_MAX_RETRIES", "2")
	cfg, logger, err := bootstrap("wallet-api")
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, 2, cfg.LedgerMaxRetries)
}
