package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	err := run(discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestRun_UnreachableRedisReturnsError(t *testing.T) {
	t.Setenv("PORT", "0")
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")

	err := run(discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis")
}
