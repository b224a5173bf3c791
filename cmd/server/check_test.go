package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range []string{"APP_ENV", "DATABASE_URL", "AUTH_SECRET", "REDIS_URL", "SMTP_HOST", "SMTP_USER", "SMTP_PASS"} {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestCheckConfig_Valid(t *testing.T) {
	setEnv(t, map[string]string{
		"APP_ENV":      "test",
		"DATABASE_URL": "sqlite://blog-dev.db",
		"AUTH_SECRET":  strings.Repeat("s", 32),
	})

	var out bytes.Buffer
	checkConfigCmd.SetOut(&out)
	require.NoError(t, checkConfigCmd.RunE(checkConfigCmd, nil))
	assert.Contains(t, out.String(), "configuration is valid")
	assert.Contains(t, out.String(), "sqlite")
}

func TestCheckConfig_ReportsEveryProblem(t *testing.T) {
	setEnv(t, map[string]string{
		"APP_ENV":      "production",
		"DATABASE_URL": "sqlite://blog-dev.db",
		"AUTH_SECRET":  "short",
	})

	var out bytes.Buffer
	checkConfigCmd.SetOut(&out)
	require.Error(t, checkConfigCmd.RunE(checkConfigCmd, nil))
	assert.Contains(t, out.String(), "AUTH_SECRET")
	assert.Contains(t, out.String(), "DATABASE_URL")
	assert.Contains(t, out.String(), "SMTP_HOST")
}

func TestSessionsPrune(t *testing.T) {
	setEnv(t, map[string]string{
		"APP_ENV":      "test",
		"DATABASE_URL": "sqlite://" + filepath.Join(t.TempDir(), "blog-dev.db"),
		"AUTH_SECRET":  strings.Repeat("s", 32),
	})

	var out bytes.Buffer
	sessionsPruneCmd.SetOut(&out)
	sessionsPruneCmd.SetContext(context.Background())
	require.NoError(t, sessionsPruneCmd.RunE(sessionsPruneCmd, nil))
	assert.Contains(t, out.String(), "removed 0 expired session(s) from sqlite")
}
