package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestFromEnv_Defaults tests the configuration used when no variables are set.
func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("QUERY_TIMEOUT", "")
	t.Setenv("ROW_POLICY_FAILURE_MODE", "")

	c := FromEnv()

	assert.Equal(t, 15*time.Second, c.QueryTimeout)
	assert.Equal(t, 5*time.Second, c.RealtimePollInterval)
	assert.Equal(t, RowPolicyFailOpen, c.RowPolicyFailureMode)
	assert.True(t, c.IsSystemSchema("pg_catalog"))
	assert.False(t, c.IsSystemSchema("public"))
}

// TestFromEnv_Overrides tests duration parsing in both accepted formats.
func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("QUERY_TIMEOUT", "3")
	t.Setenv("DEDUP_GRACE", "40ms")
	t.Setenv("ROW_POLICY_FAILURE_MODE", "CLOSED")
	t.Setenv("SYSTEM_SCHEMAS", "audit, internal")

	c := FromEnv()

	assert.Equal(t, 3*time.Second, c.QueryTimeout)
	assert.Equal(t, 40*time.Millisecond, c.DedupGrace)
	assert.Equal(t, RowPolicyFailClosed, c.RowPolicyFailureMode)
	assert.Equal(t, []string{"audit", "internal"}, c.SystemSchemas)
}

// TestFromEnv_UnknownFailureMode_FallsBackToOpen tests that typos do not silently close access.
func TestFromEnv_UnknownFailureMode_FallsBackToOpen(t *testing.T) {
	t.Setenv("ROW_POLICY_FAILURE_MODE", "maybe")
	assert.Equal(t, RowPolicyFailOpen, FromEnv().RowPolicyFailureMode)
}
