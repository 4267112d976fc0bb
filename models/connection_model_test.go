package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFingerprint_DoesNotContainPassword tests that credentials never appear in pool keys.
func TestFingerprint_DoesNotContainPassword(t *testing.T) {
	cfg := ConnectionConfig{Type: "postgres", Host: "db1", Port: 5432, User: "app", Password: "s3cr3t-value", Database: "shop"}

	fp := cfg.Fingerprint()
	assert.NotContains(t, fp, "s3cr3t-value")
	assert.Contains(t, fp, "postgres:")
}

// TestFingerprint_NormalizesHostCase tests that equivalent configs share a pool.
func TestFingerprint_NormalizesHostCase(t *testing.T) {
	a := ConnectionConfig{Type: "mysql", Host: "DB.internal", Port: 3306, User: "app", Password: "x", Database: "shop"}
	b := ConnectionConfig{Type: "MySQL", Host: " db.internal ", Port: 3306, User: "app", Password: "x", Database: "shop"}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

// TestFingerprint_DistinguishesPhysicalDatabases tests that different databases never share a pool.
func TestFingerprint_DistinguishesPhysicalDatabases(t *testing.T) {
	base := ConnectionConfig{Type: "mysql", Host: "db", Port: 3306, User: "app", Password: "x", Database: "shop"}

	otherDB := base
	otherDB.Database = "billing"
	rotated := base
	rotated.Password = "y"
	withOpt := base
	withOpt.Options = map[string]string{"timeout": "5s"}

	assert.NotEqual(t, base.Fingerprint(), otherDB.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), rotated.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), withOpt.Fingerprint())
}
