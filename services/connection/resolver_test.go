package connection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dbautorest/models"
	"dbautorest/pkg/apperror"
)

type fakeConnections struct {
	rows []models.ServiceConnection
	err  error
}

func (f *fakeConnections) GetByServiceAndEnv(_ *gorm.DB, serviceID, env string) (*models.ServiceConnection, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.rows {
		if f.rows[i].ServiceID == serviceID && f.rows[i].Environment == env {
			return &f.rows[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConnections) ListByService(*gorm.DB, string) ([]models.ServiceConnection, error) {
	return f.rows, nil
}

// TestResolve_DefaultsToProduction tests environment fallback and config mapping.
func TestResolve_DefaultsToProduction(t *testing.T) {
	r := NewResolver(&fakeConnections{rows: []models.ServiceConnection{
		{ServiceID: "svc", Environment: "production", OrganizationID: "org", ConnectionID: "conn-1", DBType: "PostgreSQL", Host: "db", Port: 5432, Username: "app", Password: "pw", DatabaseName: "shop"},
		{ServiceID: "svc", Environment: "staging", DBType: "mysql", Host: "stage"},
	}})

	svc, err := r.Resolve(context.Background(), "svc", "")
	require.NoError(t, err)
	assert.Equal(t, "org", svc.OrganizationID)
	assert.Equal(t, "conn-1", svc.ConnectionID)
	assert.Equal(t, models.ConnectionConfig{Type: "postgresql", Host: "db", Port: 5432, User: "app", Password: "pw", Database: "shop"}, svc.Connection)

	svc, err = r.Resolve(context.Background(), "svc", "staging")
	require.NoError(t, err)
	assert.Equal(t, "stage", svc.Connection.Host)
}

// TestResolve_Missing_ServiceNotFound tests the error code for unknown services.
func TestResolve_Missing_ServiceNotFound(t *testing.T) {
	r := NewResolver(&fakeConnections{})

	_, err := r.Resolve(context.Background(), "nope", "production")
	assert.Equal(t, apperror.CodeServiceNotFound, apperror.CodeOf(err))
}

// TestResolve_StoreError_IsInternal tests that catalog failures are not reported as missing services.
func TestResolve_StoreError_IsInternal(t *testing.T) {
	r := NewResolver(&fakeConnections{err: assert.AnError})

	_, err := r.Resolve(context.Background(), "svc", "production")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, apperror.CodeInternal, apperror.CodeOf(err))
}
