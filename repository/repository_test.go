package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dbautorest/config"
	"dbautorest/models"
	"dbautorest/pkg/testdb"
)

const catalogDDL = `CREATE TABLE exposed_entities (
	id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	organization_id VARCHAR(64),
	service_id VARCHAR(64),
	connection_id VARCHAR(64),
	database_name VARCHAR(128),
	schema_name VARCHAR(128),
	name VARCHAR(128),
	kind VARCHAR(16),
	primary_key VARCHAR(128),
	default_sort VARCHAR(255),
	path_alias VARCHAR(128),
	allow_read BOOLEAN,
	allow_create BOOLEAN,
	allow_update BOOLEAN,
	allow_delete BOOLEAN,
	created_at DATETIME(3),
	updated_at DATETIME(3),
	UNIQUE KEY ux_entity_service_name (service_id, name),
	UNIQUE KEY ux_entity_service_alias (service_id, path_alias)
)`

const fieldPolicyDDL = `CREATE TABLE field_policies (
	id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	entity_id BIGINT UNSIGNED,
	role_id VARCHAR(64),
	masked_fields TEXT,
	include_fields TEXT,
	exclude_fields TEXT,
	created_at DATETIME(3),
	updated_at DATETIME(3)
)`

const rowPolicyDDL = `CREATE TABLE row_policies (
	id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	entity_id BIGINT UNSIGNED,
	role_id VARCHAR(64),
	filter_template TEXT,
	description VARCHAR(255),
	created_at DATETIME(3),
	updated_at DATETIME(3)
)`

const serviceConnectionDDL = `CREATE TABLE service_connections (
	id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	service_id VARCHAR(64),
	environment VARCHAR(32),
	organization_id VARCHAR(64),
	connection_id VARCHAR(64),
	db_type VARCHAR(16),
	host VARCHAR(255),
	port INT,
	username VARCHAR(128),
	password VARCHAR(255),
	database_name VARCHAR(128),
	tls BOOLEAN
)`

func newCatalog(t *testing.T) *gorm.DB {
	t.Helper()
	srv, err := testdb.Start(context.Background(), "catalog")
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	require.NoError(t, srv.Exec(catalogDDL, fieldPolicyDDL, rowPolicyDDL, serviceConnectionDDL))

	db, err := config.OpenCatalog(srv.DSN())
	require.NoError(t, err)
	return db
}

func strPtr(s string) *string { return &s }

// TestExposedEntityRepository_FindByRef_PrefersAlias tests lookup order alias then name.
func TestExposedEntityRepository_FindByRef_PrefersAlias(t *testing.T) {
	db := newCatalog(t)
	repo := NewExposedEntityRepositoryWithDB(db)

	require.NoError(t, repo.Create(nil, &models.ExposedEntity{ServiceID: "svc", Name: "customer_orders", PathAlias: "orders", Kind: models.KindTable, PrimaryKey: "id", AllowRead: true}))
	require.NoError(t, repo.Create(nil, &models.ExposedEntity{ServiceID: "svc", Name: "orders", PathAlias: "legacy-orders", Kind: models.KindTable, PrimaryKey: "id", AllowRead: true}))

	byAlias, err := repo.FindByRef(nil, "svc", "orders")
	require.NoError(t, err)
	assert.Equal(t, "customer_orders", byAlias.Name)

	byName, err := repo.FindByRef(nil, "svc", "customer_orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", byName.PathAlias)

	_, err = repo.FindByRef(nil, "other", "orders")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	exists, err := repo.ExistsByNameOrAlias(nil, "svc", "nope", "legacy-orders")
	require.NoError(t, err)
	assert.True(t, exists)
}

// TestPolicyRepository_Upsert_ReplacesSameRole tests that one row exists per entity and role.
func TestPolicyRepository_Upsert_ReplacesSameRole(t *testing.T) {
	db := newCatalog(t)
	repo := NewFieldPolicyRepositoryWithDB(db)

	require.NoError(t, repo.Upsert(nil, &models.FieldPolicy{EntityID: 1, RoleID: strPtr("analyst"), MaskedFields: []string{"email"}}))
	require.NoError(t, repo.Upsert(nil, &models.FieldPolicy{EntityID: 1, RoleID: strPtr("analyst"), MaskedFields: []string{"phone"}}))
	require.NoError(t, repo.Upsert(nil, &models.FieldPolicy{EntityID: 1, MaskedFields: []string{"ssn"}}))

	all, err := repo.ListByEntity(nil, 1)
	require.NoError(t, err)
	require.Len(t, all, 2)

	forRole, err := repo.ListForRole(nil, 1, "analyst")
	require.NoError(t, err)
	require.Len(t, forRole, 2)
	for _, p := range forRole {
		if p.RoleID != nil {
			assert.Equal(t, []string{"phone"}, p.MaskedFields)
		}
	}

	orgOnly, err := repo.ListForRole(nil, 1, "")
	require.NoError(t, err)
	require.Len(t, orgOnly, 1)
	assert.Nil(t, orgOnly[0].RoleID)
}

// TestRevokeCascade_RunsInTransaction tests deleting an entity with its policies.
func TestRevokeCascade_RunsInTransaction(t *testing.T) {
	db := newCatalog(t)
	entities := NewExposedEntityRepositoryWithDB(db)
	fields := NewFieldPolicyRepositoryWithDB(db)
	rows := NewRowPolicyRepositoryWithDB(db)

	e := &models.ExposedEntity{ServiceID: "svc", Name: "users", PathAlias: "users", Kind: models.KindTable, PrimaryKey: "id"}
	require.NoError(t, entities.Create(nil, e))
	require.NoError(t, fields.Upsert(nil, &models.FieldPolicy{EntityID: e.ID}))
	require.NoError(t, rows.Upsert(nil, &models.RowPolicy{EntityID: e.ID, FilterTemplate: `{"field":"org","op":"eq","value":"{{organization.id}}"}`}))

	err := NewBaseRepositoryWithDB(db).Transaction(func(tx *gorm.DB) error {
		if err := fields.DeleteByEntity(tx, e.ID); err != nil {
			return err
		}
		if err := rows.DeleteByEntity(tx, e.ID); err != nil {
			return err
		}
		return entities.Delete(tx, e.ID)
	})
	require.NoError(t, err)

	list, err := entities.ListByService(nil, "svc")
	require.NoError(t, err)
	assert.Empty(t, list)
	rp, err := rows.ListByEntity(nil, e.ID)
	require.NoError(t, err)
	assert.Empty(t, rp)
}

// TestServiceConnectionRepository_GetByServiceAndEnv tests environment scoped lookup.
func TestServiceConnectionRepository_GetByServiceAndEnv(t *testing.T) {
	db := newCatalog(t)
	require.NoError(t, db.Create(&models.ServiceConnection{ServiceID: "svc", Environment: "prod", DBType: "postgres", Host: "pg", Port: 5432}).Error)
	require.NoError(t, db.Create(&models.ServiceConnection{ServiceID: "svc", Environment: "dev", DBType: "mysql", Host: "my", Port: 3306}).Error)

	repo := NewServiceConnectionRepositoryWithDB(db)
	conn, err := repo.GetByServiceAndEnv(nil, "svc", "dev")
	require.NoError(t, err)
	assert.Equal(t, "mysql", conn.Config().Type)

	all, err := repo.ListByService(nil, "svc")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
