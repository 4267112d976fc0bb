package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dbautorest/models"
	"dbautorest/pkg/apperror"
	"dbautorest/services/cache"
	"dbautorest/services/dialect"
	"dbautorest/services/driver"
	"dbautorest/services/engine"
)

type fakeBase struct{ txs int }

func (f *fakeBase) Begin() *gorm.DB { return nil }
func (f *fakeBase) Transaction(fn func(tx *gorm.DB) error) error {
	f.txs++
	return fn(nil)
}

type fakeEntityRepo struct {
	entities []models.ExposedEntity
	nextID   uint
}

func (f *fakeEntityRepo) Create(_ *gorm.DB, e *models.ExposedEntity) error {
	f.nextID++
	e.ID = f.nextID
	f.entities = append(f.entities, *e)
	return nil
}

func (f *fakeEntityRepo) GetByID(_ *gorm.DB, serviceID string, id uint) (*models.ExposedEntity, error) {
	for i := range f.entities {
		if f.entities[i].ServiceID == serviceID && f.entities[i].ID == id {
			e := f.entities[i]
			return &e, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEntityRepo) FindByRef(_ *gorm.DB, serviceID, ref string) (*models.ExposedEntity, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEntityRepo) ListByService(_ *gorm.DB, serviceID string) ([]models.ExposedEntity, error) {
	var out []models.ExposedEntity
	for _, e := range f.entities {
		if e.ServiceID == serviceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntityRepo) ExistsByNameOrAlias(_ *gorm.DB, serviceID, name, alias string) (bool, error) {
	for _, e := range f.entities {
		if e.ServiceID == serviceID && (e.Name == name || e.PathAlias == alias) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEntityRepo) Delete(_ *gorm.DB, id uint) error {
	for i := range f.entities {
		if f.entities[i].ID == id {
			f.entities = append(f.entities[:i], f.entities[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeFieldRepo struct {
	policies []models.FieldPolicy
	deleted  []uint
}

func (f *fakeFieldRepo) ListForRole(*gorm.DB, uint, string) ([]models.FieldPolicy, error) {
	return f.policies, nil
}
func (f *fakeFieldRepo) ListByEntity(_ *gorm.DB, id uint) ([]models.FieldPolicy, error) {
	var out []models.FieldPolicy
	for _, p := range f.policies {
		if p.EntityID == id {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeFieldRepo) Upsert(_ *gorm.DB, p *models.FieldPolicy) error {
	f.policies = append(f.policies, *p)
	return nil
}
func (f *fakeFieldRepo) DeleteByEntity(_ *gorm.DB, id uint) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRowRepo struct {
	policies []models.RowPolicy
	deleted  []uint
}

func (f *fakeRowRepo) ListForRole(*gorm.DB, uint, string) ([]models.RowPolicy, error) {
	return f.policies, nil
}
func (f *fakeRowRepo) ListByEntity(_ *gorm.DB, id uint) ([]models.RowPolicy, error) {
	var out []models.RowPolicy
	for _, p := range f.policies {
		if p.EntityID == id {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeRowRepo) Upsert(_ *gorm.DB, p *models.RowPolicy) error {
	f.policies = append(f.policies, *p)
	return nil
}
func (f *fakeRowRepo) DeleteByEntity(_ *gorm.DB, id uint) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeExecutor struct {
	driver.Executor
	tables  []driver.Table
	columns map[string][]driver.Column
}

func (f *fakeExecutor) Tables(context.Context) ([]driver.Table, error) { return f.tables, nil }
func (f *fakeExecutor) Columns(_ context.Context, t dialect.TableRef) ([]driver.Column, error) {
	return f.columns[t.Name], nil
}

type fakePools struct{ ex driver.Executor }

func (f *fakePools) Get(context.Context, models.ConnectionConfig) (driver.Executor, error) {
	return f.ex, nil
}
func (f *fakePools) Refresh(context.Context, models.ConnectionConfig, driver.Executor) (driver.Executor, error) {
	return f.ex, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, serviceID, _ string) (*engine.ResolvedService, error) {
	return &engine.ResolvedService{
		ServiceID:      serviceID,
		OrganizationID: "org-1",
		ConnectionID:   "conn-7",
		Connection:     models.ConnectionConfig{Type: "postgres", Host: "db", Database: "shop"},
	}, nil
}

type fixture struct {
	svc       CatalogService
	base      *fakeBase
	entities  *fakeEntityRepo
	fields    *fakeFieldRepo
	rows      *fakeRowRepo
	responses *cache.ResponseCache
}

func newFixture() *fixture {
	ex := &fakeExecutor{
		tables: []driver.Table{
			{Schema: "public", Name: "orders", Kind: models.KindTable},
			{Schema: "public", Name: "Ventes Été", Kind: models.KindView},
			{Schema: "pg_catalog", Name: "pg_class", Kind: models.KindTable},
		},
		columns: map[string][]driver.Column{
			"orders": {{Name: "id"}, {Name: "customer_id"}, {Name: "total"}},
		},
	}
	f := &fixture{
		base:      &fakeBase{},
		entities:  &fakeEntityRepo{},
		fields:    &fakeFieldRepo{},
		rows:      &fakeRowRepo{},
		responses: cache.NewResponseCache(8, time.Minute),
	}
	f.svc = NewCatalogServiceWithDeps(Deps{
		BaseRepo:       f.base,
		EntityRepo:     f.entities,
		FieldRepo:      f.fields,
		RowRepo:        f.rows,
		Pools:          &fakePools{ex: ex},
		Resolver:       fakeResolver{},
		Responses:      f.responses,
		IsSystemSchema: func(s string) bool { return s == "pg_catalog" },
	})
	return f
}

func (f *fixture) expose(t *testing.T) *models.ExposedEntity {
	t.Helper()
	e, err := f.svc.ExposeTable(context.Background(), ExposeRequest{ServiceID: "svc", Name: "orders", PrimaryKey: "id"})
	require.NoError(t, err)
	return e
}

// TestDiscoverTables_SkipsSystemSchemasAndMarksExposed tests discovery output.
func TestDiscoverTables_SkipsSystemSchemasAndMarksExposed(t *testing.T) {
	f := newFixture()
	f.expose(t)

	tables, err := f.svc.DiscoverTables(context.Background(), "svc", models.ConnectionConfig{Type: "postgres"})
	require.NoError(t, err)

	require.Len(t, tables, 2)
	assert.Equal(t, DiscoveredTable{Name: "orders", Schema: "public", Kind: models.KindTable, IsExposed: true, SuggestedAlias: "orders"}, tables[0])
	assert.Equal(t, "ventes-ete", tables[1].SuggestedAlias)
	assert.False(t, tables[1].IsExposed)
}

// TestDiscoverTables_UnsupportedType tests early rejection of unknown database types.
func TestDiscoverTables_UnsupportedType(t *testing.T) {
	f := newFixture()
	_, err := f.svc.DiscoverTables(context.Background(), "svc", models.ConnectionConfig{Type: "db2"})
	assert.Equal(t, apperror.CodeUnsupportedDatabaseType, apperror.CodeOf(err))
}

// TestExposeTable_Success tests defaults filled in from the live table and the resolved service.
func TestExposeTable_Success(t *testing.T) {
	f := newFixture()
	f.responses.Set("k", 1)

	e := f.expose(t)

	assert.Equal(t, "orders", e.PathAlias)
	assert.Equal(t, "public", e.Schema())
	assert.Equal(t, "org-1", e.OrganizationID)
	assert.Equal(t, "shop", e.DatabaseName)
	assert.Equal(t, "conn-7", e.ConnectionID)
	assert.Equal(t, models.KindTable, e.Kind)
	assert.True(t, e.AllowRead)
	assert.False(t, e.AllowDelete)
	assert.Zero(t, f.responses.Len())
}

// TestExposeTable_Rejections tests validation, verification and duplicate handling.
func TestExposeTable_Rejections(t *testing.T) {
	f := newFixture()
	f.expose(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ExposeRequest
		code apperror.Code
	}{
		{"missing primary key", ExposeRequest{ServiceID: "svc", Name: "orders"}, apperror.CodeValidation},
		{"unknown table", ExposeRequest{ServiceID: "svc", Name: "nope", PrimaryKey: "id"}, apperror.CodeValidation},
		{"primary key not a column", ExposeRequest{ServiceID: "svc", Name: "Ventes Été", PrimaryKey: "id", PathAlias: "ventes"}, apperror.CodeValidation},
		{"duplicate name", ExposeRequest{ServiceID: "svc", Name: "orders", PrimaryKey: "id", PathAlias: "o2"}, apperror.CodeConflict},
		{"duplicate alias", ExposeRequest{ServiceID: "svc", Name: "other", PrimaryKey: "id", PathAlias: "Orders"}, apperror.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ExposeTable(ctx, tt.req)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}

// TestRevokeExposure_CascadesInTransaction tests that policies go with the entity.
func TestRevokeExposure_CascadesInTransaction(t *testing.T) {
	f := newFixture()
	e := f.expose(t)

	require.NoError(t, f.svc.RevokeExposure(context.Background(), "svc", e.ID))

	assert.Equal(t, 1, f.base.txs)
	assert.Equal(t, []uint{e.ID}, f.fields.deleted)
	assert.Equal(t, []uint{e.ID}, f.rows.deleted)
	list, err := f.svc.ListExposedEntities(context.Background(), "svc")
	require.NoError(t, err)
	assert.Empty(t, list)

	err = f.svc.RevokeExposure(context.Background(), "svc", e.ID)
	assert.Equal(t, apperror.CodeEntityNotFound, apperror.CodeOf(err))
}

// TestUpsertFieldPolicy_EmptyRoleIsDefault tests that the organization default has no role.
func TestUpsertFieldPolicy_EmptyRoleIsDefault(t *testing.T) {
	f := newFixture()
	e := f.expose(t)

	p, err := f.svc.UpsertFieldPolicy(context.Background(), "svc", e.ID, FieldPolicyRequest{MaskedFields: []string{"total"}})
	require.NoError(t, err)
	assert.Nil(t, p.RoleID)

	p, err = f.svc.UpsertFieldPolicy(context.Background(), "svc", e.ID, FieldPolicyRequest{RoleID: "viewer", ExcludeFields: []string{"customer_id"}})
	require.NoError(t, err)
	require.NotNil(t, p.RoleID)
	assert.Equal(t, "viewer", *p.RoleID)

	_, err = f.svc.UpsertFieldPolicy(context.Background(), "svc", e.ID, FieldPolicyRequest{MaskedFields: []string{""}})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

// TestUpsertRowPolicy_ValidatesTemplate tests authoring-time template checks.
func TestUpsertRowPolicy_ValidatesTemplate(t *testing.T) {
	f := newFixture()
	e := f.expose(t)
	ctx := context.Background()

	p, err := f.svc.UpsertRowPolicy(ctx, "svc", e.ID, RowPolicyRequest{
		FilterTemplate: json.RawMessage(`{"field":"customer_id","op":"eq","value":"{{user.id}}"}`),
	})
	require.NoError(t, err)
	assert.Contains(t, p.FilterTemplate, "{{user.id}}")

	for _, bad := range []string{
		`{"field":"nope","op":"eq","value":1}`,
		`{"field":"customer_id","op":"regex","value":"x"}`,
		`{"field":"customer_id"`,
	} {
		_, err := f.svc.UpsertRowPolicy(ctx, "svc", e.ID, RowPolicyRequest{FilterTemplate: json.RawMessage(bad)})
		assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err), bad)
	}

	policies, err := f.svc.ListPolicies(ctx, "svc", e.ID)
	require.NoError(t, err)
	assert.Len(t, policies.RowPolicies, 1)
	assert.Equal(t, "orders", policies.Entity.Name)
}

// TestSlug tests alias derivation.
func TestSlug(t *testing.T) {
	tests := map[string]string{
		"orders":            "orders",
		"Customer Orders":   "customer-orders",
		"Ventes Été":        "ventes-ete",
		"  --weird__name!!": "weird__name",
		"Ça":                "ca",
		"!!!":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}
