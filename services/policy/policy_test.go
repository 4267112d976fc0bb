package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dbautorest/config"
	"dbautorest/models"
	"dbautorest/pkg/apperror"
	"dbautorest/services/filter"
)

type fakeFieldRepo struct {
	policies []models.FieldPolicy
}

func (f *fakeFieldRepo) ListForRole(_ *gorm.DB, entityID uint, roleID string) ([]models.FieldPolicy, error) {
	var out []models.FieldPolicy
	for _, p := range f.policies {
		if p.EntityID == entityID && (p.RoleID == nil || (roleID != "" && *p.RoleID == roleID)) {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeFieldRepo) ListByEntity(*gorm.DB, uint) ([]models.FieldPolicy, error) { return f.policies, nil }
func (f *fakeFieldRepo) Upsert(*gorm.DB, *models.FieldPolicy) error                { return nil }
func (f *fakeFieldRepo) DeleteByEntity(*gorm.DB, uint) error                       { return nil }

type fakeRowRepo struct {
	policies []models.RowPolicy
}

func (f *fakeRowRepo) ListForRole(_ *gorm.DB, entityID uint, roleID string) ([]models.RowPolicy, error) {
	var out []models.RowPolicy
	for _, p := range f.policies {
		if p.EntityID == entityID && (p.RoleID == nil || (roleID != "" && *p.RoleID == roleID)) {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeRowRepo) ListByEntity(*gorm.DB, uint) ([]models.RowPolicy, error) { return f.policies, nil }
func (f *fakeRowRepo) Upsert(*gorm.DB, *models.RowPolicy) error                { return nil }
func (f *fakeRowRepo) DeleteByEntity(*gorm.DB, uint) error                     { return nil }

func strPtr(s string) *string { return &s }

var (
	orders     = &models.ExposedEntity{ID: 1, ServiceID: "svc", Name: "orders", PrimaryKey: "id"}
	discovered = []string{"id", "customer_id", "total", "status", "org_id"}
	requestCtx = RenderContext{
		"user":         map[string]any{"id": "u-7", "email": "a@b.c", "level": 3},
		"organization": map[string]any{"id": "org-1"},
		"role":         map[string]any{"id": "r1", "name": "analyst"},
	}
)

// TestResolveFieldPolicy_Precedence tests role policy over org default over allow-all.
func TestResolveFieldPolicy_Precedence(t *testing.T) {
	repo := &fakeFieldRepo{policies: []models.FieldPolicy{
		{EntityID: 1, MaskedFields: []string{"customer_id"}},
		{EntityID: 1, RoleID: strPtr("analyst"), MaskedFields: []string{"total"}},
	}}
	e := NewEngine(repo, &fakeRowRepo{}, config.RowPolicyFailOpen)
	ctx := context.Background()

	role, err := e.ResolveFieldPolicy(ctx, orders, "analyst", discovered)
	require.NoError(t, err)
	assert.Equal(t, []string{"total"}, role.Masked)
	assert.Equal(t, discovered, role.Allowed)

	def, err := e.ResolveFieldPolicy(ctx, orders, "clerk", discovered)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id"}, def.Masked)

	none, err := NewEngine(&fakeFieldRepo{}, &fakeRowRepo{}, "").ResolveFieldPolicy(ctx, orders, "analyst", discovered)
	require.NoError(t, err)
	assert.Equal(t, discovered, none.Allowed)
	assert.Empty(t, none.Masked)
}

// TestApply_IncludeWinsOverExclude tests include and exclude list semantics.
func TestApply_IncludeWinsOverExclude(t *testing.T) {
	got := Apply(models.FieldPolicy{
		IncludeFields: []string{"status", "id", "ghost"},
		ExcludeFields: []string{"id"},
		MaskedFields:  []string{"status", "total"},
	}, discovered)
	assert.Equal(t, []string{"status", "id"}, got.Allowed)
	assert.Equal(t, []string{"status"}, got.Masked)
	assert.Equal(t, []string{"id"}, got.Readable())

	excl := Apply(models.FieldPolicy{ExcludeFields: []string{"org_id", "total"}}, discovered)
	assert.Equal(t, []string{"id", "customer_id", "status"}, excl.Allowed)
}

// TestRender_TypedWholeLeaf tests that whole placeholders keep their type.
func TestRender_TypedWholeLeaf(t *testing.T) {
	tpl := map[string]any{"and": []any{
		map[string]any{"field": "org_id", "op": "eq", "value": "{{organization.id}}"},
		map[string]any{"field": "customer_id", "op": "gte", "value": "{{ user.level }}"},
		map[string]any{"field": "status", "op": "eq", "value": "{{user.missing}}"},
		map[string]any{"field": "status", "op": "like", "value": "{{role.name}}-%"},
	}}
	out, err := Render(tpl, requestCtx)
	require.NoError(t, err)

	children := out.(map[string]any)["and"].([]any)
	assert.Equal(t, "org-1", children[0].(map[string]any)["value"])
	assert.Equal(t, 3, children[1].(map[string]any)["value"])
	assert.Nil(t, children[2].(map[string]any)["value"])
	assert.Equal(t, "analyst-%", children[3].(map[string]any)["value"])
	assert.Equal(t, "{{organization.id}}", tpl["and"].([]any)[0].(map[string]any)["value"], "input must not change")
}

// TestRender_ValueCannotChangeStructure tests that quotes in context values stay inside the leaf.
func TestRender_ValueCannotChangeStructure(t *testing.T) {
	rc := RenderContext{"user": map[string]any{"id": `x"},{"field":"id","op":"isnull","value":true}`}}
	node, err := Evaluate(`{"field":"customer_id","op":"eq","value":"{{user.id}}"}`, rc, discovered)
	require.NoError(t, err)
	assert.True(t, node.IsCondition())
	assert.Equal(t, rc["user"].(map[string]any)["id"], node.Value)
}

// TestRender_NonScalarFails tests that objects cannot be substituted.
func TestRender_NonScalarFails(t *testing.T) {
	_, err := Render("{{user}}", requestCtx)
	assert.True(t, apperror.Is(err, apperror.CodePolicyTemplateRender))

	_, err = Render("prefix-{{user.nope}}", requestCtx)
	assert.True(t, apperror.Is(err, apperror.CodePolicyTemplateRender))
}

// TestResolveRowPolicy_RoleThenDefault tests selection and rendering.
func TestResolveRowPolicy_RoleThenDefault(t *testing.T) {
	rows := &fakeRowRepo{policies: []models.RowPolicy{
		{EntityID: 1, FilterTemplate: `{"field":"org_id","op":"eq","value":"{{organization.id}}"}`},
		{EntityID: 1, RoleID: strPtr("analyst"), FilterTemplate: `[{"field":"org_id","op":"eq","value":"{{organization.id}}"},{"field":"customer_id","op":"eq","value":"{{user.id}}"}]`},
	}}
	e := NewEngine(&fakeFieldRepo{}, rows, config.RowPolicyFailOpen)

	node, err := e.ResolveRowPolicy(context.Background(), orders, "analyst", requestCtx, discovered)
	require.NoError(t, err)
	assert.Equal(t, filter.LogicAnd, node.Logic)
	assert.Equal(t, "u-7", node.Children[1].Value)

	node, err = e.ResolveRowPolicy(context.Background(), orders, "", requestCtx, discovered)
	require.NoError(t, err)
	assert.Equal(t, filter.Condition("org_id", filter.OpEq, "org-1"), node)

	node, err = NewEngine(&fakeFieldRepo{}, &fakeRowRepo{}, "").ResolveRowPolicy(context.Background(), orders, "analyst", requestCtx, discovered)
	require.NoError(t, err)
	assert.Nil(t, node)
}

// TestResolveRowPolicy_BrokenTemplate tests both failure modes.
func TestResolveRowPolicy_BrokenTemplate(t *testing.T) {
	rows := &fakeRowRepo{policies: []models.RowPolicy{
		{EntityID: 1, FilterTemplate: `{"field":"dropped_column","op":"eq","value":"{{user.id}}"}`},
	}}

	open, err := NewEngine(&fakeFieldRepo{}, rows, config.RowPolicyFailOpen).
		ResolveRowPolicy(context.Background(), orders, "", requestCtx, discovered)
	require.NoError(t, err)
	assert.Nil(t, open)

	closed, err := NewEngine(&fakeFieldRepo{}, rows, config.RowPolicyFailClosed).
		ResolveRowPolicy(context.Background(), orders, "", requestCtx, discovered)
	require.NoError(t, err)
	assert.Equal(t, filter.MatchNothing("id"), closed)
}

// TestCombine tests row policy and user filter composition.
func TestCombine(t *testing.T) {
	p := filter.Condition("org_id", filter.OpEq, "o")
	u := filter.Condition("status", filter.OpEq, "s")
	assert.Nil(t, Combine(nil, nil))
	assert.Same(t, p, Combine(p, nil))
	assert.Same(t, u, Combine(nil, u))
	both := Combine(p, u)
	assert.Same(t, p, both.Children[0])
	assert.Same(t, u, both.Children[1])
}

// TestValidateTemplate tests authoring-time checks.
func TestValidateTemplate(t *testing.T) {
	assert.NoError(t, ValidateTemplate(`{"field":"org_id","op":"eq","value":"{{organization.id}}"}`, discovered))
	assert.NoError(t, ValidateTemplate(`{"field":"customer_id","op":"in","value":["{{user.id}}","x"]}`, discovered))

	err := ValidateTemplate(`{"field":"nope","op":"eq","value":"{{user.id}}"}`, discovered)
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
	err = ValidateTemplate(`{"field":"org_id","op":"eq"`, discovered)
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
	err = ValidateTemplate(`{"field":"org_id","op":"in","value":"x"}`, discovered)
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}
