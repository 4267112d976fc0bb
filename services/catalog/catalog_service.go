// Package catalog manages which tables of a service are exposed through the
// REST surface, and the field and row policies attached to them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"dbautorest/models"
	"dbautorest/pkg/apperror"
	"dbautorest/pkg/logger"
	"dbautorest/repository"
	"dbautorest/services/cache"
	"dbautorest/services/dialect"
	"dbautorest/services/driver"
	"dbautorest/services/engine"
	"dbautorest/services/policy"
	"dbautorest/utils"
)

// CatalogService provides the administrative operations of the catalog.
// Every mutation invalidates the response cache.
type CatalogService interface {
	// DiscoverTables lists the tables, views and collections of the target
	// database, skipping system schemas.
	DiscoverTables(ctx context.Context, serviceID string, cfg models.ConnectionConfig) ([]DiscoveredTable, error)

	// ExposeTable verifies the table and primary key against the live
	// database and registers the entity. Returns CONFLICT when the name or
	// alias is already exposed for the service.
	ExposeTable(ctx context.Context, req ExposeRequest) (*models.ExposedEntity, error)

	ListExposedEntities(ctx context.Context, serviceID string) ([]models.ExposedEntitySummary, error)

	// RevokeExposure removes an entity and its policies.
	RevokeExposure(ctx context.Context, serviceID string, id uint) error

	UpsertFieldPolicy(ctx context.Context, serviceID string, entityID uint, req FieldPolicyRequest) (*models.FieldPolicy, error)

	// UpsertRowPolicy validates the template against the live columns before storing it.
	UpsertRowPolicy(ctx context.Context, serviceID string, entityID uint, req RowPolicyRequest) (*models.RowPolicy, error)

	ListPolicies(ctx context.Context, serviceID string, entityID uint) (*EntityPolicies, error)
}

type catalogService struct {
	baseRepo       repository.BaseRepository
	entityRepo     repository.ExposedEntityRepository
	fieldRepo      repository.FieldPolicyRepository
	rowRepo        repository.RowPolicyRepository
	pools          engine.Pools
	resolver       engine.ConnectionResolver
	responses      *cache.ResponseCache
	isSystemSchema func(string) bool
}

// Deps are the collaborators of the catalog service.
type Deps struct {
	BaseRepo       repository.BaseRepository
	EntityRepo     repository.ExposedEntityRepository
	FieldRepo      repository.FieldPolicyRepository
	RowRepo        repository.RowPolicyRepository
	Pools          engine.Pools
	Resolver       engine.ConnectionResolver
	Responses      *cache.ResponseCache
	IsSystemSchema func(string) bool
}

// NewCatalogServiceWithDeps creates a catalog service with injected dependencies.
func NewCatalogServiceWithDeps(d Deps) CatalogService {
	isSystem := d.IsSystemSchema
	if isSystem == nil {
		isSystem = func(string) bool { return false }
	}
	return &catalogService{
		baseRepo:       d.BaseRepo,
		entityRepo:     d.EntityRepo,
		fieldRepo:      d.FieldRepo,
		rowRepo:        d.RowRepo,
		pools:          d.Pools,
		resolver:       d.Resolver,
		responses:      d.Responses,
		isSystemSchema: isSystem,
	}
}

func (s *catalogService) DiscoverTables(ctx context.Context, serviceID string, cfg models.ConnectionConfig) ([]DiscoveredTable, error) {
	if _, err := dialect.ParseKind(cfg.Type); err != nil {
		return nil, err
	}
	ex, err := s.pools.Get(ctx, cfg)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeQueryExecution, err, "failed to connect to service %q", serviceID)
	}
	tables, err := ex.Tables(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeQueryExecution, err, "failed to list tables of service %q", serviceID)
	}

	exposed, err := s.entityRepo.ListByService(nil, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exposed entities for service %s: %w", serviceID, err)
	}
	isExposed := make(map[string]bool, len(exposed))
	for _, e := range exposed {
		isExposed[e.Schema()+"."+e.Name] = true
	}

	out := make([]DiscoveredTable, 0, len(tables))
	for _, t := range tables {
		if t.Schema != "" && s.isSystemSchema(t.Schema) {
			continue
		}
		out = append(out, DiscoveredTable{
			Name:           t.Name,
			Schema:         t.Schema,
			Kind:           t.Kind,
			IsExposed:      isExposed[t.Schema+"."+t.Name],
			SuggestedAlias: Slug(t.Name),
		})
	}
	logger.Debugf("Discovered %d tables for service %s (%d skipped)", len(out), serviceID, len(tables)-len(out))
	return out, nil
}

func (s *catalogService) ExposeTable(ctx context.Context, req ExposeRequest) (*models.ExposedEntity, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperror.Wrap(apperror.CodeValidation, err, "invalid expose request: %v", err)
	}
	alias := Slug(req.PathAlias)
	if alias == "" {
		alias = Slug(req.Name)
	}
	if alias == "" {
		return nil, apperror.New(apperror.CodeValidation, "cannot derive a path alias from %q", req.Name)
	}

	exists, err := s.entityRepo.ExistsByNameOrAlias(nil, req.ServiceID, req.Name, alias)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing exposure: %w", err)
	}
	if exists {
		return nil, apperror.New(apperror.CodeConflict, "table %q or alias %q is already exposed", req.Name, alias)
	}

	svc, err := s.resolver.Resolve(ctx, req.ServiceID, req.Environment)
	if err != nil {
		return nil, err
	}
	ex, err := s.pools.Get(ctx, svc.Connection)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeQueryExecution, err, "failed to connect to service %q", req.ServiceID)
	}
	table, err := findTable(ctx, ex, req.Schema, req.Name)
	if err != nil {
		return nil, err
	}
	columns, err := ex.Columns(ctx, dialect.TableRef{Schema: table.Schema, Name: table.Name})
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeQueryExecution, err, "failed to read columns of %q", req.Name)
	}
	if !contains(driver.ColumnNames(columns), req.PrimaryKey) {
		return nil, apperror.New(apperror.CodeValidation, "primary key %q is not a column of %q", req.PrimaryKey, req.Name)
	}

	orgID := req.OrganizationID
	if orgID == "" {
		orgID = svc.OrganizationID
	}
	entity := &models.ExposedEntity{
		OrganizationID: orgID,
		ServiceID:      req.ServiceID,
		ConnectionID:   svc.ConnectionID,
		DatabaseName:   svc.Connection.Database,
		Name:           table.Name,
		Kind:           table.Kind,
		PrimaryKey:     req.PrimaryKey,
		DefaultSort:    req.DefaultSort,
		PathAlias:      alias,
		AllowRead:      req.AllowRead == nil || *req.AllowRead,
		AllowCreate:    req.AllowCreate,
		AllowUpdate:    req.AllowUpdate,
		AllowDelete:    req.AllowDelete,
	}
	if table.Schema != "" {
		schema := table.Schema
		entity.SchemaName = &schema
	}

	if err := s.entityRepo.Create(nil, entity); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.New(apperror.CodeConflict, "table %q or alias %q is already exposed", req.Name, alias)
		}
		return nil, fmt.Errorf("failed to create exposed entity: %w", err)
	}
	s.invalidate()
	logger.Infof("Exposed %s as /%s for service %s", table.Name, alias, req.ServiceID)
	return entity, nil
}

func (s *catalogService) ListExposedEntities(ctx context.Context, serviceID string) ([]models.ExposedEntitySummary, error) {
	entities, err := s.entityRepo.ListByService(nil, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exposed entities for service %s: %w", serviceID, err)
	}
	out := make([]models.ExposedEntitySummary, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Summary())
	}
	return out, nil
}

func (s *catalogService) RevokeExposure(ctx context.Context, serviceID string, id uint) error {
	entity, err := s.entity(serviceID, id)
	if err != nil {
		return err
	}
	err = s.baseRepo.Transaction(func(tx *gorm.DB) error {
		if err := s.fieldRepo.DeleteByEntity(tx, entity.ID); err != nil {
			return fmt.Errorf("delete field policies: %w", err)
		}
		if err := s.rowRepo.DeleteByEntity(tx, entity.ID); err != nil {
			return fmt.Errorf("delete row policies: %w", err)
		}
		return s.entityRepo.Delete(tx, entity.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to revoke entity %d: %w", id, err)
	}
	s.invalidate()
	logger.Infof("Revoked exposure of %s (id=%d) for service %s", entity.Name, id, serviceID)
	return nil
}

func (s *catalogService) UpsertFieldPolicy(ctx context.Context, serviceID string, entityID uint, req FieldPolicyRequest) (*models.FieldPolicy, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperror.Wrap(apperror.CodeValidation, err, "invalid field policy: %v", err)
	}
	entity, err := s.entity(serviceID, entityID)
	if err != nil {
		return nil, err
	}
	p := &models.FieldPolicy{
		EntityID:      entity.ID,
		RoleID:        rolePtr(req.RoleID),
		MaskedFields:  req.MaskedFields,
		IncludeFields: req.IncludeFields,
		ExcludeFields: req.ExcludeFields,
	}
	if err := s.fieldRepo.Upsert(nil, p); err != nil {
		return nil, fmt.Errorf("failed to store field policy for entity %d: %w", entityID, err)
	}
	s.invalidate()
	return p, nil
}

func (s *catalogService) UpsertRowPolicy(ctx context.Context, serviceID string, entityID uint, req RowPolicyRequest) (*models.RowPolicy, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperror.Wrap(apperror.CodeValidation, err, "invalid row policy: %v", err)
	}
	entity, err := s.entity(serviceID, entityID)
	if err != nil {
		return nil, err
	}

	svc, err := s.resolver.Resolve(ctx, serviceID, req.Environment)
	if err != nil {
		return nil, err
	}
	ex, err := s.pools.Get(ctx, svc.Connection)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeQueryExecution, err, "failed to connect to service %q", serviceID)
	}
	columns, err := ex.Columns(ctx, dialect.TableRef{Schema: entity.Schema(), Name: entity.Name})
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeQueryExecution, err, "failed to read columns of %q", entity.Name)
	}

	template := strings.TrimSpace(string(req.FilterTemplate))
	if err := policy.ValidateTemplate(template, driver.ColumnNames(columns)); err != nil {
		return nil, err
	}

	p := &models.RowPolicy{
		EntityID:       entity.ID,
		RoleID:         rolePtr(req.RoleID),
		FilterTemplate: template,
		Description:    req.Description,
	}
	if err := s.rowRepo.Upsert(nil, p); err != nil {
		return nil, fmt.Errorf("failed to store row policy for entity %d: %w", entityID, err)
	}
	s.invalidate()
	return p, nil
}

func (s *catalogService) ListPolicies(ctx context.Context, serviceID string, entityID uint) (*EntityPolicies, error) {
	entity, err := s.entity(serviceID, entityID)
	if err != nil {
		return nil, err
	}
	fields, err := s.fieldRepo.ListByEntity(nil, entity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list field policies for entity %d: %w", entityID, err)
	}
	rows, err := s.rowRepo.ListByEntity(nil, entity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list row policies for entity %d: %w", entityID, err)
	}
	return &EntityPolicies{Entity: entity.Summary(), FieldPolicies: fields, RowPolicies: rows}, nil
}

func (s *catalogService) entity(serviceID string, id uint) (*models.ExposedEntity, error) {
	entity, err := s.entityRepo.GetByID(nil, serviceID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.CodeEntityNotFound, "entity %d not found", id)
		}
		return nil, fmt.Errorf("failed to load entity %d: %w", id, err)
	}
	return entity, nil
}

// invalidate drops cached responses so policy and exposure changes apply
// to the next request.
func (s *catalogService) invalidate() {
	if s.responses != nil {
		s.responses.Purge()
	}
}

func findTable(ctx context.Context, ex driver.Executor, schema, name string) (*driver.Table, error) {
	tables, err := ex.Tables(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeQueryExecution, err, "failed to list tables")
	}
	for i := range tables {
		t := tables[i]
		if t.Name == name && (schema == "" || t.Schema == schema) {
			return &t, nil
		}
	}
	return nil, apperror.New(apperror.CodeValidation, "table %q does not exist", name)
}

func rolePtr(role string) *string {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil
	}
	return &role
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
