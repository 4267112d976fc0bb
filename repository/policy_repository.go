package repository

import (
	"dbautorest/config"
	"dbautorest/models"

	"gorm.io/gorm"
)

// FieldPolicyRepository provides data access operations for field policy records.
type FieldPolicyRepository interface {
	// ListForRole returns the policies for roleID and the organization default (role_id IS NULL).
	ListForRole(tx *gorm.DB, entityID uint, roleID string) ([]models.FieldPolicy, error)
	ListByEntity(tx *gorm.DB, entityID uint) ([]models.FieldPolicy, error)
	Upsert(tx *gorm.DB, policy *models.FieldPolicy) error
	DeleteByEntity(tx *gorm.DB, entityID uint) error
}

// RowPolicyRepository provides data access operations for row policy records.
type RowPolicyRepository interface {
	ListForRole(tx *gorm.DB, entityID uint, roleID string) ([]models.RowPolicy, error)
	ListByEntity(tx *gorm.DB, entityID uint) ([]models.RowPolicy, error)
	Upsert(tx *gorm.DB, policy *models.RowPolicy) error
	DeleteByEntity(tx *gorm.DB, entityID uint) error
}

type fieldPolicyRepository struct {
	db *gorm.DB
}

type rowPolicyRepository struct {
	db *gorm.DB
}

// NewFieldPolicyRepository creates a new field policy repository instance.
func NewFieldPolicyRepository() FieldPolicyRepository {
	return NewFieldPolicyRepositoryWithDB(config.DB)
}

// NewFieldPolicyRepositoryWithDB creates a field policy repository bound to db.
func NewFieldPolicyRepositoryWithDB(db *gorm.DB) FieldPolicyRepository {
	return &fieldPolicyRepository{db: db}
}

// NewRowPolicyRepository creates a new row policy repository instance.
func NewRowPolicyRepository() RowPolicyRepository {
	return NewRowPolicyRepositoryWithDB(config.DB)
}

// NewRowPolicyRepositoryWithDB creates a row policy repository bound to db.
func NewRowPolicyRepositoryWithDB(db *gorm.DB) RowPolicyRepository {
	return &rowPolicyRepository{db: db}
}

// roleScope matches either the exact role or the organization default.
func roleScope(db *gorm.DB, entityID uint, roleID string) *gorm.DB {
	if roleID == "" {
		return db.Where("entity_id = ? AND role_id IS NULL", entityID)
	}
	return db.Where("entity_id = ? AND (role_id = ? OR role_id IS NULL)", entityID, roleID)
}

// sameRole matches the row an upsert should replace.
func sameRole(db *gorm.DB, entityID uint, roleID *string) *gorm.DB {
	if roleID == nil {
		return db.Where("entity_id = ? AND role_id IS NULL", entityID)
	}
	return db.Where("entity_id = ? AND role_id = ?", entityID, *roleID)
}

func (r *fieldPolicyRepository) ListForRole(tx *gorm.DB, entityID uint, roleID string) ([]models.FieldPolicy, error) {
	var policies []models.FieldPolicy
	if err := roleScope(pick(tx, r.db), entityID, roleID).Order("id").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *fieldPolicyRepository) ListByEntity(tx *gorm.DB, entityID uint) ([]models.FieldPolicy, error) {
	var policies []models.FieldPolicy
	if err := pick(tx, r.db).Where("entity_id = ?", entityID).Order("id").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *fieldPolicyRepository) Upsert(tx *gorm.DB, policy *models.FieldPolicy) error {
	db := pick(tx, r.db)
	var existing models.FieldPolicy
	res := sameRole(db, policy.EntityID, policy.RoleID).Limit(1).Find(&existing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		policy.ID = existing.ID
		policy.CreatedAt = existing.CreatedAt
		return db.Save(policy).Error
	}
	return db.Create(policy).Error
}

func (r *fieldPolicyRepository) DeleteByEntity(tx *gorm.DB, entityID uint) error {
	return pick(tx, r.db).Where("entity_id = ?", entityID).Delete(&models.FieldPolicy{}).Error
}

func (r *rowPolicyRepository) ListForRole(tx *gorm.DB, entityID uint, roleID string) ([]models.RowPolicy, error) {
	var policies []models.RowPolicy
	if err := roleScope(pick(tx, r.db), entityID, roleID).Order("id").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *rowPolicyRepository) ListByEntity(tx *gorm.DB, entityID uint) ([]models.RowPolicy, error) {
	var policies []models.RowPolicy
	if err := pick(tx, r.db).Where("entity_id = ?", entityID).Order("id").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *rowPolicyRepository) Upsert(tx *gorm.DB, policy *models.RowPolicy) error {
	db := pick(tx, r.db)
	var existing models.RowPolicy
	res := sameRole(db, policy.EntityID, policy.RoleID).Limit(1).Find(&existing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		policy.ID = existing.ID
		policy.CreatedAt = existing.CreatedAt
		return db.Save(policy).Error
	}
	return db.Create(policy).Error
}

func (r *rowPolicyRepository) DeleteByEntity(tx *gorm.DB, entityID uint) error {
	return pick(tx, r.db).Where("entity_id = ?", entityID).Delete(&models.RowPolicy{}).Error
}
