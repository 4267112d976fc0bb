package repository

import (
	"errors"

	"dbautorest/config"
	"dbautorest/models"

	"gorm.io/gorm"
)

// ExposedEntityRepository provides data access operations for exposed entity records.
type ExposedEntityRepository interface {
	Create(tx *gorm.DB, entity *models.ExposedEntity) error
	GetByID(tx *gorm.DB, serviceID string, id uint) (*models.ExposedEntity, error)
	// FindByRef looks the entity up by path alias first, then by name.
	FindByRef(tx *gorm.DB, serviceID, ref string) (*models.ExposedEntity, error)
	ListByService(tx *gorm.DB, serviceID string) ([]models.ExposedEntity, error)
	ExistsByNameOrAlias(tx *gorm.DB, serviceID, name, alias string) (bool, error)
	Delete(tx *gorm.DB, id uint) error
}

type exposedEntityRepository struct {
	db *gorm.DB
}

// NewExposedEntityRepository creates a new exposed entity repository instance.
func NewExposedEntityRepository() ExposedEntityRepository {
	return NewExposedEntityRepositoryWithDB(config.DB)
}

// NewExposedEntityRepositoryWithDB creates an exposed entity repository bound to db.
func NewExposedEntityRepositoryWithDB(db *gorm.DB) ExposedEntityRepository {
	return &exposedEntityRepository{db: db}
}

func (r *exposedEntityRepository) Create(tx *gorm.DB, entity *models.ExposedEntity) error {
	return pick(tx, r.db).Create(entity).Error
}

func (r *exposedEntityRepository) GetByID(tx *gorm.DB, serviceID string, id uint) (*models.ExposedEntity, error) {
	var entity models.ExposedEntity
	if err := pick(tx, r.db).Where("service_id = ? AND id = ?", serviceID, id).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *exposedEntityRepository) FindByRef(tx *gorm.DB, serviceID, ref string) (*models.ExposedEntity, error) {
	db := pick(tx, r.db)
	var entity models.ExposedEntity
	err := db.Where("service_id = ? AND path_alias = ?", serviceID, ref).First(&entity).Error
	if err == nil {
		return &entity, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := db.Where("service_id = ? AND name = ?", serviceID, ref).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *exposedEntityRepository) ListByService(tx *gorm.DB, serviceID string) ([]models.ExposedEntity, error) {
	var entities []models.ExposedEntity
	if err := pick(tx, r.db).Where("service_id = ?", serviceID).Order("name").Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *exposedEntityRepository) ExistsByNameOrAlias(tx *gorm.DB, serviceID, name, alias string) (bool, error) {
	var count int64
	if err := pick(tx, r.db).Model(&models.ExposedEntity{}).
		Where("service_id = ? AND (name = ? OR path_alias = ?)", serviceID, name, alias).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *exposedEntityRepository) Delete(tx *gorm.DB, id uint) error {
	return pick(tx, r.db).Where("id = ?", id).Delete(&models.ExposedEntity{}).Error
}
