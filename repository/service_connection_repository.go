package repository

import (
	"dbautorest/config"
	"dbautorest/models"

	"gorm.io/gorm"
)

// ServiceConnectionRepository provides data access operations for service connection records.
type ServiceConnectionRepository interface {
	GetByServiceAndEnv(tx *gorm.DB, serviceID, environment string) (*models.ServiceConnection, error)
	ListByService(tx *gorm.DB, serviceID string) ([]models.ServiceConnection, error)
}

type serviceConnectionRepository struct {
	db *gorm.DB
}

// NewServiceConnectionRepository creates a new service connection repository instance.
func NewServiceConnectionRepository() ServiceConnectionRepository {
	return NewServiceConnectionRepositoryWithDB(config.DB)
}

// NewServiceConnectionRepositoryWithDB creates a service connection repository bound to db.
func NewServiceConnectionRepositoryWithDB(db *gorm.DB) ServiceConnectionRepository {
	return &serviceConnectionRepository{db: db}
}

func (r *serviceConnectionRepository) GetByServiceAndEnv(tx *gorm.DB, serviceID, environment string) (*models.ServiceConnection, error) {
	var conn models.ServiceConnection
	if err := pick(tx, r.db).
		Where("service_id = ? AND environment = ?", serviceID, environment).
		First(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *serviceConnectionRepository) ListByService(tx *gorm.DB, serviceID string) ([]models.ServiceConnection, error) {
	var conns []models.ServiceConnection
	if err := pick(tx, r.db).Where("service_id = ?", serviceID).Order("environment").Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}
