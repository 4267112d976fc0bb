package repository

import (
	"dbautorest/config"

	"gorm.io/gorm"
)

// BaseRepository provides transaction management capabilities for database operations.
type BaseRepository interface {
	Begin() *gorm.DB
	Transaction(fn func(tx *gorm.DB) error) error
}

type baseRepository struct {
	db *gorm.DB
}

// NewBaseRepository creates a new base repository instance with database connection.
func NewBaseRepository() BaseRepository {
	return NewBaseRepositoryWithDB(config.DB)
}

// NewBaseRepositoryWithDB creates a base repository bound to the given handle.
func NewBaseRepositoryWithDB(db *gorm.DB) BaseRepository {
	return &baseRepository{db: db}
}

func (r *baseRepository) Begin() *gorm.DB {
	return r.db.Begin()
}

// Transaction runs fn inside a transaction, rolling back when fn returns an error.
func (r *baseRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// pick returns tx when the caller is inside a transaction, else the default handle.
func pick(tx, db *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
