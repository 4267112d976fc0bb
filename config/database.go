package config

import (
	"fmt"

	"dbautorest/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the global GORM instance holding the catalog (exposed entities and policies).
var DB *gorm.DB

// CatalogDSN builds the MySQL DSN for the catalog database.
func (c AppConfig) CatalogDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}

// ConnectDB establishes the catalog database connection using GORM.
func ConnectDB() error {
	logger.Infof("Connecting to catalog database %s@%s:%d/%s", Cfg.DBUser, Cfg.DBHost, Cfg.DBPort, Cfg.DBName)

	db, err := OpenCatalog(Cfg.CatalogDSN())
	if err != nil {
		logger.Errorf("GORM connection failed: %v", err)
		return err
	}
	logger.Infof("GORM connected successfully to catalog database %s", Cfg.DBName)

	DB = db
	return nil
}

// OpenCatalog opens a GORM handle on a MySQL-protocol DSN.
// Version probing is skipped so in-process MySQL servers work in tests.
// Unique violations surface as gorm.ErrDuplicatedKey.
func OpenCatalog(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       dsn,
		SkipInitializeWithVersion: true,
		DefaultStringSize:         255,
	}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	return db, nil
}
