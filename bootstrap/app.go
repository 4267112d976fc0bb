// Package bootstrap wires the application's services together.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dbautorest/config"
	"dbautorest/models"
	"dbautorest/pkg/logger"
	"dbautorest/repository"
	"dbautorest/services/cache"
	"dbautorest/services/catalog"
	"dbautorest/services/connection"
	"dbautorest/services/driver"
	"dbautorest/services/engine"
	"dbautorest/services/policy"
	"dbautorest/services/realtime"
)

// App holds every long-lived component.
type App struct {
	DB        *gorm.DB
	Pools     *driver.Manager
	Inflight  *cache.Inflight
	Responses *cache.ResponseCache
	Resolver  engine.ConnectionResolver
	Engine    *engine.Engine
	Catalog   catalog.CatalogService
	Realtime  *realtime.Service
}

// Migrate creates or updates the catalog tables.
func Migrate(db *gorm.DB) error {
	logger.Infof("Migrating catalog tables...")
	if err := db.AutoMigrate(
		&models.ExposedEntity{},
		&models.FieldPolicy{},
		&models.RowPolicy{},
		&models.ServiceConnection{},
	); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	logger.Infof("Catalog migration completed successfully")
	return nil
}

// New builds the application on top of the catalog database db.
// pools may be nil, in which case a manager with cfg's pool settings is created.
func New(cfg config.AppConfig, db *gorm.DB, pools *driver.Manager) *App {
	if pools == nil {
		pools = driver.NewManager(driver.PoolOptions{
			MaxOpen:      cfg.PoolMaxOpen,
			MaxIdle:      cfg.PoolMaxIdle,
			ConnLifetime: cfg.PoolConnLifetime,
			DialTimeout:  cfg.QueryTimeout,
		})
	}

	entityRepo := repository.NewExposedEntityRepositoryWithDB(db)
	fieldRepo := repository.NewFieldPolicyRepositoryWithDB(db)
	rowRepo := repository.NewRowPolicyRepositoryWithDB(db)

	app := &App{
		DB:        db,
		Pools:     pools,
		Inflight:  cache.NewInflight(cfg.DedupGrace, cfg.DedupMaxEntries),
		Responses: cache.NewResponseCache(cfg.CacheMaxEntries, cfg.CacheTTL),
		Resolver:  connection.NewResolver(repository.NewServiceConnectionRepositoryWithDB(db)),
	}

	app.Engine = engine.New(engine.Deps{
		Entities:  entityRepo,
		Policies:  policy.NewEngine(fieldRepo, rowRepo, cfg.RowPolicyFailureMode),
		Pools:     pools,
		Resolver:  app.Resolver,
		Inflight:  app.Inflight,
		Responses: app.Responses,
	}, engine.Options{
		QueryTimeout:       cfg.QueryTimeout,
		DefaultPageSize:    cfg.DefaultPageSize,
		CacheListResponses: cfg.CacheListResponses,
	})

	app.Catalog = catalog.NewCatalogServiceWithDeps(catalog.Deps{
		BaseRepo:       repository.NewBaseRepositoryWithDB(db),
		EntityRepo:     entityRepo,
		FieldRepo:      fieldRepo,
		RowRepo:        rowRepo,
		Pools:          pools,
		Resolver:       app.Resolver,
		Responses:      app.Responses,
		IsSystemSchema: cfg.IsSystemSchema,
	})

	app.Realtime = realtime.NewService(realtime.Deps{
		Lister:   app.Engine,
		Entities: entityRepo,
		Resolver: app.Resolver,
		Pools:    pools,
	}, realtime.Options{
		DefaultInterval: cfg.RealtimePollInterval,
		Buffer:          cfg.RealtimeBuffer,
		CheckTimeout:    2 * cfg.QueryTimeout,
	})

	return app
}

// Shutdown stops realtime delivery, drops caches, closes target pools and
// finally the catalog database.
func (a *App) Shutdown(ctx context.Context) error {
	start := time.Now()
	var errs []error

	if err := a.Realtime.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("realtime: %w", err))
	}
	a.Inflight.Close()
	a.Responses.Purge()
	if err := a.Pools.Close(); err != nil {
		errs = append(errs, fmt.Errorf("pools: %w", err))
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("catalog: %w", err))
			}
		}
	}

	logger.Infof("Shutdown completed in %v", time.Since(start))
	return errors.Join(errs...)
}
