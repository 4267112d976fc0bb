// Package connection resolves a service and environment to the connection
// settings of its target database, backed by the catalog's
// service_connections table.
package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"dbautorest/pkg/apperror"
	"dbautorest/repository"
	"dbautorest/services/engine"
)

// DefaultEnvironment is used when the caller names none.
const DefaultEnvironment = "production"

// Resolver implements engine.ConnectionResolver over the catalog.
type Resolver struct {
	repo repository.ServiceConnectionRepository
}

// NewResolver creates a resolver over repo.
func NewResolver(repo repository.ServiceConnectionRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the connection of serviceID in environment.
func (r *Resolver) Resolve(_ context.Context, serviceID, environment string) (*engine.ResolvedService, error) {
	env := strings.TrimSpace(environment)
	if env == "" {
		env = DefaultEnvironment
	}
	conn, err := r.repo.GetByServiceAndEnv(nil, serviceID, env)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.CodeServiceNotFound, "service %q has no %s connection", serviceID, env)
		}
		return nil, fmt.Errorf("failed to resolve connection for service %s: %w", serviceID, err)
	}
	return &engine.ResolvedService{
		ServiceID:      conn.ServiceID,
		OrganizationID: conn.OrganizationID,
		ConnectionID:   conn.ConnectionID,
		Connection:     conn.Config(),
	}, nil
}
