package engine

import (
	"context"

	"dbautorest/models"
	"dbautorest/services/driver"
	"dbautorest/services/policy"
)

// CallerContext is the resolved caller identity handed over by the gateway.
type CallerContext struct {
	OrganizationID string
	RoleID         string
	RoleName       string
	UserID         string
	UserEmail      string
	// Attributes are extra user fields reachable from row policy templates
	// as {{user.<name>}}.
	Attributes map[string]any
}

// RequestContext scopes one engine call.
type RequestContext struct {
	ServiceID   string
	Environment string
	Caller      CallerContext
}

// RenderContext exposes the caller to row policy templates.
func (r RequestContext) RenderContext() policy.RenderContext {
	user := map[string]any{}
	for k, v := range r.Caller.Attributes {
		user[k] = v
	}
	user["id"] = r.Caller.UserID
	user["email"] = r.Caller.UserEmail
	return policy.RenderContext{
		"user":         user,
		"organization": map[string]any{"id": r.Caller.OrganizationID},
		"role":         map[string]any{"id": r.Caller.RoleID, "name": r.Caller.RoleName},
		"service":      map[string]any{"id": r.ServiceID},
		"environment":  r.Environment,
	}
}

// ResolvedService is a service with decrypted connection settings.
type ResolvedService struct {
	ServiceID      string
	OrganizationID string
	ConnectionID   string
	Connection     models.ConnectionConfig
}

// ConnectionResolver maps a service and environment onto its connection.
type ConnectionResolver interface {
	Resolve(ctx context.Context, serviceID, environment string) (*ResolvedService, error)
}

// Pools hands out executors. *driver.Manager implements it.
type Pools interface {
	Get(ctx context.Context, cfg models.ConnectionConfig) (driver.Executor, error)
	Refresh(ctx context.Context, cfg models.ConnectionConfig, stale driver.Executor) (driver.Executor, error)
}

// ListParams are the raw query parameters of a list or by-id call.
type ListParams struct {
	Fields   string
	Sort     string
	Filter   string
	Page     int
	PageSize int // 0 means the configured default; otherwise clamped to [1,200]
	// Cache opts this request into the response cache.
	Cache bool
	// BypassCache skips response cache reads and writes.
	BypassCache bool
}

// Envelope is the list response.
type Envelope struct {
	Data     []driver.Row `json:"data"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Total    int64        `json:"total"`
	HasNext  bool         `json:"hasNext"`
}
