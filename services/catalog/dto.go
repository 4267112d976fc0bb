package catalog

import (
	"encoding/json"

	"dbautorest/models"
)

// DiscoveredTable is a table found in a target database.
type DiscoveredTable struct {
	Name           string `json:"name"`
	Schema         string `json:"schema,omitempty"`
	Kind           string `json:"kind"`
	IsExposed      bool   `json:"isExposed"`
	SuggestedAlias string `json:"suggestedAlias"`
}

// ExposeRequest opts a table into the REST surface.
type ExposeRequest struct {
	ServiceID      string `json:"-" validate:"required"`
	OrganizationID string `json:"-"`
	Environment    string `json:"-"`

	Name        string `json:"name" validate:"required,max=128"`
	Schema      string `json:"schema" validate:"max=128"`
	PrimaryKey  string `json:"primaryKey" validate:"required,max=128"`
	PathAlias   string `json:"pathAlias" validate:"max=128"`
	DefaultSort string `json:"defaultSort" validate:"max=255"`
	// AllowRead defaults to true.
	AllowRead   *bool `json:"allowRead"`
	AllowCreate bool  `json:"allowCreate"`
	AllowUpdate bool  `json:"allowUpdate"`
	AllowDelete bool  `json:"allowDelete"`
}

// FieldPolicyRequest sets the field policy of a role, or the organization
// default when RoleID is empty.
type FieldPolicyRequest struct {
	RoleID        string   `json:"roleId" validate:"max=64"`
	MaskedFields  []string `json:"maskedFields" validate:"dive,required,max=128"`
	IncludeFields []string `json:"includeFields" validate:"dive,required,max=128"`
	ExcludeFields []string `json:"excludeFields" validate:"dive,required,max=128"`
}

// RowPolicyRequest sets the row policy of a role, or the organization
// default when RoleID is empty.
type RowPolicyRequest struct {
	RoleID         string          `json:"roleId" validate:"max=64"`
	FilterTemplate json.RawMessage `json:"filterTemplate" validate:"required"`
	Description    string          `json:"description" validate:"max=255"`
	Environment    string          `json:"-"`
}

// EntityPolicies lists every policy attached to an entity.
type EntityPolicies struct {
	Entity        models.ExposedEntitySummary `json:"entity"`
	FieldPolicies []models.FieldPolicy        `json:"fieldPolicies"`
	RowPolicies   []models.RowPolicy          `json:"rowPolicies"`
}
