package models

import "time"

// Entity kinds.
const (
	KindTable      = "TABLE"
	KindView       = "VIEW"
	KindCollection = "COLLECTION"
)

// ExposedEntity is a table, view or collection an administrator opted into
// serving through the generic REST surface.
// (service_id, name) and (service_id, path_alias) are unique.
type ExposedEntity struct {
	ID             uint      `gorm:"primaryKey;column:id" json:"id"`
	OrganizationID string    `gorm:"column:organization_id;size:64;index" json:"organizationId"`
	ServiceID      string    `gorm:"column:service_id;size:64;uniqueIndex:ux_entity_service_name;uniqueIndex:ux_entity_service_alias" json:"serviceId"`
	ConnectionID   string    `gorm:"column:connection_id;size:64" json:"connectionId"`
	DatabaseName   string    `gorm:"column:database_name;size:128" json:"databaseName"`
	SchemaName     *string   `gorm:"column:schema_name;size:128" json:"schema,omitempty"` // nil for schema-less backends
	Name           string    `gorm:"column:name;size:128;uniqueIndex:ux_entity_service_name" json:"name"`
	Kind           string    `gorm:"column:kind;size:16" json:"kind"`
	PrimaryKey     string    `gorm:"column:primary_key;size:128" json:"primaryKey"`
	DefaultSort    string    `gorm:"column:default_sort;size:255" json:"defaultSort,omitempty"` // same grammar as the sort query parameter
	PathAlias      string    `gorm:"column:path_alias;size:128;uniqueIndex:ux_entity_service_alias" json:"pathAlias"`
	AllowRead      bool      `gorm:"column:allow_read" json:"allowRead"`
	AllowCreate    bool      `gorm:"column:allow_create" json:"allowCreate"`
	AllowUpdate    bool      `gorm:"column:allow_update" json:"allowUpdate"`
	AllowDelete    bool      `gorm:"column:allow_delete" json:"allowDelete"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the static table name for GORM.
func (ExposedEntity) TableName() string {
	return "exposed_entities"
}

// Schema returns the schema name or "" for schema-less entities.
func (e ExposedEntity) Schema() string {
	if e.SchemaName == nil {
		return ""
	}
	return *e.SchemaName
}

// ExposedEntitySummary is the listing view of an exposed entity.
type ExposedEntitySummary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Schema      string `json:"schema,omitempty"`
	Kind        string `json:"kind"`
	PathAlias   string `json:"pathAlias"`
	PrimaryKey  string `json:"primaryKey"`
	AllowRead   bool   `json:"allowRead"`
	AllowCreate bool   `json:"allowCreate"`
	AllowUpdate bool   `json:"allowUpdate"`
	AllowDelete bool   `json:"allowDelete"`
}

// Summary converts the entity to its listing view.
func (e ExposedEntity) Summary() ExposedEntitySummary {
	return ExposedEntitySummary{
		ID:          e.ID,
		Name:        e.Name,
		Schema:      e.Schema(),
		Kind:        e.Kind,
		PathAlias:   e.PathAlias,
		PrimaryKey:  e.PrimaryKey,
		AllowRead:   e.AllowRead,
		AllowCreate: e.AllowCreate,
		AllowUpdate: e.AllowUpdate,
		AllowDelete: e.AllowDelete,
	}
}
