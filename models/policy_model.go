package models

import "time"

// FieldPolicy controls which columns a role sees for an entity.
// RoleID nil is the organization-wide default. IncludeFields, when non-empty,
// replaces the discovered column list; otherwise ExcludeFields is subtracted.
type FieldPolicy struct {
	ID            uint      `gorm:"primaryKey;column:id" json:"id"`
	EntityID      uint      `gorm:"column:entity_id;index" json:"entityId"`
	RoleID        *string   `gorm:"column:role_id;size:64" json:"roleId"`
	MaskedFields  []string  `gorm:"column:masked_fields;type:text;serializer:json" json:"maskedFields"`
	IncludeFields []string  `gorm:"column:include_fields;type:text;serializer:json" json:"includeFields"`
	ExcludeFields []string  `gorm:"column:exclude_fields;type:text;serializer:json" json:"excludeFields"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName returns the database table name for FieldPolicy model.
func (FieldPolicy) TableName() string {
	return "field_policies"
}

// RowPolicy holds a filter template scoping the rows a role may read.
// FilterTemplate is JSON in the structured filter form; string leaves may
// contain {{user.id}}-style placeholders resolved per request.
type RowPolicy struct {
	ID             uint      `gorm:"primaryKey;column:id" json:"id"`
	EntityID       uint      `gorm:"column:entity_id;index" json:"entityId"`
	RoleID         *string   `gorm:"column:role_id;size:64" json:"roleId"`
	FilterTemplate string    `gorm:"column:filter_template;type:text" json:"filterTemplate"`
	Description    string    `gorm:"column:description;size:255" json:"description,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName returns the database table name for RowPolicy model.
func (RowPolicy) TableName() string {
	return "row_policies"
}
