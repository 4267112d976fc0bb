package controllers

import (
	"dbautorest/models"
	"dbautorest/services/catalog"
)

// Example request/response models for Swagger documentation

// ListResponse represents one page of records
type ListResponse struct {
	Data     []map[string]interface{} `json:"data"`
	Page     int                      `json:"page" example:"1"`
	PageSize int                      `json:"pageSize" example:"20"`
	Total    int64                    `json:"total" example:"135"`
	HasNext  bool                     `json:"hasNext" example:"true"`
}

// RecordResponse represents a single record
type RecordResponse struct {
	Data map[string]interface{} `json:"data"`
}

// DiscoverResponse represents the tables found in a target database
type DiscoverResponse struct {
	Data []catalog.DiscoveredTable `json:"data"`
}

// EntityListResponse represents the exposed entities of a service
type EntityListResponse struct {
	Data []models.ExposedEntitySummary `json:"data"`
}

// EntityResponse represents a newly exposed entity
type EntityResponse struct {
	Data models.ExposedEntitySummary `json:"data"`
}

// FieldPolicyResponse represents a stored field policy
type FieldPolicyResponse struct {
	Data models.FieldPolicy `json:"data"`
}

// RowPolicyResponse represents a stored row policy
type RowPolicyResponse struct {
	Data models.RowPolicy `json:"data"`
}

// PoliciesResponse represents all policies of an entity
type PoliciesResponse struct {
	Data catalog.EntityPolicies `json:"data"`
}
