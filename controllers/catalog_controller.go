package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dbautorest/pkg/logger"
	"dbautorest/services/catalog"
	"dbautorest/services/engine"
	"dbautorest/utils"
)

var (
	catalogSrv catalog.CatalogService
	resolver   engine.ConnectionResolver
)

// SetCatalogService sets the catalog service instance.
// Used for dependency injection in tests to provide mock implementations.
func SetCatalogService(s catalog.CatalogService) {
	catalogSrv = s
}

// SetConnectionResolver sets the resolver used to look up service connections.
func SetConnectionResolver(r engine.ConnectionResolver) {
	resolver = r
}

// DiscoverTables lists the tables of a service's database
// @Summary Discover tables
// @Description Lists tables, views and collections of the service's target database, skipping system schemas
// @Tags Catalog
// @Produce json
// @Param service path string true "Service ID"
// @Success 200 {object} DiscoverResponse
// @Failure 404 {object} utils.ErrorBody "Service not found"
// @Failure 500 {object} utils.ErrorBody "Internal server error"
// @Router /api/services/{service}/tables [get]
func discoverTables(c *gin.Context) {
	rc := requestContext(c)
	svc, err := resolver.Resolve(c.Request.Context(), rc.ServiceID, rc.Environment)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	tables, err := catalogSrv.DiscoverTables(c.Request.Context(), rc.ServiceID, svc.Connection)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": tables})
}

// ListExposedEntities lists the exposed entities of a service
// @Summary List exposed entities
// @Tags Catalog
// @Produce json
// @Param service path string true "Service ID"
// @Success 200 {object} EntityListResponse
// @Failure 500 {object} utils.ErrorBody "Internal server error"
// @Router /api/services/{service}/entities [get]
func listExposedEntities(c *gin.Context) {
	entities, err := catalogSrv.ListExposedEntities(c.Request.Context(), c.Param("service"))
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": entities})
}

// ExposeTable exposes a table through the REST surface
// @Summary Expose table
// @Description Verifies the table and primary key against the live database and registers it
// @Tags Catalog
// @Accept json
// @Produce json
// @Param service path string true "Service ID"
// @Param entity body catalog.ExposeRequest true "Exposure"
// @Success 201 {object} EntityResponse
// @Failure 400 {object} utils.ErrorBody "Invalid request body or validation error"
// @Failure 409 {object} utils.ErrorBody "Table or alias already exposed"
// @Failure 500 {object} utils.ErrorBody "Internal server error"
// @Router /api/services/{service}/entities [post]
func exposeTable(c *gin.Context) {
	var req catalog.ExposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err)
		return
	}
	rc := requestContext(c)
	req.ServiceID = rc.ServiceID
	req.OrganizationID = rc.Caller.OrganizationID
	req.Environment = rc.Environment

	entity, err := catalogSrv.ExposeTable(c.Request.Context(), req)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusCreated, gin.H{"data": entity.Summary()})
}

// RevokeExposure removes an exposed entity and its policies
// @Summary Revoke exposure
// @Tags Catalog
// @Param service path string true "Service ID"
// @Param id path int true "Entity ID"
// @Success 204
// @Failure 400 {object} utils.ErrorBody "Invalid entity ID"
// @Failure 404 {object} utils.ErrorBody "Entity not found"
// @Failure 500 {object} utils.ErrorBody "Internal server error"
// @Router /api/services/{service}/entities/{id} [delete]
func revokeExposure(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, err)
		return
	}
	if err := catalogSrv.RevokeExposure(c.Request.Context(), c.Param("service"), id); err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.NoContent(c)
}

// UpsertFieldPolicy sets the field policy of a role
// @Summary Set field policy
// @Description Sets masked, included and excluded fields for a role, or the organization default when roleId is empty
// @Tags Catalog
// @Accept json
// @Produce json
// @Param service path string true "Service ID"
// @Param id path int true "Entity ID"
// @Param policy body catalog.FieldPolicyRequest true "Field policy"
// @Success 200 {object} FieldPolicyResponse
// @Failure 400 {object} utils.ErrorBody "Invalid request body or validation error"
// @Failure 404 {object} utils.ErrorBody "Entity not found"
// @Router /api/services/{service}/entities/{id}/field-policy [put]
func upsertFieldPolicy(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, err)
		return
	}
	var req catalog.FieldPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err)
		return
	}
	p, err := catalogSrv.UpsertFieldPolicy(c.Request.Context(), c.Param("service"), id, req)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	logger.Infof("Field policy for entity %d role %q updated", id, req.RoleID)
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": p})
}

// UpsertRowPolicy sets the row policy of a role
// @Summary Set row policy
// @Description Stores a filter template; placeholders like {{user.id}} are resolved per request
// @Tags Catalog
// @Accept json
// @Produce json
// @Param service path string true "Service ID"
// @Param id path int true "Entity ID"
// @Param policy body catalog.RowPolicyRequest true "Row policy"
// @Success 200 {object} RowPolicyResponse
// @Failure 400 {object} utils.ErrorBody "Invalid template"
// @Failure 404 {object} utils.ErrorBody "Entity not found"
// @Router /api/services/{service}/entities/{id}/row-policy [put]
func upsertRowPolicy(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, err)
		return
	}
	var req catalog.RowPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err)
		return
	}
	req.Environment = c.GetHeader("X-Environment")

	p, err := catalogSrv.UpsertRowPolicy(c.Request.Context(), c.Param("service"), id, req)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	logger.Infof("Row policy for entity %d role %q updated", id, req.RoleID)
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": p})
}

// ListPolicies lists the policies attached to an entity
// @Summary List entity policies
// @Tags Catalog
// @Produce json
// @Param service path string true "Service ID"
// @Param id path int true "Entity ID"
// @Success 200 {object} PoliciesResponse
// @Failure 404 {object} utils.ErrorBody "Entity not found"
// @Router /api/services/{service}/entities/{id}/policies [get]
func listPolicies(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, err)
		return
	}
	policies, err := catalogSrv.ListPolicies(c.Request.Context(), c.Param("service"), id)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": policies})
}

// RegisterCatalogRoutes registers the catalog administration endpoints.
func RegisterCatalogRoutes(rg *gin.RouterGroup) {
	svc := rg.Group("/services/:service")
	{
		svc.GET("/tables", discoverTables)
		svc.GET("/entities", listExposedEntities)
		svc.POST("/entities", exposeTable)
		svc.DELETE("/entities/:id", revokeExposure)
		svc.PUT("/entities/:id/field-policy", upsertFieldPolicy)
		svc.PUT("/entities/:id/row-policy", upsertRowPolicy)
		svc.GET("/entities/:id/policies", listPolicies)
	}
}
