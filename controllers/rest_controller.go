package controllers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dbautorest/pkg/logger"
	"dbautorest/services/driver"
	"dbautorest/services/engine"
	"dbautorest/services/realtime"
	"dbautorest/utils"
)

// RestEngine serves the generic read surface. *engine.Engine implements it.
type RestEngine interface {
	HandleList(ctx context.Context, rc engine.RequestContext, entityRef string, params engine.ListParams) (*engine.Envelope, error)
	HandleByID(ctx context.Context, rc engine.RequestContext, entityRef, id string, params engine.ListParams) (driver.Row, error)
}

// RealtimeService manages change subscriptions. *realtime.Service implements it.
type RealtimeService interface {
	Subscribe(ctx context.Context, req realtime.SubscribeRequest) (*realtime.Subscription, error)
	Unsubscribe(id string) bool
}

var (
	restEngine  RestEngine
	realtimeSrv RealtimeService
)

// heartbeatInterval keeps idle SSE connections open through proxies.
var heartbeatInterval = 15 * time.Second

// SetRestEngine sets the engine behind the REST routes.
func SetRestEngine(e RestEngine) {
	restEngine = e
}

// SetRealtimeService sets the service behind the subscribe route.
func SetRealtimeService(s RealtimeService) {
	realtimeSrv = s
}

// requestContext builds the caller context from the trusted gateway headers.
func requestContext(c *gin.Context) engine.RequestContext {
	return engine.RequestContext{
		ServiceID:   c.Param("service"),
		Environment: c.GetHeader("X-Environment"),
		Caller: engine.CallerContext{
			OrganizationID: c.GetHeader("X-Organization-ID"),
			RoleID:         c.GetHeader("X-Role-ID"),
			RoleName:       c.GetHeader("X-Role-Name"),
			UserID:         c.GetHeader("X-User-ID"),
			UserEmail:      c.GetHeader("X-User-Email"),
		},
	}
}

// listParams reads the list query parameters. pageSize wins over limit.
func listParams(c *gin.Context) (engine.ListParams, error) {
	p := engine.ListParams{
		Fields: c.Query("fields"),
		Sort:   c.Query("sort"),
		Filter: c.Query("filter"),
		Cache:  utils.QueryBool(c.Query("cache")),
	}
	page, ok, err := utils.QueryInt(c.Query("page"))
	if err != nil {
		return p, err
	}
	if ok {
		p.Page = page
	}

	raw := c.Query("pageSize")
	if raw == "" {
		raw = c.Query("limit")
	}
	size, ok, err := utils.QueryInt(raw)
	if err != nil {
		return p, err
	}
	if ok {
		// An explicit 0 still clamps to 1 instead of meaning "default".
		if size < 1 {
			size = 1
		}
		p.PageSize = size
	}
	return p, nil
}

// ListEntity lists records of an exposed entity
// @Summary List records
// @Description Returns one page of an exposed table, view or collection with the caller's field and row policies applied
// @Tags REST
// @Produce json
// @Param service path string true "Service ID"
// @Param entity path string true "Entity path alias or name"
// @Param fields query string false "Comma-separated projection"
// @Param sort query string false "Comma-separated column or column:asc|desc"
// @Param filter query string false "Filter expression (JSON or field:op:value terms)"
// @Param page query int false "1-based page"
// @Param pageSize query int false "Page size (max 200)"
// @Param cache query bool false "Serve from the response cache when possible"
// @Success 200 {object} ListResponse
// @Failure 400 {object} utils.ErrorBody "Invalid filter or parameters"
// @Failure 404 {object} utils.ErrorBody "Entity or service not found"
// @Failure 500 {object} utils.ErrorBody "Internal server error"
// @Failure 504 {object} utils.ErrorBody "Query timed out"
// @Router /api/rest/{service}/{entity} [get]
func listEntity(c *gin.Context) {
	params, err := listParams(c)
	if err != nil {
		utils.BadRequest(c, err)
		return
	}
	rc := requestContext(c)
	entity := c.Param("entity")

	logger.Debugf("List %s/%s fields=%q sort=%q filter=%q page=%d pageSize=%d",
		rc.ServiceID, entity, params.Fields, params.Sort, params.Filter, params.Page, params.PageSize)
	env, err := restEngine.HandleList(c.Request.Context(), rc, entity, params)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, env)
}

// GetEntityByID returns one record of an exposed entity
// @Summary Get record by primary key
// @Description Returns a single record; rows outside the caller's row policy are reported as not found
// @Tags REST
// @Produce json
// @Param service path string true "Service ID"
// @Param entity path string true "Entity path alias or name"
// @Param id path string true "Primary key value"
// @Param fields query string false "Comma-separated projection"
// @Success 200 {object} RecordResponse
// @Failure 404 {object} utils.ErrorBody "Entity or record not found"
// @Failure 500 {object} utils.ErrorBody "Internal server error"
// @Router /api/rest/{service}/{entity}/{id} [get]
func getEntityByID(c *gin.Context) {
	rc := requestContext(c)
	row, err := restEngine.HandleByID(c.Request.Context(), rc, c.Param("entity"), c.Param("id"), engine.ListParams{
		Fields: c.Query("fields"),
	})
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"data": row})
}

// SubscribeEntity streams change events for a list query
// @Summary Subscribe to changes
// @Description Server-sent events stream; a "change" event is sent whenever the watched page changes
// @Tags REST
// @Produce text/event-stream
// @Param service path string true "Service ID"
// @Param entity path string true "Entity path alias or name"
// @Param filter query string false "Filter expression"
// @Param interval query int false "Polling interval in seconds"
// @Param mode query string false "poll (default) or native"
// @Success 200 {object} realtime.Event
// @Failure 400 {object} utils.ErrorBody "Invalid parameters"
// @Failure 404 {object} utils.ErrorBody "Entity or service not found"
// @Router /api/rest/{service}/{entity}/subscribe [get]
func subscribeEntity(c *gin.Context) {
	params, err := listParams(c)
	if err != nil {
		utils.BadRequest(c, err)
		return
	}
	secs, _, err := utils.QueryInt(c.Query("interval"))
	if err != nil {
		utils.BadRequest(c, err)
		return
	}

	clientID := c.GetHeader("X-Client-ID")
	if clientID == "" {
		clientID = c.ClientIP()
	}
	sub, err := realtimeSrv.Subscribe(c.Request.Context(), realtime.SubscribeRequest{
		ClientID: clientID,
		Request:  requestContext(c),
		Entity:   c.Param("entity"),
		Params:   params,
		Interval: time.Duration(secs) * time.Second,
		Mode:     realtime.ParseMode(c.Query("mode")),
	})
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	defer realtimeSrv.Unsubscribe(sub.ID)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("subscribed", gin.H{"subscriptionId": sub.ID, "mode": sub.Mode})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent("change", ev)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// RegisterRestRoutes registers the generic read endpoints.
func RegisterRestRoutes(rg *gin.RouterGroup) {
	rest := rg.Group("/rest/:service/:entity")
	{
		rest.GET("", listEntity)
		rest.GET("/subscribe", subscribeEntity)
		rest.GET("/:id", getEntityByID)
	}
}
