// Package engine serves generic list and get-by-id requests against exposed
// entities. It resolves the entity and the caller's policies, builds a
// parameterized query for the backend family, and executes it with request
// deduplication, an optional response cache and a bounded timeout.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"dbautorest/models"
	"dbautorest/pkg/apperror"
	"dbautorest/pkg/logger"
	"dbautorest/pkg/metrics"
	"dbautorest/services/cache"
	"dbautorest/services/dialect"
	"dbautorest/services/driver"
	"dbautorest/services/filter"
	"dbautorest/services/policy"
)

// EntityLookup finds exposed entities by path alias or name.
// repository.ExposedEntityRepository implements it.
type EntityLookup interface {
	FindByRef(tx *gorm.DB, serviceID, ref string) (*models.ExposedEntity, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Entities  EntityLookup
	Policies  *policy.Engine
	Pools     Pools
	Resolver  ConnectionResolver
	Inflight  *cache.Inflight
	Responses *cache.ResponseCache // nil disables the response cache
}

// Options tune an Engine.
type Options struct {
	QueryTimeout       time.Duration
	DefaultPageSize    int
	CacheListResponses bool
}

// Engine executes generic read requests.
type Engine struct {
	deps Deps
	opts Options
}

// New creates an engine.
func New(deps Deps, opts Options) *Engine {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 15 * time.Second
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = dialect.DefaultPageSize
	}
	if deps.Inflight == nil {
		deps.Inflight = cache.NewInflight(0, 1)
	}
	return &Engine{deps: deps, opts: opts}
}

// request is the resolved state shared by list and by-id.
type request struct {
	rc      RequestContext
	entity  *models.ExposedEntity
	conn    models.ConnectionConfig
	builder dialect.Builder
	exec    driver.Executor
	columns []driver.Column
	access  policy.FieldAccess
	scope   *filter.Node // rendered row policy
}

func (r *request) table() dialect.TableRef {
	return dialect.TableRef{Schema: r.entity.Schema(), Name: r.entity.Name}
}

// fingerprint keys dedup and the response cache. It covers the resolved field
// access and the rendered row policy, which vary with role name, email and
// attributes under a single role id.
func (r *request) fingerprint(op string, params map[string]string) string {
	params["allowed"] = strings.Join(r.access.Allowed, ",")
	params["masked"] = strings.Join(r.access.Masked, ",")
	params["scope"] = filterKey(r.scope)
	return cache.Fingerprint(cache.Key{
		Op:          op,
		ServiceID:   r.rc.ServiceID,
		Entity:      r.entity.Name,
		Environment: r.rc.Environment,
		RoleID:      r.rc.Caller.RoleID,
		OrgID:       r.rc.Caller.OrganizationID,
		UserID:      r.rc.Caller.UserID,
		Params:      params,
	})
}

func (r *request) log(fingerprint string) *logger.Entry {
	return logger.With(logger.Fields{
		"service":     r.rc.ServiceID,
		"entity":      r.entity.Name,
		"fingerprint": fingerprint,
	})
}

// HandleList returns one page of an entity.
func (e *Engine) HandleList(ctx context.Context, rc RequestContext, entityRef string, params ListParams) (*Envelope, error) {
	req, err := e.prepare(ctx, rc, entityRef)
	if err != nil {
		return nil, err
	}

	readable := req.access.Readable()
	userFilter, err := filter.Parse(params.Filter, readable)
	if err != nil {
		return nil, err
	}
	output, selected := projection(params.Fields, req.access)
	sortRaw := params.Sort
	if strings.TrimSpace(sortRaw) == "" {
		sortRaw = req.entity.DefaultSort
	}
	sort := filter.ParseSort(sortRaw, readable)

	pageSize := params.PageSize
	if pageSize == 0 {
		pageSize = e.opts.DefaultPageSize
	}
	page, pageSize, _ := dialect.Paginate(params.Page, pageSize)

	plan, err := req.builder.BuildList(dialect.ListQuery{
		Table:    req.table(),
		Fields:   selected,
		Filter:   policy.Combine(req.scope, userFilter),
		Sort:     sort,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, err
	}

	key := req.fingerprint("list", map[string]string{
		"fields":   strings.Join(output, ","),
		"sort":     sortKey(sort),
		"filter":   filterKey(userFilter),
		"page":     strconv.Itoa(page),
		"pageSize": strconv.Itoa(pageSize),
	})

	useCache := e.deps.Responses != nil && !params.BypassCache && (params.Cache || e.opts.CacheListResponses)
	if useCache {
		if v, ok := e.deps.Responses.Get(key); ok {
			return v.(*Envelope), nil
		}
	}

	v, _, err := e.deps.Inflight.Do(ctx, key, func(execCtx context.Context) (any, error) {
		var rows []driver.Row
		var total int64
		err := e.execute(execCtx, req, key, func(ctx context.Context, ex driver.Executor) error {
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				rows, err = ex.Query(gctx, plan)
				return err
			})
			g.Go(func() error {
				var err error
				total, err = ex.Count(gctx, plan)
				return err
			})
			return g.Wait()
		})
		if err != nil {
			return nil, err
		}
		return &Envelope{
			Data:     shape(rows, output, req.access),
			Page:     page,
			PageSize: pageSize,
			Total:    total,
			HasNext:  dialect.HasNext(page, pageSize, len(rows), total),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	env := v.(*Envelope)
	if useCache {
		e.deps.Responses.Set(key, env)
	}
	return env, nil
}

// HandleByID returns a single record. The caller's row policy scopes the
// lookup, so a row outside it is reported as not found.
func (e *Engine) HandleByID(ctx context.Context, rc RequestContext, entityRef, id string, params ListParams) (driver.Row, error) {
	req, err := e.prepare(ctx, rc, entityRef)
	if err != nil {
		return nil, err
	}
	pk := req.entity.PrimaryKey
	pkCol, ok := findColumn(req.columns, pk)
	if !ok {
		return nil, apperror.New(apperror.CodeEntityNotFound, "primary key %q of entity %q no longer exists", pk, entityRef)
	}

	output, selected := projection(params.Fields, req.access)
	plan, err := req.builder.BuildByID(dialect.ByIDQuery{
		Table:      req.table(),
		Fields:     selected,
		PrimaryKey: pk,
		ID:         coerceID(id, pkCol),
		Scope:      req.scope,
	})
	if err != nil {
		return nil, err
	}

	key := req.fingerprint("byid", map[string]string{
		"id":     id,
		"fields": strings.Join(output, ","),
	})

	v, _, err := e.deps.Inflight.Do(ctx, key, func(execCtx context.Context) (any, error) {
		var rows []driver.Row
		err := e.execute(execCtx, req, key, func(ctx context.Context, ex driver.Executor) error {
			var err error
			rows, err = ex.Query(ctx, plan)
			return err
		})
		if err != nil {
			return nil, err
		}
		return shape(rows, output, req.access), nil
	})
	if err != nil {
		return nil, err
	}
	rows := v.([]driver.Row)
	if len(rows) == 0 {
		return nil, apperror.New(apperror.CodeRecordNotFound, "record %q not found in %q", id, entityRef)
	}
	return rows[0], nil
}

// Columns returns the live columns readable by the caller.
func (e *Engine) Columns(ctx context.Context, rc RequestContext, entityRef string) ([]string, error) {
	req, err := e.prepare(ctx, rc, entityRef)
	if err != nil {
		return nil, err
	}
	return req.access.Readable(), nil
}

// prepare resolves the entity, its connection, live columns and the
// caller's policies.
func (e *Engine) prepare(ctx context.Context, rc RequestContext, entityRef string) (*request, error) {
	entity, err := e.deps.Entities.FindByRef(nil, rc.ServiceID, entityRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.CodeEntityNotFound, "entity %q is not exposed", entityRef)
		}
		return nil, fmt.Errorf("failed to look up entity %q: %w", entityRef, err)
	}
	if !entity.AllowRead {
		return nil, apperror.New(apperror.CodeEntityNotFound, "entity %q is not exposed", entityRef)
	}

	svc, err := e.deps.Resolver.Resolve(ctx, rc.ServiceID, rc.Environment)
	if err != nil {
		return nil, err
	}
	kind, err := dialect.ParseKind(svc.Connection.Type)
	if err != nil {
		return nil, err
	}
	builder, err := dialect.For(kind)
	if err != nil {
		return nil, err
	}

	req := &request{rc: rc, entity: entity, conn: svc.Connection, builder: builder}

	var columns []driver.Column
	err = e.execute(ctx, req, "", func(ctx context.Context, ex driver.Executor) error {
		var err error
		columns, err = ex.Columns(ctx, req.table())
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, apperror.New(apperror.CodeEntityNotFound, "entity %q no longer exists in the database", entityRef)
	}
	req.columns = columns
	names := driver.ColumnNames(columns)

	req.access, err = e.deps.Policies.ResolveFieldPolicy(ctx, entity, rc.Caller.RoleID, names)
	if err != nil {
		return nil, err
	}
	if len(req.access.Readable()) == 0 {
		return nil, apperror.New(apperror.CodeEntityNotFound, "entity %q has no readable fields", entityRef)
	}
	req.scope, err = e.deps.Policies.ResolveRowPolicy(ctx, entity, rc.Caller.RoleID, rc.RenderContext(), names)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// execute runs fn against the pool of req's connection under the query
// timeout. A stale-connection failure is retried once on a refreshed pool.
func (e *Engine) execute(ctx context.Context, req *request, fingerprint string, fn func(context.Context, driver.Executor) error) error {
	kind := string(req.builder.Kind())
	start := time.Now()

	ex := req.exec
	if ex == nil {
		var err error
		ex, err = e.deps.Pools.Get(ctx, req.conn)
		if err != nil {
			metrics.QueriesTotal.WithLabelValues(kind, "error").Inc()
			req.log(fingerprint).Errorf("failed to acquire connection: %v", err)
			return apperror.Wrap(apperror.CodeQueryExecution, err, "failed to connect to service %q", req.rc.ServiceID)
		}
		req.exec = ex
	}

	err := e.attempt(ctx, ex, fn)
	if err != nil && driver.IsStale(err) {
		metrics.Retries.WithLabelValues(kind).Inc()
		req.log(fingerprint).Warnf("stale connection, retrying on a fresh pool: %v", err)
		fresh, rerr := e.deps.Pools.Refresh(ctx, req.conn, ex)
		if rerr == nil {
			req.exec = fresh
			err = e.attempt(ctx, fresh, fn)
		} else {
			err = errors.Join(err, rerr)
		}
	}
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.QueriesTotal.WithLabelValues(kind, "ok").Inc()
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		metrics.QueriesTotal.WithLabelValues(kind, "timeout").Inc()
		req.log(fingerprint).Errorf("query exceeded %s: %v", e.opts.QueryTimeout, err)
		return apperror.Wrap(apperror.CodeTimeout, err, "query on %q timed out", req.entity.Name)
	}
	metrics.QueriesTotal.WithLabelValues(kind, "error").Inc()
	req.log(fingerprint).Errorf("query failed: %v", err)
	return apperror.Wrap(apperror.CodeQueryExecution, err, "query on %q failed", req.entity.Name)
}

func (e *Engine) attempt(ctx context.Context, ex driver.Executor, fn func(context.Context, driver.Executor) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()
	return fn(ctx, ex)
}

// projection returns the output fields and the columns to select. Requested
// fields are limited to allowed columns; masked ones are output but never
// selected. An empty request means every allowed column.
func projection(raw string, access policy.FieldAccess) (output, selected []string) {
	allowed := make(map[string]bool, len(access.Allowed))
	for _, c := range access.Allowed {
		allowed[c] = true
	}
	seen := map[string]bool{}
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "" || !allowed[f] || seen[f] {
			continue
		}
		seen[f] = true
		output = append(output, f)
	}
	if len(output) == 0 {
		output = append(output, access.Allowed...)
	}
	for _, f := range output {
		if !access.IsMasked(f) {
			selected = append(selected, f)
		}
	}
	if len(selected) == 0 {
		// Only masked fields requested; select something so rows still count.
		selected = access.Readable()[:1]
	}
	return output, selected
}

// shape restricts rows to the output fields, emitting masked ones as null.
func shape(rows []driver.Row, output []string, access policy.FieldAccess) []driver.Row {
	out := make([]driver.Row, 0, len(rows))
	for _, r := range rows {
		row := make(driver.Row, len(output))
		for _, f := range output {
			if access.IsMasked(f) {
				row[f] = nil
				continue
			}
			row[f] = r[f]
		}
		out = append(out, row)
	}
	return out
}

func findColumn(cols []driver.Column, name string) (driver.Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return driver.Column{}, false
}

// coerceID converts a path id to the primary key's type where it is numeric.
func coerceID(id string, col driver.Column) any {
	t := strings.ToLower(col.DataType)
	switch {
	case strings.Contains(t, "int"):
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			return n
		}
	case strings.Contains(t, "double"), strings.Contains(t, "float"),
		strings.Contains(t, "decimal"), strings.Contains(t, "numeric"), strings.Contains(t, "real"):
		if f, err := strconv.ParseFloat(id, 64); err == nil {
			return f
		}
	}
	return id
}

func sortKey(sort []filter.SortField) string {
	parts := make([]string, 0, len(sort))
	for _, s := range sort {
		if s.Desc {
			parts = append(parts, "-"+s.Field)
			continue
		}
		parts = append(parts, s.Field)
	}
	return strings.Join(parts, ",")
}

func filterKey(n *filter.Node) string {
	if n == nil {
		return ""
	}
	raw, err := n.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", n)
	}
	return string(raw)
}
