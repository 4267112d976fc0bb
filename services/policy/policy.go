// Package policy resolves field masking and row-level filters for an entity
// and caller role. Policies are data: a role-specific policy wins over the
// organization default, and no policy means full access.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dbautorest/config"
	"dbautorest/models"
	"dbautorest/pkg/apperror"
	"dbautorest/pkg/logger"
	"dbautorest/pkg/metrics"
	"dbautorest/repository"
	"dbautorest/services/filter"
)

// FieldAccess is the resolved column access for one request.
type FieldAccess struct {
	// Allowed columns, in discovery order (or include-list order).
	Allowed []string
	// Masked columns; always a subset of Allowed.
	Masked []string
}

// IsMasked reports whether col is masked.
func (a FieldAccess) IsMasked(col string) bool {
	for _, m := range a.Masked {
		if m == col {
			return true
		}
	}
	return false
}

// Readable returns allowed columns that are not masked. Only these may be
// selected, filtered or sorted on.
func (a FieldAccess) Readable() []string {
	out := make([]string, 0, len(a.Allowed))
	for _, c := range a.Allowed {
		if !a.IsMasked(c) {
			out = append(out, c)
		}
	}
	return out
}

// Engine resolves field and row policies from the catalog.
type Engine struct {
	fields   repository.FieldPolicyRepository
	rows     repository.RowPolicyRepository
	failMode string
}

// NewEngine creates a policy engine. failMode is config.RowPolicyFailOpen or
// config.RowPolicyFailClosed.
func NewEngine(fields repository.FieldPolicyRepository, rows repository.RowPolicyRepository, failMode string) *Engine {
	if failMode != config.RowPolicyFailClosed {
		failMode = config.RowPolicyFailOpen
	}
	return &Engine{fields: fields, rows: rows, failMode: failMode}
}

// ResolveFieldPolicy selects the exact role policy, else the organization
// default, else allows every discovered column.
func (e *Engine) ResolveFieldPolicy(ctx context.Context, entity *models.ExposedEntity, roleID string, discovered []string) (FieldAccess, error) {
	policies, err := e.fields.ListForRole(nil, entity.ID, roleID)
	if err != nil {
		return FieldAccess{}, fmt.Errorf("failed to load field policies for entity %d: %w", entity.ID, err)
	}
	p := selectFieldPolicy(policies, roleID)
	if p == nil {
		return FieldAccess{Allowed: append([]string(nil), discovered...)}, nil
	}
	return Apply(*p, discovered), nil
}

// Apply computes the access a field policy grants over the discovered columns.
// A non-empty include list replaces the discovered set and wins over exclude.
func Apply(p models.FieldPolicy, discovered []string) FieldAccess {
	present := toSet(discovered)
	var allowed []string
	if len(p.IncludeFields) > 0 {
		seen := map[string]bool{}
		for _, f := range p.IncludeFields {
			if present[f] && !seen[f] {
				seen[f] = true
				allowed = append(allowed, f)
			}
		}
	} else {
		excluded := toSet(p.ExcludeFields)
		for _, c := range discovered {
			if !excluded[c] {
				allowed = append(allowed, c)
			}
		}
	}

	allowedSet := toSet(allowed)
	var masked []string
	for _, m := range p.MaskedFields {
		if allowedSet[m] {
			masked = append(masked, m)
			delete(allowedSet, m)
		}
	}
	return FieldAccess{Allowed: allowed, Masked: masked}
}

// ResolveRowPolicy selects the row policy for the role and renders it into a
// filter validated against the live columns. A template that fails to render
// or parse never fails the request: it is logged, counted, and handled per
// the configured failure mode (no row filter, or a filter matching nothing).
func (e *Engine) ResolveRowPolicy(ctx context.Context, entity *models.ExposedEntity, roleID string, rc RenderContext, columns []string) (*filter.Node, error) {
	policies, err := e.rows.ListForRole(nil, entity.ID, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load row policies for entity %d: %w", entity.ID, err)
	}
	p := selectRowPolicy(policies, roleID)
	if p == nil {
		return nil, nil
	}

	node, err := Evaluate(p.FilterTemplate, rc, columns)
	if err == nil {
		return node, nil
	}

	metrics.RowPolicyRenderFailures.WithLabelValues(entity.Name, e.failMode).Inc()
	logger.With(logger.Fields{
		"entity":    entity.Name,
		"service":   entity.ServiceID,
		"policy_id": p.ID,
		"role":      roleID,
		"mode":      e.failMode,
	}).Warnf("row policy could not be applied, row-level enforcement is degraded: %v", err)

	if e.failMode == config.RowPolicyFailClosed {
		return filter.MatchNothing(matchNothingField(entity, columns)), nil
	}
	return nil, nil
}

// Evaluate renders a stored template and parses it against columns.
func Evaluate(template string, rc RenderContext, columns []string) (*filter.Node, error) {
	decoded, err := decodeTemplate(template)
	if err != nil {
		return nil, err
	}
	rendered, err := Render(decoded, rc)
	if err != nil {
		return nil, err
	}
	node, err := filter.ParseValue(rendered, columns)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodePolicyTemplateRender, err, "rendered row policy is not a valid filter")
	}
	return node, nil
}

// ValidateTemplate checks a template at authoring time: it must be JSON and its
// fields and operators must be valid for columns. Value shapes are only
// checked when the template has no placeholders, since those depend on the
// request.
func ValidateTemplate(template string, columns []string) error {
	decoded, err := decodeTemplate(template)
	if err != nil {
		return apperror.Wrap(apperror.CodeValidation, err, "row policy template is not valid JSON")
	}
	probe, err := Render(decoded, probeContext(template))
	if err != nil {
		return apperror.Wrap(apperror.CodeValidation, err, "row policy template cannot be rendered")
	}
	_, err = filter.ParseValue(probe, columns)
	if err == nil {
		return nil
	}
	if apperror.Is(err, apperror.CodeInvalidFilterValue) && HasPlaceholders(template) {
		return nil
	}
	return apperror.Wrap(apperror.CodeValidation, err, "row policy template is not a valid filter")
}

// Combine joins a row policy and a user filter; the row policy comes first.
func Combine(rowPolicy, user *filter.Node) *filter.Node {
	return filter.And(rowPolicy, user)
}

// probeContext resolves every placeholder in a template to its own path.
func probeContext(template string) RenderContext {
	rc := RenderContext{}
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		parts := strings.Split(m[1], ".")
		cur := map[string]any(rc)
		for i, part := range parts {
			if i == len(parts)-1 {
				if _, exists := cur[part]; !exists {
					cur[part] = m[1]
				}
				break
			}
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[part] = next
			}
			cur = next
		}
	}
	return rc
}

func decodeTemplate(template string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(template))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperror.Wrap(apperror.CodePolicyTemplateRender, err, "row policy template is not valid JSON")
	}
	return v, nil
}

func selectFieldPolicy(policies []models.FieldPolicy, roleID string) *models.FieldPolicy {
	var fallback *models.FieldPolicy
	for i := range policies {
		p := &policies[i]
		if p.RoleID == nil {
			if fallback == nil {
				fallback = p
			}
			continue
		}
		if roleID != "" && *p.RoleID == roleID {
			return p
		}
	}
	return fallback
}

func selectRowPolicy(policies []models.RowPolicy, roleID string) *models.RowPolicy {
	var fallback *models.RowPolicy
	for i := range policies {
		p := &policies[i]
		if p.RoleID == nil {
			if fallback == nil {
				fallback = p
			}
			continue
		}
		if roleID != "" && *p.RoleID == roleID {
			return p
		}
	}
	return fallback
}

func matchNothingField(entity *models.ExposedEntity, columns []string) string {
	if entity.PrimaryKey != "" {
		return entity.PrimaryKey
	}
	if len(columns) > 0 {
		return columns[0]
	}
	return "_id"
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
