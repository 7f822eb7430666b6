package permission

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/events"
)

// Actor identifies who a check runs for. Callers build it from the
// authenticated session; the engine never reads identity from ambient state.
type Actor struct {
	ID          int64
	IsSuperuser bool
}

type registryLookupAPI interface {
	DataPermissionFor(ctx context.Context, userID int64, entityType string) (*DataPermission, error)
	FieldPermissionsFor(ctx context.Context, userID int64, entityType string) ([]*FieldPermission, error)
}

type checkLogger interface {
	LogCheck(ctx context.Context, actorID, targetUserID int64, entityType string, allowed bool, detail string) error
}

// cachedGrants is one user's effective permissions for one entity type.
type cachedGrants struct {
	data   *DataPermission
	fields []*FieldPermission
}

// Engine is the read-side facade: resolve a row scope, narrow a query, mask a
// record. Lookups go through a short-TTL LRU so hot list endpoints do not hit
// the store on every request; permission mutations invalidate affected users
// through the event bus.
type Engine struct {
	registry registryLookupAPI
	resolver *ScopeResolver
	checks   checkLogger
	cache    *lru.LRU[string, *cachedGrants]
	cfg      internal.PermissionConfig
	logger   *slog.Logger
}

func NewEngine(registry registryLookupAPI, resolver *ScopeResolver, checks checkLogger, bus *events.EventBus, cfg internal.PermissionConfig, logger *slog.Logger) *Engine {
	e := &Engine{
		registry: registry,
		resolver: resolver,
		checks:   checks,
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.ScopeCacheSize > 0 {
		e.cache = lru.NewLRU[string, *cachedGrants](cfg.ScopeCacheSize, nil, cfg.ScopeCacheTTL)
	}

	if bus != nil {
		bus.Subscribe(events.EventTypePermissionGranted, e.onPermissionChanged)
		bus.Subscribe(events.EventTypePermissionRevoked, e.onPermissionChanged)
		bus.Subscribe(events.EventTypePermissionCopied, e.onPermissionsCopied)
	}

	return e
}

// GetDataScope resolves the row filter the actor holds for an entity type.
// Superusers are unrestricted; a user with no grant sees only their own
// records. Store or hierarchy failures also degrade to own-records so a
// flaky dependency narrows visibility instead of widening it.
func (e *Engine) GetDataScope(ctx context.Context, actor Actor, entityType string) (ScopeFilter, error) {
	filter, _, err := e.resolveScope(ctx, actor, entityType)
	return filter, err
}

// resolveScope resolves the filter and returns the grant it came from, so a
// caller applying the filter can honor the grant's own column names. The
// grant is nil for superusers and when no grant could be loaded.
func (e *Engine) resolveScope(ctx context.Context, actor Actor, entityType string) (ScopeFilter, *DataPermission, error) {
	if !ValidEntityType(entityType) {
		return ScopeFilter{}, nil, internal.ErrUnknownEntityType.WithDetails(map[string]interface{}{"entity_type": entityType})
	}

	if actor.IsSuperuser {
		filter := Unrestricted()
		e.observeScope(ctx, actor, entityType, filter, "superuser")
		return filter, nil, nil
	}

	grants, err := e.loadGrants(ctx, actor.ID, entityType)
	if err != nil {
		e.logger.Error("permission lookup failed, falling back to own records",
			"error", err,
			"user_id", actor.ID,
			"entity_type", entityType)
		filter := OwnRecordsOnly()
		e.observeScope(ctx, actor, entityType, filter, "store_failure")
		return filter, nil, nil
	}

	if grants.data == nil {
		filter := OwnRecordsOnly()
		e.observeScope(ctx, actor, entityType, filter, "no_grant")
		return filter, nil, nil
	}

	filter, err := e.resolver.Resolve(ctx, grants.data, actor.ID)
	if err != nil {
		e.logger.Error("scope resolution failed, falling back to own records",
			"error", err,
			"user_id", actor.ID,
			"entity_type", entityType,
			"permission_id", grants.data.ID)
		filter = OwnRecordsOnly()
		e.observeScope(ctx, actor, entityType, filter, "resolve_failure")
		return filter, grants.data, nil
	}

	e.observeScope(ctx, actor, entityType, filter, "grant")
	return filter, grants.data, nil
}

// FilterQuery narrows a query to the rows the actor may see. The grant's own
// column overrides win over the configured defaults even when caching is
// disabled; the filter and the columns come from the same lookup.
func (e *Engine) FilterQuery(ctx context.Context, actor Actor, entityType string, query Query) (Query, error) {
	filter, grant, err := e.resolveScope(ctx, actor, entityType)
	if err != nil {
		return nil, err
	}

	deptField := e.cfg.DefaultDeptField
	userField := e.cfg.DefaultUserField
	if grant != nil {
		if grant.DepartmentField != "" {
			deptField = grant.DepartmentField
		}
		if grant.UserField != "" {
			userField = grant.UserField
		}
	}

	return e.resolver.Apply(filter, query, deptField, userField, actor.ID), nil
}

// MaskRecord applies the actor's field rules to one record and returns the
// masked copy. Fields with a hidden rule are removed. Unlike scope lookups
// this fails closed with an error: returning an unmasked record on a store
// failure would leak the values the rules exist to protect.
func (e *Engine) MaskRecord(ctx context.Context, actor Actor, entityType string, record map[string]interface{}) (map[string]interface{}, error) {
	if !ValidEntityType(entityType) {
		return nil, internal.ErrUnknownEntityType.WithDetails(map[string]interface{}{"entity_type": entityType})
	}
	if record == nil {
		return nil, nil
	}

	if actor.IsSuperuser {
		return copyRecord(record), nil
	}

	rules, err := e.fieldRules(ctx, actor.ID, entityType)
	if err != nil {
		return nil, err
	}

	return e.maskOne(record, rules), nil
}

// MaskRecords masks a result page with a single permission lookup.
func (e *Engine) MaskRecords(ctx context.Context, actor Actor, entityType string, records []map[string]interface{}) ([]map[string]interface{}, error) {
	if !ValidEntityType(entityType) {
		return nil, internal.ErrUnknownEntityType.WithDetails(map[string]interface{}{"entity_type": entityType})
	}
	if len(records) == 0 {
		return records, nil
	}

	if actor.IsSuperuser {
		out := make([]map[string]interface{}, len(records))
		for i, rec := range records {
			out[i] = copyRecord(rec)
		}
		return out, nil
	}

	rules, err := e.fieldRules(ctx, actor.ID, entityType)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		out[i] = e.maskOne(rec, rules)
	}
	return out, nil
}

// DecideFields reports the per-field decision for a record without mutating
// it. Admin and UI layers use this to render editability alongside values.
func (e *Engine) DecideFields(ctx context.Context, actor Actor, entityType string, record map[string]interface{}) (map[string]FieldDecision, error) {
	if !ValidEntityType(entityType) {
		return nil, internal.ErrUnknownEntityType.WithDetails(map[string]interface{}{"entity_type": entityType})
	}

	decisions := make(map[string]FieldDecision, len(record))
	if actor.IsSuperuser {
		for name, value := range record {
			decisions[name] = FieldDecision{Kind: DecisionVisible, Value: value}
		}
		return decisions, nil
	}

	rules, err := e.fieldRules(ctx, actor.ID, entityType)
	if err != nil {
		return nil, err
	}

	for name, value := range record {
		if rule, ok := rules[name]; ok {
			decisions[name] = Decide(rule.PermissionType, value, rule.MaskRule, rule.MaskPattern)
		} else {
			decisions[name] = FieldDecision{Kind: DecisionVisible, Value: value}
		}
	}
	return decisions, nil
}

func (e *Engine) maskOne(record map[string]interface{}, rules map[string]*FieldPermission) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for name, value := range record {
		rule, ok := rules[name]
		if !ok {
			out[name] = value
			continue
		}
		decision := Decide(rule.PermissionType, value, rule.MaskRule, rule.MaskPattern)
		switch decision.Kind {
		case DecisionRedacted:
			maskedFieldsTotal.WithLabelValues("hidden").Inc()
		case DecisionMasked:
			maskedFieldsTotal.WithLabelValues(string(rule.MaskRule)).Inc()
			out[name] = decision.Value
		default:
			out[name] = decision.Value
		}
	}
	return out
}

// fieldRules returns the winning rule per field name. Higher priority wins;
// on a tie the newer rule does.
func (e *Engine) fieldRules(ctx context.Context, userID int64, entityType string) (map[string]*FieldPermission, error) {
	grants, err := e.loadGrants(ctx, userID, entityType)
	if err != nil {
		e.logger.Error("field permission lookup failed",
			"error", err,
			"user_id", userID,
			"entity_type", entityType)
		return nil, internal.ErrStoreUnavailable.WithCause(err)
	}

	rules := make(map[string]*FieldPermission, len(grants.fields))
	for _, fp := range grants.fields {
		current, ok := rules[fp.FieldName]
		if !ok || fp.Priority > current.Priority || (fp.Priority == current.Priority && fp.ID > current.ID) {
			rules[fp.FieldName] = fp
		}
	}
	return rules, nil
}

func (e *Engine) loadGrants(ctx context.Context, userID int64, entityType string) (*cachedGrants, error) {
	key := cacheKey(userID, entityType)
	if e.cache != nil {
		if grants, ok := e.cache.Get(key); ok {
			scopeCacheLookups.WithLabelValues("hit").Inc()
			return grants, nil
		}
		scopeCacheLookups.WithLabelValues("miss").Inc()
	}

	data, err := e.registry.DataPermissionFor(ctx, userID, entityType)
	if err != nil {
		return nil, err
	}
	fields, err := e.registry.FieldPermissionsFor(ctx, userID, entityType)
	if err != nil {
		return nil, err
	}

	grants := &cachedGrants{data: data, fields: fields}
	if e.cache != nil {
		e.cache.Add(key, grants)
	}
	return grants, nil
}

func (e *Engine) observeScope(ctx context.Context, actor Actor, entityType string, filter ScopeFilter, reason string) {
	scopeChecksTotal.WithLabelValues(entityType, filter.Kind.String()).Inc()

	if e.cfg.LogChecks {
		e.logger.Debug("data scope resolved",
			"user_id", actor.ID,
			"entity_type", entityType,
			"filter", filter.String(),
			"reason", reason)
		if e.checks != nil {
			detail := fmt.Sprintf("%s (%s)", filter.String(), reason)
			if err := e.checks.LogCheck(ctx, actor.ID, actor.ID, entityType, true, detail); err != nil {
				e.logger.Warn("check audit write failed", "error", err, "user_id", actor.ID)
			}
		}
	}
}

func (e *Engine) onPermissionChanged(ctx context.Context, event events.Event) error {
	switch ev := event.(type) {
	case *events.PermissionGrantedEvent:
		e.invalidateUser(ev.UserID)
	case *events.PermissionRevokedEvent:
		e.invalidateUser(ev.UserID)
	}
	return nil
}

func (e *Engine) onPermissionsCopied(ctx context.Context, event events.Event) error {
	if ev, ok := event.(*events.PermissionCopiedEvent); ok {
		e.invalidateUser(ev.TargetUserID)
	}
	return nil
}

func (e *Engine) invalidateUser(userID int64) {
	if e.cache == nil {
		return
	}
	prefix := strconv.FormatInt(userID, 10) + "|"
	for _, key := range e.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			e.cache.Remove(key)
		}
	}
}

func cacheKey(userID int64, entityType string) string {
	return strconv.FormatInt(userID, 10) + "|" + entityType
}

func copyRecord(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out
}
