package permission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/access-management/internal/organization"
)

// HierarchyAPI is what the scope resolver needs from the organization
// subsystem. organization.Service satisfies it.
type HierarchyAPI interface {
	PrimaryDepartment(ctx context.Context, userID int64) (*int64, error)
	Descendants(ctx context.Context, departmentID int64) (organization.IDSet, error)
	DescendantsIncludingSelf(ctx context.Context, departmentID int64) (organization.IDSet, error)
}

// ScopeResolver turns a stored DataPermission into a concrete row filter. It
// holds no mutable state and is safe for concurrent use.
type ScopeResolver struct {
	hierarchy HierarchyAPI
	logger    *slog.Logger
}

func NewScopeResolver(hierarchy HierarchyAPI, logger *slog.Logger) *ScopeResolver {
	return &ScopeResolver{
		hierarchy: hierarchy,
		logger:    logger,
	}
}

// Resolve computes the row filter a permission grants its owner. A user
// without a primary department resolves department-relative scopes to an
// empty set, which matches nothing.
func (r *ScopeResolver) Resolve(ctx context.Context, perm *DataPermission, actingUserID int64) (ScopeFilter, error) {
	switch perm.ScopeType {
	case ScopeAll:
		return Unrestricted(), nil

	case ScopeSelfOnly:
		return OwnRecordsOnly(), nil

	case ScopeOwnDepartment:
		deptID, err := r.hierarchy.PrimaryDepartment(ctx, actingUserID)
		if err != nil {
			return ScopeFilter{}, err
		}
		if deptID == nil {
			r.logger.Warn("user has no primary department, scope matches nothing",
				"user_id", actingUserID,
				"scope_type", perm.ScopeType)
			return DepartmentScope(nil), nil
		}
		return DepartmentScope([]int64{*deptID}), nil

	case ScopeOwnDepartmentTree:
		deptID, err := r.hierarchy.PrimaryDepartment(ctx, actingUserID)
		if err != nil {
			return ScopeFilter{}, err
		}
		if deptID == nil {
			r.logger.Warn("user has no primary department, scope matches nothing",
				"user_id", actingUserID,
				"scope_type", perm.ScopeType)
			return DepartmentScope(nil), nil
		}
		tree, err := r.hierarchy.DescendantsIncludingSelf(ctx, *deptID)
		if err != nil {
			return ScopeFilter{}, err
		}
		return DepartmentScope(tree.Slice()), nil

	case ScopeSpecifiedDepts:
		ids, err := perm.SpecifiedDepartmentIDs()
		if err != nil {
			return ScopeFilter{}, fmt.Errorf("malformed scope_value on permission %d: %w", perm.ID, err)
		}
		return DepartmentScope(ids), nil

	case ScopeCustom:
		expr, err := perm.CustomExpression()
		if err != nil {
			return ScopeFilter{}, fmt.Errorf("malformed scope_value on permission %d: %w", perm.ID, err)
		}
		return CustomScope(expr), nil
	}

	return ScopeFilter{}, fmt.Errorf("unknown scope_type %q on permission %d", perm.ScopeType, perm.ID)
}

// Apply narrows a query with the resolved filter. An empty department set
// collapses the query to nothing.
func (r *ScopeResolver) Apply(filter ScopeFilter, query Query, departmentField, userField string, actingUserID int64) Query {
	if departmentField == "" {
		departmentField = DefaultDepartmentField
	}
	if userField == "" {
		userField = DefaultUserField
	}

	switch filter.Kind {
	case FilterUnrestricted:
		return query

	case FilterOwnRecords:
		return query.Where(userField+" = ?", actingUserID)

	case FilterDepartments:
		if len(filter.DepartmentIDs) == 0 {
			return query.MatchNone()
		}
		return query.Where(departmentField+" IN ?", filter.DepartmentIDs)

	case FilterCustomExpr:
		// Opaque expression authored with the grant; this engine passes it
		// through to the query layer unevaluated.
		return query.Where(filter.Expression)
	}

	return query.MatchNone()
}
