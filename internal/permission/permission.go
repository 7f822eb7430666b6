package permission

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	permDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/permission"
)

// ScopeType names the row-level visibility rule a DataPermission grants.
type ScopeType string

const (
	ScopeAll                ScopeType = "all"
	ScopeSelfOnly           ScopeType = "self_only"
	ScopeOwnDepartment      ScopeType = "own_department"
	ScopeOwnDepartmentTree  ScopeType = "own_department_and_descendants"
	ScopeSpecifiedDepts     ScopeType = "specified_departments"
	ScopeCustom             ScopeType = "custom"
)

func (s ScopeType) Valid() bool {
	switch s {
	case ScopeAll, ScopeSelfOnly, ScopeOwnDepartment, ScopeOwnDepartmentTree, ScopeSpecifiedDepts, ScopeCustom:
		return true
	}
	return false
}

// PermissionType names the field-level access a FieldPermission grants.
type PermissionType string

const (
	PermissionRead   PermissionType = "read"
	PermissionWrite  PermissionType = "write"
	PermissionHidden PermissionType = "hidden"
	PermissionMasked PermissionType = "masked"
)

func (p PermissionType) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionHidden, PermissionMasked:
		return true
	}
	return false
}

type MaskRule string

const (
	MaskPhone       MaskRule = "phone"
	MaskIDCard      MaskRule = "id_card"
	MaskBankCard    MaskRule = "bank_card"
	MaskName        MaskRule = "name"
	MaskEmail       MaskRule = "email"
	MaskAmountRange MaskRule = "amount_range"
	MaskCustom      MaskRule = "custom"
)

func (m MaskRule) Valid() bool {
	switch m {
	case MaskPhone, MaskIDCard, MaskBankCard, MaskName, MaskEmail, MaskAmountRange, MaskCustom:
		return true
	}
	return false
}

// Protectable entity types. The set is closed at compile time; keys with the
// "x-" prefix are accepted verbatim for late-bound entities configured outside
// this service.
const (
	EntityAsset       = "asset"
	EntityDepartment  = "department"
	EntityUser        = "user"
	EntityInventory   = "inventory"
	EntityMaintenance = "maintenance"

	customEntityPrefix = "x-"
)

func ValidEntityType(entityType string) bool {
	switch entityType {
	case EntityAsset, EntityDepartment, EntityUser, EntityInventory, EntityMaintenance:
		return true
	}
	return strings.HasPrefix(entityType, customEntityPrefix) && len(entityType) > len(customEntityPrefix)
}

const (
	DefaultUserField       = "created_by"
	DefaultDepartmentField = "department_id"
)

// DataPermission is one row-level grant. At most one active grant exists per
// (user, entity type); granting again replaces, it does not stack.
type DataPermission struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	EntityType      string          `json:"entity_type"`
	ScopeType       ScopeType       `json:"scope_type"`
	ScopeValue      json.RawMessage `json:"scope_value,omitempty"`
	DepartmentField string          `json:"department_field"`
	UserField       string          `json:"user_field"`
	Description     string          `json:"description,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	UpdatedBy       int64           `json:"updated_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SpecifiedDepartmentIDs decodes scope_value for the specified_departments
// scope type.
func (p *DataPermission) SpecifiedDepartmentIDs() ([]int64, error) {
	var ids []int64
	if err := json.Unmarshal(p.ScopeValue, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CustomExpression decodes scope_value for the custom scope type. The
// expression is passed through to the query layer unevaluated.
func (p *DataPermission) CustomExpression() (string, error) {
	var expr string
	if err := json.Unmarshal(p.ScopeValue, &expr); err != nil {
		return "", err
	}
	return expr, nil
}

// FieldPermission is one field-level rule. Condition is stored and exposed for
// callers that evaluate conditional masking; this engine never interprets it.
type FieldPermission struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	EntityType     string          `json:"entity_type"`
	FieldName      string          `json:"field_name"`
	PermissionType PermissionType  `json:"permission_type"`
	MaskRule       MaskRule        `json:"mask_rule,omitempty"`
	MaskPattern    string          `json:"mask_pattern,omitempty"`
	Condition      json.RawMessage `json:"condition,omitempty"`
	Priority       int             `json:"priority"`
	Description    string          `json:"description,omitempty"`
	CreatedBy      int64           `json:"created_by"`
	UpdatedBy      int64           `json:"updated_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// FilterKind tags the concrete row filter a scope resolves to.
type FilterKind int

const (
	FilterUnrestricted FilterKind = iota
	FilterOwnRecords
	FilterDepartments
	FilterCustomExpr
)

// ScopeFilter is the resolved row-level filter for one (user, entity type)
// pair. An empty department set matches nothing, never everything.
type ScopeFilter struct {
	Kind          FilterKind `json:"kind"`
	DepartmentIDs []int64    `json:"department_ids,omitempty"`
	Expression    string     `json:"expression,omitempty"`
}

func Unrestricted() ScopeFilter {
	return ScopeFilter{Kind: FilterUnrestricted}
}

func OwnRecordsOnly() ScopeFilter {
	return ScopeFilter{Kind: FilterOwnRecords}
}

func DepartmentScope(ids []int64) ScopeFilter {
	return ScopeFilter{Kind: FilterDepartments, DepartmentIDs: ids}
}

func CustomScope(expr string) ScopeFilter {
	return ScopeFilter{Kind: FilterCustomExpr, Expression: expr}
}

func (k FilterKind) String() string {
	switch k {
	case FilterUnrestricted:
		return "unrestricted"
	case FilterOwnRecords:
		return "own_records_only"
	case FilterDepartments:
		return "department_ids"
	case FilterCustomExpr:
		return "custom_expression"
	}
	return "unknown"
}

func (f ScopeFilter) String() string {
	if f.Kind == FilterDepartments {
		return fmt.Sprintf("department_ids(%d)", len(f.DepartmentIDs))
	}
	return f.Kind.String()
}

// DecisionKind tags the outcome of a field-level check.
type DecisionKind int

const (
	DecisionVisible DecisionKind = iota
	DecisionRedacted
	DecisionReadOnly
	DecisionMasked
)

// FieldDecision is the per-field outcome of mask_record. Redacted fields are
// removed from the output entirely so their existence is not observable.
type FieldDecision struct {
	Kind  DecisionKind
	Value interface{}
}

// ----------------- datamodel conversion -----------------

func DataPermissionFromModel(m *permDatamodel.DataPermission) *DataPermission {
	var scopeValue json.RawMessage
	if m.ScopeValue != "" {
		scopeValue = json.RawMessage(m.ScopeValue)
	}
	return &DataPermission{
		ID:              m.ID,
		UserID:          m.UserID,
		EntityType:      m.EntityType,
		ScopeType:       ScopeType(m.ScopeType),
		ScopeValue:      scopeValue,
		DepartmentField: m.DepartmentField,
		UserField:       m.UserField,
		Description:     m.Description,
		CreatedBy:       m.CreatedBy,
		UpdatedBy:       m.UpdatedBy,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func DataPermissionToModel(p *DataPermission) *permDatamodel.DataPermission {
	return &permDatamodel.DataPermission{
		ID:              p.ID,
		UserID:          p.UserID,
		EntityType:      p.EntityType,
		ScopeType:       string(p.ScopeType),
		ScopeValue:      string(p.ScopeValue),
		DepartmentField: p.DepartmentField,
		UserField:       p.UserField,
		Description:     p.Description,
		CreatedBy:       p.CreatedBy,
		UpdatedBy:       p.UpdatedBy,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func FieldPermissionFromModel(m *permDatamodel.FieldPermission) *FieldPermission {
	var condition json.RawMessage
	if m.Condition != "" {
		condition = json.RawMessage(m.Condition)
	}
	return &FieldPermission{
		ID:             m.ID,
		UserID:         m.UserID,
		EntityType:     m.EntityType,
		FieldName:      m.FieldName,
		PermissionType: PermissionType(m.PermissionType),
		MaskRule:       MaskRule(m.MaskRule),
		MaskPattern:    m.MaskPattern,
		Condition:      condition,
		Priority:       m.Priority,
		Description:    m.Description,
		CreatedBy:      m.CreatedBy,
		UpdatedBy:      m.UpdatedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func FieldPermissionToModel(p *FieldPermission) *permDatamodel.FieldPermission {
	return &permDatamodel.FieldPermission{
		ID:             p.ID,
		UserID:         p.UserID,
		EntityType:     p.EntityType,
		FieldName:      p.FieldName,
		PermissionType: string(p.PermissionType),
		MaskRule:       string(p.MaskRule),
		MaskPattern:    p.MaskPattern,
		Condition:      string(p.Condition),
		Priority:       p.Priority,
		Description:    p.Description,
		CreatedBy:      p.CreatedBy,
		UpdatedBy:      p.UpdatedBy,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func DataPermissionsFromModel(models []*permDatamodel.DataPermission) []*DataPermission {
	result := make([]*DataPermission, len(models))
	for i, m := range models {
		result[i] = DataPermissionFromModel(m)
	}
	return result
}

func FieldPermissionsFromModel(models []*permDatamodel.FieldPermission) []*FieldPermission {
	result := make([]*FieldPermission, len(models))
	for i, m := range models {
		result[i] = FieldPermissionFromModel(m)
	}
	return result
}
