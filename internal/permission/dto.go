package permission

import (
	"encoding/json"

	"github.com/frahmantamala/access-management/internal"
)

// GrantDataPermissionDTO is the transport shape for creating or replacing a
// row-level grant.
type GrantDataPermissionDTO struct {
	UserID          int64           `json:"user_id"`
	EntityType      string          `json:"entity_type"`
	ScopeType       ScopeType       `json:"scope_type"`
	ScopeValue      json.RawMessage `json:"scope_value,omitempty"`
	DepartmentField string          `json:"department_field,omitempty"`
	UserField       string          `json:"user_field,omitempty"`
	Description     string          `json:"description,omitempty"`
}

// Validate enforces the write-time invariants: a resolvable user and entity
// type, a known scope type, and a scope_value whose shape matches it. All
// checks run before any mutation or audit write.
func (d *GrantDataPermissionDTO) Validate() error {
	if d.UserID <= 0 {
		return internal.NewValidationFieldError("user_id", "user_id is required", internal.ErrCodeUserNotResolvable)
	}
	if !ValidEntityType(d.EntityType) {
		return internal.ErrUnknownEntityType
	}
	if !d.ScopeType.Valid() {
		return internal.NewValidationFieldError("scope_type", "unknown scope_type", internal.ErrCodeInvalidScopeType)
	}

	switch d.ScopeType {
	case ScopeSpecifiedDepts:
		var ids []int64
		if len(d.ScopeValue) == 0 {
			return internal.ErrInvalidScopeValue
		}
		if err := json.Unmarshal(d.ScopeValue, &ids); err != nil || len(ids) == 0 {
			return internal.ErrInvalidScopeValue
		}
	case ScopeCustom:
		var expr string
		if len(d.ScopeValue) == 0 {
			return internal.ErrInvalidScopeValue
		}
		if err := json.Unmarshal(d.ScopeValue, &expr); err != nil || expr == "" {
			return internal.ErrInvalidScopeValue
		}
	}

	return nil
}

func (d *GrantDataPermissionDTO) toDomain(actorID int64) *DataPermission {
	deptField := d.DepartmentField
	if deptField == "" {
		deptField = DefaultDepartmentField
	}
	userField := d.UserField
	if userField == "" {
		userField = DefaultUserField
	}

	return &DataPermission{
		UserID:          d.UserID,
		EntityType:      d.EntityType,
		ScopeType:       d.ScopeType,
		ScopeValue:      d.ScopeValue,
		DepartmentField: deptField,
		UserField:       userField,
		Description:     d.Description,
		CreatedBy:       actorID,
		UpdatedBy:       actorID,
	}
}

// GrantFieldPermissionDTO is the transport shape for creating or replacing a
// field-level rule.
type GrantFieldPermissionDTO struct {
	UserID         int64           `json:"user_id"`
	EntityType     string          `json:"entity_type"`
	FieldName      string          `json:"field_name"`
	PermissionType PermissionType  `json:"permission_type"`
	MaskRule       MaskRule        `json:"mask_rule,omitempty"`
	MaskPattern    string          `json:"mask_pattern,omitempty"`
	Condition      json.RawMessage `json:"condition,omitempty"`
	Priority       int             `json:"priority,omitempty"`
	Description    string          `json:"description,omitempty"`
}

func (d *GrantFieldPermissionDTO) Validate() error {
	if d.UserID <= 0 {
		return internal.NewValidationFieldError("user_id", "user_id is required", internal.ErrCodeUserNotResolvable)
	}
	if !ValidEntityType(d.EntityType) {
		return internal.ErrUnknownEntityType
	}
	if d.FieldName == "" {
		return internal.NewValidationFieldError("field_name", "field_name is required", internal.ErrCodeInvalidFieldName)
	}
	if !d.PermissionType.Valid() {
		return internal.NewValidationFieldError("permission_type", "unknown permission_type", internal.ErrCodeValidationFailed)
	}

	if d.PermissionType == PermissionMasked {
		if d.MaskRule == "" {
			return internal.ErrMissingMaskRule
		}
		if !d.MaskRule.Valid() {
			return internal.NewValidationFieldError("mask_rule", "unknown mask_rule", internal.ErrCodeInvalidMaskRule)
		}
		if d.MaskRule == MaskCustom && d.MaskPattern == "" {
			return internal.NewValidationFieldError("mask_pattern", "mask_pattern is required for the custom mask rule", internal.ErrCodeInvalidMaskRule)
		}
	} else if d.MaskRule != "" {
		return internal.NewValidationFieldError("mask_rule", "mask_rule is only allowed when permission_type is masked", internal.ErrCodeInvalidMaskRule)
	}

	return nil
}

func (d *GrantFieldPermissionDTO) toDomain(actorID int64) *FieldPermission {
	return &FieldPermission{
		UserID:         d.UserID,
		EntityType:     d.EntityType,
		FieldName:      d.FieldName,
		PermissionType: d.PermissionType,
		MaskRule:       d.MaskRule,
		MaskPattern:    d.MaskPattern,
		Condition:      d.Condition,
		Priority:       d.Priority,
		Description:    d.Description,
		CreatedBy:      actorID,
		UpdatedBy:      actorID,
	}
}

// CopyPermissionsDTO replicates one user's grants onto another.
type CopyPermissionsDTO struct {
	SourceUserID int64 `json:"source_user_id"`
	TargetUserID int64 `json:"target_user_id"`
}

func (d *CopyPermissionsDTO) Validate() error {
	if d.SourceUserID <= 0 {
		return internal.NewValidationFieldError("source_user_id", "source_user_id is required", internal.ErrCodeUserNotResolvable)
	}
	if d.TargetUserID <= 0 {
		return internal.NewValidationFieldError("target_user_id", "target_user_id is required", internal.ErrCodeUserNotResolvable)
	}
	if d.SourceUserID == d.TargetUserID {
		return internal.NewValidationError("source and target user must differ", internal.ErrCodeValidationFailed)
	}
	return nil
}
