package audit

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"time"

	auditDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/audit"
	"github.com/oklog/ulid/v2"
)

type OperationType string

const (
	OperationCheck  OperationType = "check"
	OperationGrant  OperationType = "grant"
	OperationRevoke OperationType = "revoke"
	OperationModify OperationType = "modify"
	OperationDeny   OperationType = "deny"
)

type TargetType string

const (
	TargetDataPermission  TargetType = "data_permission"
	TargetFieldPermission TargetType = "field_permission"
	TargetUserPermission  TargetType = "user_permission"
)

type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultPartial Result = "partial"
)

// Entry is one immutable audit record. IDs are ULIDs so entries sort by
// creation time without relying on the store.
type Entry struct {
	ID           string                 `json:"id"`
	ActorID      int64                  `json:"actor_id"`
	TargetUserID *int64                 `json:"target_user_id,omitempty"`
	Operation    OperationType          `json:"operation_type"`
	TargetType   TargetType             `json:"target_type"`
	PermissionID *int64                 `json:"permission_id,omitempty"`
	Details      map[string]interface{} `json:"permission_details,omitempty"`
	Result       Result                 `json:"result"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Query narrows audit listings; zero values mean "no constraint".
type Query struct {
	ActorID      int64
	TargetUserID int64
	Operation    OperationType
	TargetType   TargetType
	PermissionID int64
	Since        time.Time
	Until        time.Time
	Limit        int
	Offset       int
}

type RepositoryAPI interface {
	Insert(ctx context.Context, entry *auditDatamodel.PermissionAuditLog) error
	List(ctx context.Context, q Query) ([]*auditDatamodel.PermissionAuditLog, error)
}

func NewEntryID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewEntry fills in the generated ID and timestamp; everything else comes from
// the caller.
func NewEntry(actorID int64, op OperationType, target TargetType) *Entry {
	return &Entry{
		ID:         NewEntryID(),
		ActorID:    actorID,
		Operation:  op,
		TargetType: target,
		Result:     ResultSuccess,
		CreatedAt:  time.Now(),
	}
}

func (e *Entry) WithTargetUser(userID int64) *Entry {
	e.TargetUserID = &userID
	return e
}

func (e *Entry) WithPermissionID(id int64) *Entry {
	e.PermissionID = &id
	return e
}

func (e *Entry) WithDetails(details map[string]interface{}) *Entry {
	e.Details = details
	return e
}

func (e *Entry) WithResult(result Result, errMsg string) *Entry {
	e.Result = result
	e.ErrorMessage = errMsg
	return e
}

func (e *Entry) WithRequestMeta(ip, userAgent string) *Entry {
	e.IPAddress = ip
	e.UserAgent = userAgent
	return e
}

func ToDataModel(e *Entry) *auditDatamodel.PermissionAuditLog {
	details := ""
	if len(e.Details) > 0 {
		if raw, err := json.Marshal(e.Details); err == nil {
			details = string(raw)
		}
	}
	return &auditDatamodel.PermissionAuditLog{
		ID:                e.ID,
		ActorID:           e.ActorID,
		TargetUserID:      e.TargetUserID,
		OperationType:     string(e.Operation),
		TargetType:        string(e.TargetType),
		PermissionID:      e.PermissionID,
		PermissionDetails: details,
		Result:            string(e.Result),
		ErrorMessage:      e.ErrorMessage,
		IPAddress:         e.IPAddress,
		UserAgent:         e.UserAgent,
		CreatedAt:         e.CreatedAt,
	}
}

func FromDataModel(m *auditDatamodel.PermissionAuditLog) *Entry {
	var details map[string]interface{}
	if m.PermissionDetails != "" {
		_ = json.Unmarshal([]byte(m.PermissionDetails), &details)
	}
	return &Entry{
		ID:           m.ID,
		ActorID:      m.ActorID,
		TargetUserID: m.TargetUserID,
		Operation:    OperationType(m.OperationType),
		TargetType:   TargetType(m.TargetType),
		PermissionID: m.PermissionID,
		Details:      details,
		Result:       Result(m.Result),
		ErrorMessage: m.ErrorMessage,
		IPAddress:    m.IPAddress,
		UserAgent:    m.UserAgent,
		CreatedAt:    m.CreatedAt,
	}
}

func FromDataModelSlice(models []*auditDatamodel.PermissionAuditLog) []*Entry {
	result := make([]*Entry, len(models))
	for i, m := range models {
		result[i] = FromDataModel(m)
	}
	return result
}
