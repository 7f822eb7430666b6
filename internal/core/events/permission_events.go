package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePermissionGranted = "permission.granted"
	EventTypePermissionRevoked = "permission.revoked"
	EventTypePermissionCopied  = "permission.copied"
)

type PermissionGrantedEvent struct {
	BaseEvent
	UserID     int64  `json:"user_id"`
	EntityType string `json:"entity_type"`
	FieldName  string `json:"field_name,omitempty"`
	ActorID    int64  `json:"actor_id"`
}

func NewPermissionGrantedEvent(userID int64, entityType, fieldName string, actorID int64) *PermissionGrantedEvent {
	return &PermissionGrantedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionGranted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":     userID,
				"entity_type": entityType,
				"field_name":  fieldName,
				"actor_id":    actorID,
			},
		},
		UserID:     userID,
		EntityType: entityType,
		FieldName:  fieldName,
		ActorID:    actorID,
	}
}

type PermissionRevokedEvent struct {
	BaseEvent
	UserID     int64  `json:"user_id"`
	EntityType string `json:"entity_type"`
	FieldName  string `json:"field_name,omitempty"`
	ActorID    int64  `json:"actor_id"`
}

func NewPermissionRevokedEvent(userID int64, entityType, fieldName string, actorID int64) *PermissionRevokedEvent {
	return &PermissionRevokedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionRevoked,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":     userID,
				"entity_type": entityType,
				"field_name":  fieldName,
				"actor_id":    actorID,
			},
		},
		UserID:     userID,
		EntityType: entityType,
		FieldName:  fieldName,
		ActorID:    actorID,
	}
}

type PermissionCopiedEvent struct {
	BaseEvent
	SourceUserID int64 `json:"source_user_id"`
	TargetUserID int64 `json:"target_user_id"`
	CopiedCount  int   `json:"copied_count"`
	ActorID      int64 `json:"actor_id"`
}

func NewPermissionCopiedEvent(sourceUserID, targetUserID int64, copiedCount int, actorID int64) *PermissionCopiedEvent {
	return &PermissionCopiedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionCopied,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"source_user_id": sourceUserID,
				"target_user_id": targetUserID,
				"copied_count":   copiedCount,
				"actor_id":       actorID,
			},
		},
		SourceUserID: sourceUserID,
		TargetUserID: targetUserID,
		CopiedCount:  copiedCount,
		ActorID:      actorID,
	}
}
