package audit

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/access-management/internal"
)

// Service records standalone audit entries (explicit check/deny logging) and
// answers audit queries for the admin API. Mutation-coupled entries are written
// by the permission repository inside its own transaction, not through here.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Record persists an entry exactly once. Failures are surfaced, never
// swallowed: an unrecorded mutation is a bug upstream.
func (s *Service) Record(ctx context.Context, entry *Entry) error {
	meta := internal.RequestMetaFromContext(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}

	if err := s.repo.Insert(ctx, ToDataModel(entry)); err != nil {
		s.logger.Error("failed to write audit entry",
			"error", err,
			"entry_id", entry.ID,
			"operation", entry.Operation,
			"actor_id", entry.ActorID)
		return internal.ErrStoreUnavailable.WithCause(err)
	}

	return nil
}

// LogCheck records a permission check decision when the caller opted into
// check logging. A failed decision is recorded as a deny.
func (s *Service) LogCheck(ctx context.Context, actorID, targetUserID int64, entityType string, allowed bool, detail string) error {
	op := OperationCheck
	result := ResultSuccess
	if !allowed {
		op = OperationDeny
		result = ResultFailure
	}

	entry := NewEntry(actorID, op, TargetUserPermission).
		WithTargetUser(targetUserID).
		WithDetails(map[string]interface{}{
			"entity_type": entityType,
			"detail":      detail,
		}).
		WithResult(result, "")

	return s.Record(ctx, entry)
}

// List returns entries matching the query, newest first.
func (s *Service) List(ctx context.Context, q Query) ([]*Entry, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}

	models, err := s.repo.List(ctx, q)
	if err != nil {
		s.logger.Error("failed to query audit log", "error", err)
		return nil, internal.ErrStoreUnavailable.WithCause(err)
	}

	return FromDataModelSlice(models), nil
}
