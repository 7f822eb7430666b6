package asset

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/permission"
)

// EngineAPI is the slice of the permission engine the asset service consumes.
type EngineAPI interface {
	FilterQuery(ctx context.Context, actor permission.Actor, entityType string, query permission.Query) (permission.Query, error)
	MaskRecord(ctx context.Context, actor permission.Actor, entityType string, record map[string]interface{}) (map[string]interface{}, error)
	MaskRecords(ctx context.Context, actor permission.Actor, entityType string, records []map[string]interface{}) ([]map[string]interface{}, error)
}

// Service is the reference consumer of the permission engine: every read
// narrows rows by the actor's scope and masks fields by the actor's rules.
type Service struct {
	repo   RepositoryAPI
	engine EngineAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, engine EngineAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		logger: logger,
	}
}

// List returns the assets visible to the actor, masked per their field rules.
func (s *Service) List(ctx context.Context, actor permission.Actor, limit, offset int) ([]map[string]interface{}, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	narrow := func(q permission.Query) permission.Query {
		narrowed, err := s.engine.FilterQuery(ctx, actor, permission.EntityAsset, q)
		if err != nil {
			// FilterQuery only fails on an unknown entity type, which cannot
			// happen for the fixed constant used here.
			s.logger.Error("asset scope filtering failed", "error", err, "user_id", actor.ID)
			return q.MatchNone()
		}
		return narrowed
	}

	assets, err := s.repo.List(ctx, narrow, limit, offset)
	if err != nil {
		s.logger.Error("failed to list assets", "error", err, "user_id", actor.ID)
		return nil, internal.ErrStoreUnavailable.WithCause(err)
	}

	records := make([]map[string]interface{}, len(assets))
	for i, a := range assets {
		records[i] = a.ToRecord()
	}

	masked, err := s.engine.MaskRecords(ctx, actor, permission.EntityAsset, records)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("assets listed",
		"user_id", actor.ID,
		"count", len(masked),
		"limit", limit,
		"offset", offset)

	return masked, nil
}

// Get returns one asset if the actor's scope covers it. Rows outside the
// scope read as not found, the same as rows that do not exist.
func (s *Service) Get(ctx context.Context, actor permission.Actor, id int64) (map[string]interface{}, error) {
	narrow := func(q permission.Query) permission.Query {
		narrowed, err := s.engine.FilterQuery(ctx, actor, permission.EntityAsset, q)
		if err != nil {
			s.logger.Error("asset scope filtering failed", "error", err, "user_id", actor.ID)
			return q.MatchNone()
		}
		return narrowed
	}

	found, err := s.repo.GetByID(ctx, id, narrow)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, internal.ErrAssetNotFound
	}

	return s.engine.MaskRecord(ctx, actor, permission.EntityAsset, found.ToRecord())
}
