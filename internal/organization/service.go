package organization

import (
	"context"
	"log/slog"
)

// Service answers hierarchy questions over the department tree. It holds no
// mutable state and is safe for concurrent use.
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

// Descendants returns every department transitively below departmentID,
// excluding the department itself. The visited set guards against a corrupted
// store containing a parent cycle: traversal stops at revisits instead of
// looping, it does not repair or report the cycle.
func (s *Service) Descendants(ctx context.Context, departmentID int64) (IDSet, error) {
	visited := IDSet{departmentID: {}}
	result := IDSet{}

	queue := []int64{departmentID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := s.repo.ChildrenOf(ctx, current)
		if err != nil {
			s.logger.Error("failed to load child departments", "error", err, "department_id", current)
			return nil, err
		}

		for _, child := range children {
			if visited.Contains(child.ID) {
				s.logger.Warn("department tree contains a cycle, skipping revisit",
					"department_id", child.ID,
					"parent_id", current)
				continue
			}
			visited[child.ID] = struct{}{}
			result[child.ID] = struct{}{}
			queue = append(queue, child.ID)
		}
	}

	return result, nil
}

// DescendantsIncludingSelf is Descendants plus the starting department.
func (s *Service) DescendantsIncludingSelf(ctx context.Context, departmentID int64) (IDSet, error) {
	descendants, err := s.Descendants(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	descendants[departmentID] = struct{}{}
	return descendants, nil
}

// PrimaryDepartment returns the user's primary department, or nil when the
// user has none. The "at most one primary membership" invariant is enforced by
// the organization subsystem, not here.
func (s *Service) PrimaryDepartment(ctx context.Context, userID int64) (*int64, error) {
	return s.repo.PrimaryDepartmentOf(ctx, userID)
}

// DepartmentsLedBy returns departments where the user is recorded as leader,
// independent of membership.
func (s *Service) DepartmentsLedBy(ctx context.Context, userID int64) (IDSet, error) {
	departments, err := s.repo.DepartmentsLedBy(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load led departments", "error", err, "user_id", userID)
		return nil, err
	}

	result := IDSet{}
	for _, d := range departments {
		result[d.ID] = struct{}{}
	}
	return result, nil
}

// ManagedDepartments is the union of the departments the user leads and, when
// recursive, all of their descendants.
func (s *Service) ManagedDepartments(ctx context.Context, userID int64, recursive bool) (IDSet, error) {
	led, err := s.DepartmentsLedBy(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !recursive {
		return led, nil
	}

	result := IDSet{}
	for id := range led {
		result[id] = struct{}{}
		descendants, err := s.Descendants(ctx, id)
		if err != nil {
			return nil, err
		}
		for d := range descendants {
			result[d] = struct{}{}
		}
	}
	return result, nil
}
