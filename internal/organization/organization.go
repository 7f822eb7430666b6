package organization

import (
	"context"
	"time"

	orgDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/organization"
)

// Department is the read-side view of one node in a per-organization
// department tree. The organization subsystem owns the rows; this service
// never writes them.
type Department struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	ParentID       *int64    `json:"parent_id,omitempty"`
	LeaderID       *int64    `json:"leader_id,omitempty"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RepositoryAPI is the read-only contract the hierarchy service needs from the
// organization store.
type RepositoryAPI interface {
	GetDepartment(ctx context.Context, id int64) (*Department, error)
	ChildrenOf(ctx context.Context, departmentID int64) ([]*Department, error)
	DepartmentsLedBy(ctx context.Context, userID int64) ([]*Department, error)
	PrimaryDepartmentOf(ctx context.Context, userID int64) (*int64, error)
}

// IDSet is how traversal results are returned; membership checks dominate the
// access patterns downstream.
type IDSet map[int64]struct{}

func (s IDSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Slice() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

func FromDataModel(d *orgDatamodel.Department) *Department {
	return &Department{
		ID:             d.ID,
		OrganizationID: d.OrganizationID,
		ParentID:       d.ParentID,
		LeaderID:       d.LeaderID,
		Name:           d.Name,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func FromDataModelSlice(departments []*orgDatamodel.Department) []*Department {
	result := make([]*Department, len(departments))
	for i, d := range departments {
		result[i] = FromDataModel(d)
	}
	return result
}
