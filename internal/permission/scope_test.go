package permission_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/access-management/internal/organization"
	"github.com/frahmantamala/access-management/internal/permission"
)

// Mock hierarchy backed by plain maps
type mockHierarchy struct {
	primaryDept map[int64]*int64
	descendants map[int64][]int64
	err         error
}

func newMockHierarchy() *mockHierarchy {
	return &mockHierarchy{
		primaryDept: make(map[int64]*int64),
		descendants: make(map[int64][]int64),
	}
}

func (m *mockHierarchy) PrimaryDepartment(ctx context.Context, userID int64) (*int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.primaryDept[userID], nil
}

func (m *mockHierarchy) Descendants(ctx context.Context, departmentID int64) (organization.IDSet, error) {
	if m.err != nil {
		return nil, m.err
	}
	set := make(organization.IDSet)
	for _, id := range m.descendants[departmentID] {
		set[id] = struct{}{}
	}
	return set, nil
}

func (m *mockHierarchy) DescendantsIncludingSelf(ctx context.Context, departmentID int64) (organization.IDSet, error) {
	set, err := m.Descendants(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	set[departmentID] = struct{}{}
	return set, nil
}

// fakeQuery records the conditions applied to it
type fakeQuery struct {
	conditions []string
	args       [][]interface{}
	matchNone  bool
}

func (q *fakeQuery) Where(cond string, args ...interface{}) permission.Query {
	q.conditions = append(q.conditions, cond)
	q.args = append(q.args, args)
	return q
}

func (q *fakeQuery) MatchNone() permission.Query {
	q.matchNone = true
	return q
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func mustJSON(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	Expect(err).NotTo(HaveOccurred())
	return raw
}

var _ = Describe("ScopeResolver", func() {
	var (
		hierarchy *mockHierarchy
		resolver  *permission.ScopeResolver
		ctx       context.Context
	)

	BeforeEach(func() {
		hierarchy = newMockHierarchy()
		resolver = permission.NewScopeResolver(hierarchy, testLogger())
		ctx = context.Background()
	})

	grant := func(scopeType permission.ScopeType, scopeValue json.RawMessage) *permission.DataPermission {
		return &permission.DataPermission{
			ID:         1,
			UserID:     42,
			EntityType: permission.EntityAsset,
			ScopeType:  scopeType,
			ScopeValue: scopeValue,
		}
	}

	Describe("Resolve", func() {
		It("resolves the all scope to an unrestricted filter", func() {
			filter, err := resolver.Resolve(ctx, grant(permission.ScopeAll, nil), 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterUnrestricted))
		})

		It("resolves self_only to an own-records filter", func() {
			filter, err := resolver.Resolve(ctx, grant(permission.ScopeSelfOnly, nil), 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterOwnRecords))
		})

		It("resolves own_department to the user's primary department", func() {
			dept := int64(7)
			hierarchy.primaryDept[42] = &dept

			filter, err := resolver.Resolve(ctx, grant(permission.ScopeOwnDepartment, nil), 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterDepartments))
			Expect(filter.DepartmentIDs).To(ConsistOf(int64(7)))
		})

		It("resolves the department tree to the department and its descendants", func() {
			dept := int64(7)
			hierarchy.primaryDept[42] = &dept
			hierarchy.descendants[7] = []int64{12, 13}

			filter, err := resolver.Resolve(ctx, grant(permission.ScopeOwnDepartmentTree, nil), 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterDepartments))
			Expect(filter.DepartmentIDs).To(ConsistOf(int64(7), int64(12), int64(13)))
		})

		It("resolves department scopes to an empty set for users without a department", func() {
			filter, err := resolver.Resolve(ctx, grant(permission.ScopeOwnDepartmentTree, nil), 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterDepartments))
			Expect(filter.DepartmentIDs).To(BeEmpty())
		})

		It("resolves specified departments verbatim without hierarchy expansion", func() {
			hierarchy.descendants[3] = []int64{30, 31}

			filter, err := resolver.Resolve(ctx, grant(permission.ScopeSpecifiedDepts, mustJSON([]int64{3, 9})), 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.DepartmentIDs).To(ConsistOf(int64(3), int64(9)))
		})

		It("passes custom expressions through unevaluated", func() {
			filter, err := resolver.Resolve(ctx, grant(permission.ScopeCustom, mustJSON("status = 'active'")), 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterCustomExpr))
			Expect(filter.Expression).To(Equal("status = 'active'"))
		})

		It("fails on a malformed scope_value", func() {
			_, err := resolver.Resolve(ctx, grant(permission.ScopeSpecifiedDepts, json.RawMessage(`"oops"`)), 42)
			Expect(err).To(HaveOccurred())
		})

		It("propagates hierarchy errors", func() {
			dept := int64(7)
			hierarchy.primaryDept[42] = &dept
			hierarchy.err = errors.New("hierarchy store down")

			_, err := resolver.Resolve(ctx, grant(permission.ScopeOwnDepartmentTree, nil), 42)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Apply", func() {
		It("leaves the query untouched for unrestricted filters", func() {
			q := &fakeQuery{}
			resolver.Apply(permission.Unrestricted(), q, "department_id", "created_by", 42)
			Expect(q.conditions).To(BeEmpty())
			Expect(q.matchNone).To(BeFalse())
		})

		It("constrains own-records filters to the user column", func() {
			q := &fakeQuery{}
			resolver.Apply(permission.OwnRecordsOnly(), q, "department_id", "created_by", 42)
			Expect(q.conditions).To(ConsistOf("created_by = ?"))
			Expect(q.args[0]).To(ConsistOf(int64(42)))
		})

		It("constrains department filters to the department column", func() {
			q := &fakeQuery{}
			resolver.Apply(permission.DepartmentScope([]int64{7, 12}), q, "department_id", "created_by", 42)
			Expect(q.conditions).To(ConsistOf("department_id IN ?"))
		})

		It("collapses an empty department set to match nothing", func() {
			q := &fakeQuery{}
			resolver.Apply(permission.DepartmentScope(nil), q, "department_id", "created_by", 42)
			Expect(q.matchNone).To(BeTrue())
			Expect(q.conditions).To(BeEmpty())
		})

		It("applies custom expressions verbatim", func() {
			q := &fakeQuery{}
			resolver.Apply(permission.CustomScope("status = 'active'"), q, "department_id", "created_by", 42)
			Expect(q.conditions).To(ConsistOf("status = 'active'"))
		})

		It("falls back to the default columns when none are configured", func() {
			q := &fakeQuery{}
			resolver.Apply(permission.OwnRecordsOnly(), q, "", "", 42)
			Expect(q.conditions).To(ConsistOf(fmt.Sprintf("%s = ?", permission.DefaultUserField)))
		})
	})
})
