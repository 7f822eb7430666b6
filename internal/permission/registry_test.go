package permission_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/audit"
	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/internal/permission"
)

// Mock repository that records mutations and their audit entries
type mockPermRepository struct {
	dataPerms   map[string]*permission.DataPermission
	fieldPerms  map[string]*permission.FieldPermission
	entries     []*audit.Entry
	copiedCount int
	failWith    error
	nextID      int64
}

func newMockPermRepository() *mockPermRepository {
	return &mockPermRepository{
		dataPerms:  make(map[string]*permission.DataPermission),
		fieldPerms: make(map[string]*permission.FieldPermission),
	}
}

func dataKey(userID int64, entityType string) string {
	return strconv.FormatInt(userID, 10) + "|" + entityType
}

func fieldKey(userID int64, entityType, fieldName string) string {
	return dataKey(userID, entityType) + "|" + fieldName
}

func (m *mockPermRepository) GetDataPermission(ctx context.Context, userID int64, entityType string) (*permission.DataPermission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.dataPerms[dataKey(userID, entityType)], nil
}

func (m *mockPermRepository) UpsertDataPermission(ctx context.Context, perm *permission.DataPermission, entry *audit.Entry) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	key := dataKey(perm.UserID, perm.EntityType)
	_, updated := m.dataPerms[key]
	if updated {
		entry.Operation = audit.OperationModify
	}
	m.nextID++
	perm.ID = m.nextID
	m.dataPerms[key] = perm
	m.entries = append(m.entries, entry)
	return updated, nil
}

func (m *mockPermRepository) RevokeDataPermission(ctx context.Context, id int64, entry *audit.Entry) (*permission.DataPermission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	for key, perm := range m.dataPerms {
		if perm.ID == id {
			delete(m.dataPerms, key)
			m.entries = append(m.entries, entry)
			return perm, nil
		}
	}
	return nil, internal.ErrPermissionNotFound
}

func (m *mockPermRepository) ListDataPermissionsByUser(ctx context.Context, userID int64) ([]*permission.DataPermission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var perms []*permission.DataPermission
	for _, perm := range m.dataPerms {
		if perm.UserID == userID {
			perms = append(perms, perm)
		}
	}
	return perms, nil
}

func (m *mockPermRepository) GetFieldPermissions(ctx context.Context, userID int64, entityType string) ([]*permission.FieldPermission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var perms []*permission.FieldPermission
	for _, perm := range m.fieldPerms {
		if perm.UserID == userID && perm.EntityType == entityType {
			perms = append(perms, perm)
		}
	}
	return perms, nil
}

func (m *mockPermRepository) GetFieldPermission(ctx context.Context, userID int64, entityType, fieldName string) (*permission.FieldPermission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.fieldPerms[fieldKey(userID, entityType, fieldName)], nil
}

func (m *mockPermRepository) UpsertFieldPermission(ctx context.Context, perm *permission.FieldPermission, entry *audit.Entry) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	key := fieldKey(perm.UserID, perm.EntityType, perm.FieldName)
	_, updated := m.fieldPerms[key]
	if updated {
		entry.Operation = audit.OperationModify
	}
	m.nextID++
	perm.ID = m.nextID
	m.fieldPerms[key] = perm
	m.entries = append(m.entries, entry)
	return updated, nil
}

func (m *mockPermRepository) RevokeFieldPermission(ctx context.Context, id int64, entry *audit.Entry) (*permission.FieldPermission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	for key, perm := range m.fieldPerms {
		if perm.ID == id {
			delete(m.fieldPerms, key)
			m.entries = append(m.entries, entry)
			return perm, nil
		}
	}
	return nil, internal.ErrPermissionNotFound
}

func (m *mockPermRepository) ListFieldPermissionsByUser(ctx context.Context, userID int64) ([]*permission.FieldPermission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var perms []*permission.FieldPermission
	for _, perm := range m.fieldPerms {
		if perm.UserID == userID {
			perms = append(perms, perm)
		}
	}
	return perms, nil
}

func (m *mockPermRepository) CopyToUser(ctx context.Context, sourceUserID, targetUserID, actorID int64, meta internal.RequestMeta) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	return m.copiedCount, nil
}

var _ = Describe("Registry", func() {
	var (
		repo     *mockPermRepository
		bus      *events.EventBus
		registry *permission.Registry
		ctx      context.Context

		granted int
		revoked int
	)

	const actorID = int64(99)

	BeforeEach(func() {
		repo = newMockPermRepository()
		bus = events.NewEventBus(testLogger())
		registry = permission.NewRegistry(repo, bus, testLogger())
		ctx = context.Background()

		granted, revoked = 0, 0
		bus.Subscribe(events.EventTypePermissionGranted, func(ctx context.Context, event events.Event) error {
			granted++
			return nil
		})
		bus.Subscribe(events.EventTypePermissionRevoked, func(ctx context.Context, event events.Event) error {
			revoked++
			return nil
		})
	})

	Describe("GrantDataPermission", func() {
		It("persists a valid grant with a grant audit entry", func() {
			perm, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     42,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeOwnDepartmentTree,
			}, actorID)

			Expect(err).NotTo(HaveOccurred())
			Expect(perm.ID).NotTo(BeZero())
			Expect(perm.CreatedBy).To(Equal(actorID))
			Expect(repo.entries).To(HaveLen(1))
			Expect(repo.entries[0].Operation).To(Equal(audit.OperationGrant))
			Expect(*repo.entries[0].TargetUserID).To(Equal(int64(42)))
			Expect(granted).To(Equal(1))
		})

		It("records a modify when granting over an existing permission", func() {
			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     42,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeSelfOnly,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			_, err = registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     42,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeAll,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			Expect(repo.entries).To(HaveLen(2))
			Expect(repo.entries[1].Operation).To(Equal(audit.OperationModify))
		})

		It("rejects an unknown entity type before any write", func() {
			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     42,
				EntityType: "spaceship",
				ScopeType:  permission.ScopeAll,
			}, actorID)

			Expect(errors.Is(err, internal.ErrUnknownEntityType)).To(BeTrue())
			Expect(repo.entries).To(BeEmpty())
			Expect(granted).To(BeZero())
		})

		It("rejects specified_departments without department IDs", func() {
			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     42,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeSpecifiedDepts,
				ScopeValue: json.RawMessage(`[]`),
			}, actorID)

			Expect(errors.Is(err, internal.ErrInvalidScopeValue)).To(BeTrue())
			Expect(repo.entries).To(BeEmpty())
		})

		It("wraps repository failures as store errors", func() {
			repo.failWith = errors.New("connection refused")

			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     42,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeAll,
			}, actorID)

			Expect(errors.Is(err, internal.ErrStoreUnavailable)).To(BeTrue())
		})
	})

	Describe("GrantFieldPermission", func() {
		It("persists a valid masked rule", func() {
			perm, err := registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         42,
				EntityType:     permission.EntityAsset,
				FieldName:      "phone",
				PermissionType: permission.PermissionMasked,
				MaskRule:       permission.MaskPhone,
			}, actorID)

			Expect(err).NotTo(HaveOccurred())
			Expect(perm.ID).NotTo(BeZero())
			Expect(repo.entries).To(HaveLen(1))
			Expect(granted).To(Equal(1))
		})

		It("rejects a masked rule without a mask_rule and writes nothing", func() {
			_, err := registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         42,
				EntityType:     permission.EntityAsset,
				FieldName:      "phone",
				PermissionType: permission.PermissionMasked,
			}, actorID)

			Expect(errors.Is(err, internal.ErrMissingMaskRule)).To(BeTrue())
			Expect(repo.entries).To(BeEmpty())
			Expect(granted).To(BeZero())
		})

		It("rejects a mask_rule on a non-masked permission", func() {
			_, err := registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         42,
				EntityType:     permission.EntityAsset,
				FieldName:      "phone",
				PermissionType: permission.PermissionRead,
				MaskRule:       permission.MaskPhone,
			}, actorID)

			Expect(err).To(HaveOccurred())
			Expect(repo.entries).To(BeEmpty())
		})
	})

	Describe("RevokeDataPermission", func() {
		It("revokes an existing permission and publishes the event", func() {
			perm, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     42,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeAll,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			Expect(registry.RevokeDataPermission(ctx, perm.ID, actorID)).To(Succeed())
			Expect(repo.entries).To(HaveLen(2))
			Expect(repo.entries[1].Operation).To(Equal(audit.OperationRevoke))
			Expect(revoked).To(Equal(1))
		})

		It("returns NotFound for an already revoked permission", func() {
			perm, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     42,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeAll,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			Expect(registry.RevokeDataPermission(ctx, perm.ID, actorID)).To(Succeed())

			err = registry.RevokeDataPermission(ctx, perm.ID, actorID)
			Expect(errors.Is(err, internal.ErrPermissionNotFound)).To(BeTrue())
			Expect(revoked).To(Equal(1))
		})

		It("returns NotFound for an unknown ID", func() {
			err := registry.RevokeDataPermission(ctx, 12345, actorID)
			Expect(errors.Is(err, internal.ErrPermissionNotFound)).To(BeTrue())
		})
	})

	Describe("CopyToUser", func() {
		It("rejects copying a user onto themselves", func() {
			_, err := registry.CopyToUser(ctx, permission.CopyPermissionsDTO{
				SourceUserID: 42,
				TargetUserID: 42,
			}, actorID)
			Expect(err).To(HaveOccurred())
		})

		It("reports how many permissions were copied", func() {
			repo.copiedCount = 3

			count, err := registry.CopyToUser(ctx, permission.CopyPermissionsDTO{
				SourceUserID: 42,
				TargetUserID: 43,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(3))
		})
	})

	Describe("UserPermissions", func() {
		It("lists both permission kinds for a user", func() {
			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     42,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeAll,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			_, err = registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         42,
				EntityType:     permission.EntityAsset,
				FieldName:      "amount",
				PermissionType: permission.PermissionHidden,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			perms, err := registry.UserPermissions(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(perms.DataPermissions).To(HaveLen(1))
			Expect(perms.FieldPermissions).To(HaveLen(1))
		})
	})
})
