package permission_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/internal/permission"
)

var _ = Describe("Engine", func() {
	var (
		repo      *mockPermRepository
		hierarchy *mockHierarchy
		bus       *events.EventBus
		registry  *permission.Registry
		engine    *permission.Engine
		ctx       context.Context
	)

	const actorID = int64(99)

	user := permission.Actor{ID: 42}
	superuser := permission.Actor{ID: 1, IsSuperuser: true}

	BeforeEach(func() {
		repo = newMockPermRepository()
		hierarchy = newMockHierarchy()
		bus = events.NewEventBus(testLogger())
		registry = permission.NewRegistry(repo, bus, testLogger())
		resolver := permission.NewScopeResolver(hierarchy, testLogger())
		engine = permission.NewEngine(registry, resolver, nil, bus, internal.PermissionConfig{
			ScopeCacheSize:   32,
			ScopeCacheTTL:    time.Minute,
			DefaultUserField: "created_by",
			DefaultDeptField: "department_id",
		}, testLogger())
		ctx = context.Background()
	})

	Describe("GetDataScope", func() {
		It("gives superusers an unrestricted scope without touching the store", func() {
			repo.failWith = errors.New("store down")

			filter, err := engine.GetDataScope(ctx, superuser, permission.EntityAsset)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterUnrestricted))
		})

		It("defaults users without a grant to their own records", func() {
			filter, err := engine.GetDataScope(ctx, user, permission.EntityAsset)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterOwnRecords))
		})

		It("resolves a granted scope", func() {
			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     user.ID,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeAll,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			filter, err := engine.GetDataScope(ctx, user, permission.EntityAsset)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterUnrestricted))
		})

		It("narrows to own records when the store is unavailable", func() {
			repo.failWith = errors.New("connection refused")

			filter, err := engine.GetDataScope(ctx, user, permission.EntityAsset)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterOwnRecords))
		})

		It("narrows to own records when the stored scope_value is malformed", func() {
			repo.dataPerms[dataKey(user.ID, permission.EntityAsset)] = &permission.DataPermission{
				ID:         7,
				UserID:     user.ID,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeSpecifiedDepts,
				ScopeValue: json.RawMessage(`"not-a-list"`),
			}

			filter, err := engine.GetDataScope(ctx, user, permission.EntityAsset)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterOwnRecords))
		})

		It("rejects unknown entity types", func() {
			_, err := engine.GetDataScope(ctx, user, "spaceship")
			Expect(errors.Is(err, internal.ErrUnknownEntityType)).To(BeTrue())
		})

		It("accepts prefixed custom entity types", func() {
			_, err := engine.GetDataScope(ctx, user, "x-contracts")
			Expect(err).NotTo(HaveOccurred())
		})

		It("sees permission changes immediately through cache invalidation", func() {
			filter, err := engine.GetDataScope(ctx, user, permission.EntityAsset)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterOwnRecords))

			_, err = registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     user.ID,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeAll,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			filter, err = engine.GetDataScope(ctx, user, permission.EntityAsset)
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Kind).To(Equal(permission.FilterUnrestricted))
		})
	})

	Describe("FilterQuery", func() {
		It("applies the own-records filter for users without a grant", func() {
			q := &fakeQuery{}
			_, err := engine.FilterQuery(ctx, user, permission.EntityAsset, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(q.conditions).To(ConsistOf("created_by = ?"))
		})

		It("honors the grant's column overrides", func() {
			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     user.ID,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeSelfOnly,
				UserField:  "owner_id",
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			q := &fakeQuery{}
			_, err = engine.FilterQuery(ctx, user, permission.EntityAsset, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(q.conditions).To(ConsistOf("owner_id = ?"))
		})

		It("honors the grant's column overrides with caching disabled", func() {
			resolver := permission.NewScopeResolver(hierarchy, testLogger())
			uncached := permission.NewEngine(registry, resolver, nil, bus, internal.PermissionConfig{
				ScopeCacheSize:   0,
				DefaultUserField: "created_by",
				DefaultDeptField: "department_id",
			}, testLogger())

			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     user.ID,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeSelfOnly,
				UserField:  "owner_id",
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			q := &fakeQuery{}
			_, err = uncached.FilterQuery(ctx, user, permission.EntityAsset, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(q.conditions).To(ConsistOf("owner_id = ?"))
		})

		It("honors a department column override on a department scope", func() {
			dept := int64(7)
			hierarchy.primaryDept[user.ID] = &dept

			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:          user.ID,
				EntityType:      permission.EntityAsset,
				ScopeType:       permission.ScopeOwnDepartment,
				DepartmentField: "dept_id",
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			q := &fakeQuery{}
			_, err = engine.FilterQuery(ctx, user, permission.EntityAsset, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(q.conditions).To(ConsistOf("dept_id IN ?"))
		})

		It("leaves superuser queries untouched", func() {
			q := &fakeQuery{}
			_, err := engine.FilterQuery(ctx, superuser, permission.EntityAsset, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(q.conditions).To(BeEmpty())
			Expect(q.matchNone).To(BeFalse())
		})

		It("collapses department scopes to nothing for users without a department", func() {
			_, err := registry.GrantDataPermission(ctx, permission.GrantDataPermissionDTO{
				UserID:     user.ID,
				EntityType: permission.EntityAsset,
				ScopeType:  permission.ScopeOwnDepartmentTree,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			q := &fakeQuery{}
			_, err = engine.FilterQuery(ctx, user, permission.EntityAsset, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(q.matchNone).To(BeTrue())
		})
	})

	Describe("MaskRecord", func() {
		record := func() map[string]interface{} {
			return map[string]interface{}{
				"id":     int64(1),
				"name":   "Laptop",
				"phone":  "13812345678",
				"amount": float64(25000),
			}
		}

		It("returns all fields untouched when no rules exist", func() {
			masked, err := engine.MaskRecord(ctx, user, permission.EntityAsset, record())
			Expect(err).NotTo(HaveOccurred())
			Expect(masked).To(Equal(record()))
		})

		It("removes hidden fields and masks masked ones", func() {
			_, err := registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         user.ID,
				EntityType:     permission.EntityAsset,
				FieldName:      "amount",
				PermissionType: permission.PermissionHidden,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			_, err = registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         user.ID,
				EntityType:     permission.EntityAsset,
				FieldName:      "phone",
				PermissionType: permission.PermissionMasked,
				MaskRule:       permission.MaskPhone,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			masked, err := engine.MaskRecord(ctx, user, permission.EntityAsset, record())
			Expect(err).NotTo(HaveOccurred())
			Expect(masked).NotTo(HaveKey("amount"))
			Expect(masked["phone"]).To(Equal("138****5678"))
			Expect(masked["name"]).To(Equal("Laptop"))
		})

		It("never masks superusers", func() {
			_, err := registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         superuser.ID,
				EntityType:     permission.EntityAsset,
				FieldName:      "amount",
				PermissionType: permission.PermissionHidden,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			masked, err := engine.MaskRecord(ctx, superuser, permission.EntityAsset, record())
			Expect(err).NotTo(HaveOccurred())
			Expect(masked).To(HaveKey("amount"))
		})

		It("applies the highest-priority rule when rules collide", func() {
			_, err := registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         user.ID,
				EntityType:     permission.EntityAsset,
				FieldName:      "phone",
				PermissionType: permission.PermissionHidden,
				Priority:       1,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			// Same key would replace in the store; simulate a second rule at a
			// different priority surviving side by side.
			repo.fieldPerms[fieldKey(user.ID, permission.EntityAsset, "phone")+"-alt"] = &permission.FieldPermission{
				ID:             1000,
				UserID:         user.ID,
				EntityType:     permission.EntityAsset,
				FieldName:      "phone",
				PermissionType: permission.PermissionMasked,
				MaskRule:       permission.MaskPhone,
				Priority:       10,
			}

			masked, err := engine.MaskRecord(ctx, user, permission.EntityAsset, record())
			Expect(err).NotTo(HaveOccurred())
			Expect(masked["phone"]).To(Equal("138****5678"))
		})

		It("fails closed when the store is unavailable", func() {
			repo.failWith = errors.New("connection refused")

			_, err := engine.MaskRecord(ctx, user, permission.EntityAsset, record())
			Expect(errors.Is(err, internal.ErrStoreUnavailable)).To(BeTrue())
		})

		It("does not mutate the input record", func() {
			_, err := registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         user.ID,
				EntityType:     permission.EntityAsset,
				FieldName:      "phone",
				PermissionType: permission.PermissionMasked,
				MaskRule:       permission.MaskPhone,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			input := record()
			_, err = engine.MaskRecord(ctx, user, permission.EntityAsset, input)
			Expect(err).NotTo(HaveOccurred())
			Expect(input["phone"]).To(Equal("13812345678"))
		})
	})

	Describe("MaskRecords", func() {
		It("masks every record in a page", func() {
			_, err := registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         user.ID,
				EntityType:     permission.EntityAsset,
				FieldName:      "serial",
				PermissionType: permission.PermissionHidden,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			page := []map[string]interface{}{
				{"id": int64(1), "serial": "SN-1"},
				{"id": int64(2), "serial": "SN-2"},
			}
			masked, err := engine.MaskRecords(ctx, user, permission.EntityAsset, page)
			Expect(err).NotTo(HaveOccurred())
			Expect(masked).To(HaveLen(2))
			for _, rec := range masked {
				Expect(rec).NotTo(HaveKey("serial"))
			}
		})
	})

	Describe("DecideFields", func() {
		It("marks read-only fields without altering the value", func() {
			_, err := registry.GrantFieldPermission(ctx, permission.GrantFieldPermissionDTO{
				UserID:         user.ID,
				EntityType:     permission.EntityAsset,
				FieldName:      "status",
				PermissionType: permission.PermissionRead,
			}, actorID)
			Expect(err).NotTo(HaveOccurred())

			decisions, err := engine.DecideFields(ctx, user, permission.EntityAsset, map[string]interface{}{
				"status": "active",
				"name":   "Laptop",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(decisions["status"].Kind).To(Equal(permission.DecisionReadOnly))
			Expect(decisions["status"].Value).To(Equal("active"))
			Expect(decisions["name"].Kind).To(Equal(permission.DecisionVisible))
		})
	})
})
