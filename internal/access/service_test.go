package access_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/access"
	"github.com/sara-platform/portal/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAccess(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Access Suite")
}

type grantKey struct {
	namespace string
	view      string
}

// mockRepository keeps grants in memory; modules maps module id to its key.
type mockRepository struct {
	mu         sync.Mutex
	modules    map[int64]grantKey
	grants     map[int64]map[int64]bool
	shouldFail bool
	replaced   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		modules: map[int64]grantKey{
			1: {"reports", "export"},
			2: {"reports", "summary"},
			3: {"nexus", "home"},
		},
		grants: map[int64]map[int64]bool{},
	}
}

var errStore = errors.New("connection refused")

func (m *mockRepository) Grant(ctx context.Context, userID, moduleID int64, grantedBy *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return errStore
	}
	if m.grants[userID] == nil {
		m.grants[userID] = map[int64]bool{}
	}
	m.grants[userID][moduleID] = true
	return nil
}

func (m *mockRepository) Revoke(ctx context.Context, userID, moduleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return errStore
	}
	delete(m.grants[userID], moduleID)
	return nil
}

func (m *mockRepository) ReplaceGrants(ctx context.Context, userID int64, moduleIDs []int64, grantedBy *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return errStore
	}
	m.replaced++
	set := map[int64]bool{}
	for _, id := range moduleIDs {
		set[id] = true
	}
	m.grants[userID] = set
	return nil
}

func (m *mockRepository) HasGrant(ctx context.Context, userID int64, namespace, viewIdentifier string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return false, errStore
	}
	for id := range m.grants[userID] {
		if m.modules[id] == (grantKey{namespace, viewIdentifier}) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) GrantedModuleIDs(ctx context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return nil, errStore
	}
	var ids []int64
	for id := range m.grants[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockRepository) ExistingModuleIDs(ctx context.Context, ids []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail {
		return nil, errStore
	}
	var found []int64
	for _, id := range ids {
		if _, ok := m.modules[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

var _ = Describe("Access Service", func() {
	var (
		ctx     context.Context
		repo    *mockRepository
		bus     *events.EventBus
		service *access.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockRepository()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		bus = events.NewEventBus(logger)
		service = access.NewService(repo, bus, logger)
	})

	Describe("SetExactGrants", func() {
		It("returns exactly the new set afterwards", func() {
			Expect(service.Grant(ctx, 9, 1, 2)).To(Succeed())

			Expect(service.SetExactGrants(ctx, 9, 1, []int64{1, 3})).To(Succeed())

			ids, err := service.SortedModuleIDs(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{1, 3}))
		})

		It("collapses duplicates", func() {
			Expect(service.SetExactGrants(ctx, 9, 1, []int64{3, 1, 3, 1})).To(Succeed())

			set, err := service.GrantedModuleIDs(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(set).To(HaveLen(2))
		})

		It("rejects unknown modules without touching the grants", func() {
			Expect(service.Grant(ctx, 9, 1, 2)).To(Succeed())

			err := service.SetExactGrants(ctx, 9, 1, []int64{1, 404})
			Expect(err).To(MatchError(access.ErrUnknownModule))

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.GetDetailedMessage()).To(ContainSubstring("module 404"))
			Expect(repo.replaced).To(Equal(0))

			set, _ := service.GrantedModuleIDs(ctx, 1)
			Expect(set.Has(2)).To(BeTrue())
		})

		It("publishes a grants replaced event", func() {
			received := make(chan *events.GrantsReplacedEvent, 1)
			bus.Subscribe(events.EventTypeGrantsReplaced, func(ctx context.Context, e events.Event) error {
				received <- e.(*events.GrantsReplacedEvent)
				return nil
			})

			Expect(service.SetExactGrants(ctx, 9, 1, []int64{2})).To(Succeed())

			var e *events.GrantsReplacedEvent
			Eventually(received).Should(Receive(&e))
			Expect(e.UserID).To(Equal(int64(1)))
			Expect(e.ActorID).To(Equal(int64(9)))
			Expect(e.ModuleIDs).To(Equal([]int64{2}))
		})

		It("wraps store failures", func() {
			repo.shouldFail = true
			err := service.SetExactGrants(ctx, 9, 1, nil)
			Expect(err).To(MatchError(errStore))
		})
	})

	Describe("HasGrant", func() {
		It("uses the composite key", func() {
			Expect(service.Grant(ctx, 9, 1, 1)).To(Succeed())

			ok, err := service.HasGrant(ctx, 1, "reports", "export")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = service.HasGrant(ctx, 1, "nexus", "export")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("never grants on an empty key", func() {
			ok, err := service.HasGrant(ctx, 1, "", "export")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("marks store failures as ErrStore", func() {
			repo.shouldFail = true
			ok, err := service.HasGrant(ctx, 1, "reports", "export")
			Expect(ok).To(BeFalse())
			Expect(err).To(MatchError(access.ErrStore))
		})
	})

	It("revokes a single module", func() {
		Expect(service.Grant(ctx, 9, 1, 1)).To(Succeed())
		Expect(service.Revoke(ctx, 9, 1, 1)).To(Succeed())

		set, err := service.GrantedModuleIDs(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(set).To(BeEmpty())
	})

	It("refuses to grant a module that does not exist", func() {
		Expect(service.Grant(ctx, 9, 1, 77)).To(MatchError(access.ErrUnknownModule))
	})
})
