package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sara-platform/portal/internal/auth"
	"github.com/sara-platform/portal/internal/core/events"
	"github.com/sara-platform/portal/internal/session"
	"github.com/sara-platform/portal/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const (
	cookieName    = "portal_session"
	sessionSecret = "0123456789abcdef0123456789abcdef"
)

type mockGrants struct {
	granted    map[int64]map[string]bool
	shouldFail bool
	calls      int
}

func (m *mockGrants) HasGrant(ctx context.Context, userID int64, namespace, action string) (bool, error) {
	m.calls++
	if m.shouldFail {
		return false, errors.New("connection refused")
	}
	return m.granted[userID][namespace+":"+action], nil
}

func newSessionManager(mr *miniredis.Miniredis) (*session.Manager, *redis.Client) {
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(client, discardLogger())
	manager := session.NewManager(store, session.NewCookieCodec(sessionSecret), session.Options{
		CookieName: cookieName,
		TTL:        time.Hour,
	}, discardLogger())
	return manager, client
}

// withSession loads the request's session the way SessionMiddleware does.
func withSession(manager *session.Manager, r *http.Request, identity *auth.Identity) *http.Request {
	ctx := r.Context()
	sess, err := manager.Load(ctx, r)
	Expect(err).NotTo(HaveOccurred())
	if sess != nil {
		ctx = session.WithSession(ctx, sess)
	}
	if identity != nil {
		ctx = auth.WithIdentity(ctx, identity)
	}
	return r.WithContext(ctx)
}

func flashesOf(manager *session.Manager, w *httptest.ResponseRecorder) []session.Message {
	r := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	sess, err := manager.Load(context.Background(), r)
	Expect(err).NotTo(HaveOccurred())
	if sess == nil {
		return nil
	}
	return sess.Data.Flashes
}

var _ = Describe("Gate", func() {
	var (
		mr        *miniredis.Miniredis
		client    *redis.Client
		manager   *session.Manager
		grants    *mockGrants
		publisher *recordingPublisher
		gate      *auth.Gate
		reached   bool
		protected http.Handler
		member    *auth.Identity
	)

	BeforeEach(func() {
		mr = miniredis.RunT(GinkgoT())
		manager, client = newSessionManager(mr)
		grants = &mockGrants{granted: map[int64]map[string]bool{
			7: {"phoenix:home": true},
		}}
		publisher = &recordingPublisher{}
		gate = auth.NewGate(transport.NewBaseHandler(discardLogger()), grants, manager, publisher, auth.GateConfig{
			HomePath:    "/",
			ListingPath: "/users/",
		})
		reached = false
		protected = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			w.WriteHeader(http.StatusOK)
		})
		member = &auth.Identity{UserID: 7, Username: "ana"}
	})

	AfterEach(func() {
		_ = client.Close()
	})

	serve := func(mw func(http.Handler) http.Handler, r *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mw(protected).ServeHTTP(w, r)
		return w
	}

	Context("when the requester is anonymous", func() {
		It("sends them home when the referer is the requested page", func() {
			r := httptest.NewRequest(http.MethodGet, "http://portal.local/phoenix/", nil)
			r.Header.Set("Referer", "http://portal.local/phoenix/")

			w := serve(gate.Require("phoenix", "home"), withSession(manager, r, nil))

			Expect(reached).To(BeFalse())
			Expect(w.Code).To(Equal(http.StatusFound))
			Expect(w.Header().Get("Location")).To(Equal("/?next=%2Fphoenix%2F"))
			Expect(grants.calls).To(BeZero())

			flashes := flashesOf(manager, w)
			Expect(flashes).To(HaveLen(1))
			Expect(flashes[0].Level).To(Equal(session.LevelInfo))
			Expect(flashes[0].Text).To(ContainSubstring("PHOENIX"))
		})

		It("sends them home without a referer", func() {
			r := httptest.NewRequest(http.MethodGet, "http://portal.local/phoenix/?q=silva", nil)
			w := serve(gate.Require("phoenix", "home"), withSession(manager, r, nil))

			Expect(w.Header().Get("Location")).To(Equal("/?next=%2Fphoenix%2F%3Fq%3Dsilva"))
		})

		It("returns them to the referring page and replaces its next parameter", func() {
			r := httptest.NewRequest(http.MethodGet, "http://portal.local/phoenix/", nil)
			r.Header.Set("Referer", "http://portal.local/users/?next=%2Fold%2F&page=2")

			w := serve(gate.Require("phoenix", "home"), withSession(manager, r, nil))

			loc, err := url.Parse(w.Header().Get("Location"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Path).To(Equal("/users/"))
			Expect(loc.Query()["next"]).To(Equal([]string{"/phoenix/"}))
			Expect(loc.Query().Get("page")).To(Equal("2"))
		})

		It("ignores referers from other hosts", func() {
			r := httptest.NewRequest(http.MethodGet, "http://portal.local/nexus/", nil)
			r.Header.Set("Referer", "https://evil.example/landing")

			w := serve(gate.Require("nexus", "home"), withSession(manager, r, nil))
			Expect(w.Header().Get("Location")).To(Equal("/?next=%2Fnexus%2F"))
		})

		It("does not queue the same message twice for immediate retries", func() {
			r := httptest.NewRequest(http.MethodGet, "http://portal.local/phoenix/", nil)
			first := serve(gate.Require("phoenix", "home"), withSession(manager, r, nil))

			retry := httptest.NewRequest(http.MethodGet, "http://portal.local/phoenix/", nil)
			for _, c := range first.Result().Cookies() {
				retry.AddCookie(c)
			}
			serve(gate.Require("phoenix", "home"), withSession(manager, retry, nil))

			Expect(flashesOf(manager, first)).To(HaveLen(1))
		})
	})

	Context("when the requester is authenticated", func() {
		It("lets superusers through without a grant lookup", func() {
			root := &auth.Identity{UserID: 1, IsSuperuser: true}
			r := httptest.NewRequest(http.MethodGet, "/reports/export", nil)

			w := serve(gate.Require("reports", "export"), withSession(manager, r, root))

			Expect(reached).To(BeTrue())
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(grants.calls).To(BeZero())
		})

		It("allows granted modules", func() {
			r := httptest.NewRequest(http.MethodGet, "/phoenix/", nil)
			serve(gate.Require("phoenix", "home"), withSession(manager, r, member))
			Expect(reached).To(BeTrue())
		})

		It("denies modules without a grant with exactly one message", func() {
			r := httptest.NewRequest(http.MethodGet, "/reports/export", nil)

			w := serve(gate.Require("reports", "export"), withSession(manager, r, member))

			Expect(reached).To(BeFalse())
			Expect(w.Code).To(Equal(http.StatusFound))
			Expect(w.Header().Get("Location")).To(Equal("/users/"))

			flashes := flashesOf(manager, w)
			Expect(flashes).To(Equal([]session.Message{{Level: session.LevelError, Text: auth.MessageNotPermitted}}))

			Expect(publisher.events).To(HaveLen(1))
			denied, ok := publisher.events[0].(*events.AccessDeniedEvent)
			Expect(ok).To(BeTrue())
			Expect(denied.Reason).To(Equal(auth.OutcomeDenied))
		})

		It("treats a route without namespace or action as a configuration error", func() {
			r := httptest.NewRequest(http.MethodGet, "/orphan/", nil)

			w := serve(gate.Require("", "home"), withSession(manager, r, member))

			Expect(reached).To(BeFalse())
			Expect(w.Header().Get("Location")).To(Equal("/users/"))
			Expect(flashesOf(manager, w)).To(Equal([]session.Message{{Level: session.LevelError, Text: auth.MessageMisconfigured}}))
			Expect(grants.calls).To(BeZero())
		})

		It("fails closed when the grant store is unavailable", func() {
			grants.shouldFail = true
			r := httptest.NewRequest(http.MethodGet, "/phoenix/", nil)

			w := serve(gate.Require("phoenix", "home"), withSession(manager, r, member))

			Expect(reached).To(BeFalse())
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Result().Cookies()).To(BeEmpty())
		})
	})

	Describe("Decide", func() {
		It("reports the outcome without side effects", func() {
			outcome, err := gate.Decide(context.Background(), member, "reports", "export")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(auth.OutcomeDenied))
			Expect(publisher.events).To(BeEmpty())
		})
	})

	Describe("RequireLogin", func() {
		It("only checks authentication", func() {
			r := httptest.NewRequest(http.MethodGet, "/profile/", nil)
			serve(gate.RequireLogin("profile"), withSession(manager, r, member))
			Expect(reached).To(BeTrue())
			Expect(grants.calls).To(BeZero())
		})

		It("redirects anonymous requesters", func() {
			r := httptest.NewRequest(http.MethodGet, "/profile/", nil)
			w := serve(gate.RequireLogin("profile"), withSession(manager, r, nil))
			Expect(w.Header().Get("Location")).To(Equal("/?next=%2Fprofile%2F"))
		})
	})

	DescribeTable("WithNext",
		func(target, next, expected string) {
			Expect(auth.WithNext(target, next)).To(Equal(expected))
		},
		Entry("adds the parameter", "/", "/phoenix/", "/?next=%2Fphoenix%2F"),
		Entry("replaces an existing value", "/users/?next=%2Fa%2F", "/b/", "/users/?next=%2Fb%2F"),
		Entry("collapses duplicates", "/users/?next=a&next=b", "/c/", "/users/?next=%2Fc%2F"),
	)
})
