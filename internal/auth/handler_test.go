package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sara-platform/portal/internal/auth"
	"github.com/sara-platform/portal/internal/session"
	"github.com/sara-platform/portal/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type failingLoader struct{}

func (failingLoader) Load(ctx context.Context, r *http.Request) (*session.Session, error) {
	return nil, errors.New("redis: connection refused")
}

type failingResolver struct{}

func (failingResolver) ResolveIdentity(ctx context.Context, userID int64, sourceAddr string) (*auth.Identity, error) {
	return nil, errors.New("pq: connection refused")
}

var _ = Describe("Auth Handler", func() {
	var (
		mr      *miniredis.Miniredis
		client  *redis.Client
		manager *session.Manager
		service *auth.Service
		handler *auth.Handler
		chain   func(http.Handler) http.Handler
	)

	BeforeEach(func() {
		mr = miniredis.RunT(GinkgoT())
		manager, client = newSessionManager(mr)
		service = auth.NewService(newMockRepository(), nil, discardLogger())
		handler = auth.NewHandler(transport.NewBaseHandler(discardLogger()), service, manager, "/")
		chain = auth.SessionMiddleware(manager, service, discardLogger())
	})

	AfterEach(func() {
		_ = client.Close()
	})

	doFrom := func(addr string, h http.HandlerFunc, method, target, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		r.RemoteAddr = addr
		for _, c := range cookies {
			r.AddCookie(c)
		}
		w := httptest.NewRecorder()
		chain(h).ServeHTTP(w, r)
		return w
	}

	do := func(h http.HandlerFunc, method, target, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
		return doFrom("10.0.0.7:40000", h, method, target, body, cookies)
	}

	login := func(username, next string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(auth.LoginDTO{Username: username, Password: "correct_password", Next: next})
		return do(handler.Login, http.MethodPost, "/api/login/", string(body), nil)
	}

	Describe("Login", func() {
		It("starts a session and answers the redirect target", func() {
			w := login("ana", "/phoenix/")

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp auth.LoginResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.RedirectURL).To(Equal("/phoenix/"))
			Expect(resp.Message).To(ContainSubstring("ana"))

			cookies := w.Result().Cookies()
			Expect(cookies).To(HaveLen(1))
			Expect(cookies[0].Name).To(Equal(cookieName))
			Expect(cookies[0].HttpOnly).To(BeTrue())
		})

		It("falls back to home for unsafe next values", func() {
			w := login("ana", "https://evil.example/")
			var resp auth.LoginResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.RedirectURL).To(Equal("/"))
		})

		It("answers 401 for bad credentials", func() {
			w := do(handler.Login, http.MethodPost, "/api/login/", `{"username":"ana","password":"wrong"}`, nil)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(w.Body.String()).To(ContainSubstring("INVALID_CREDENTIALS"))
		})

		It("answers 400 for malformed bodies", func() {
			w := do(handler.Login, http.MethodPost, "/api/login/", `{"username":`, nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("answers 403 and queues a message for a disallowed address", func() {
			r := httptest.NewRequest(http.MethodPost, "/api/login/", strings.NewReader(`{"username":"carla","password":"correct_password"}`))
			r.RemoteAddr = "10.0.0.99:40000"
			w := httptest.NewRecorder()
			chain(http.HandlerFunc(handler.Login)).ServeHTTP(w, r)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			flashes := flashesOf(manager, w)
			Expect(flashes).To(HaveLen(1))
			Expect(flashes[0].Text).To(Equal(auth.ErrSourceDenied.Message))
		})
	})

	Describe("SessionMiddleware", func() {
		whoami := func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			_, _ = w.Write([]byte(identity.Username))
		}

		It("resolves the identity from the session cookie", func() {
			cookies := login("ana", "").Result().Cookies()
			w := do(whoami, http.MethodGet, "/", "", cookies)
			Expect(w.Body.String()).To(Equal("ana"))
		})

		It("treats a session from a non-pinned address as anonymous", func() {
			cookies := login("carla", "").Result().Cookies()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "10.0.0.99:40000"
			for _, c := range cookies {
				r.AddCookie(c)
			}
			w := httptest.NewRecorder()
			chain(http.HandlerFunc(whoami)).ServeHTTP(w, r)
			Expect(w.Code).To(Equal(http.StatusNoContent))
		})

		It("continues anonymously when the session store fails", func() {
			w := httptest.NewRecorder()
			auth.SessionMiddleware(failingLoader{}, service, discardLogger())(http.HandlerFunc(whoami)).
				ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(w.Code).To(Equal(http.StatusNoContent))
		})

		It("answers 500 instead of logging the user out when the identity store fails", func() {
			cookies := login("ana", "").Result().Cookies()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "10.0.0.7:40000"
			for _, c := range cookies {
				r.AddCookie(c)
			}
			called := false
			w := httptest.NewRecorder()
			auth.SessionMiddleware(manager, failingResolver{}, discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			})).ServeHTTP(w, r)

			Expect(called).To(BeFalse())
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(w.Body.String()).NotTo(ContainSubstring("connection refused"))
		})
	})

	Describe("Logout", func() {
		It("destroys the session", func() {
			cookies := login("ana", "").Result().Cookies()

			w := do(handler.Logout, http.MethodPost, "/logout/", "", cookies)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Result().Cookies()[0].MaxAge).To(BeNumerically("<", 0))

			after := do(func(w http.ResponseWriter, r *http.Request) {
				_, ok := auth.IdentityFromContext(r.Context())
				Expect(ok).To(BeFalse())
			}, http.MethodGet, "/", "", cookies)
			Expect(after.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("Messages", func() {
		It("drains queued messages once", func() {
			w := doFrom("10.0.0.99:40000", handler.Login, http.MethodPost, "/api/login/", `{"username":"carla","password":"correct_password"}`, nil)
			Expect(w.Code).To(Equal(http.StatusForbidden))
			cookies := w.Result().Cookies()

			first := do(handler.Messages, http.MethodGet, "/api/messages", "", cookies)
			var resp auth.MessagesResponse
			Expect(json.Unmarshal(first.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Messages).To(HaveLen(1))
			Expect(resp.Messages[0].Level).To(Equal(session.LevelError))

			second := do(handler.Messages, http.MethodGet, "/api/messages", "", cookies)
			Expect(json.Unmarshal(second.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Messages).To(BeEmpty())
		})
	})
})
