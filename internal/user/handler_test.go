package user_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	"github.com/sara-platform/portal/internal/auth"
	"github.com/sara-platform/portal/internal/hierarchy"
	"github.com/sara-platform/portal/internal/transport"
	"github.com/sara-platform/portal/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("User Handler", func() {
	var (
		repo   *mockRepository
		router chi.Router
		as     *auth.Identity
	)

	BeforeEach(func() {
		var svc *user.Service
		svc, repo, _ = newFixture()
		h := user.NewHandler(transport.NewBaseHandler(slog.New(slog.NewTextHandler(io.Discard, nil))), svc)
		as = nil

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if as != nil {
					r = r.WithContext(auth.WithIdentity(r.Context(), as))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Get("/users/", h.ListDirectory)
		router.Get("/users/{id}", h.GetProfile)
		router.Get("/management/users/", h.ListManageable)
		router.Post("/management/users/", h.CreateUser)
		router.Put("/management/users/{id}", h.UpdateUser)
		router.Delete("/management/users/{id}", h.DeleteUser)
		router.Put("/management/users/{id}/password", h.ResetPassword)
		router.Put("/management/users/{id}/access/{moduleID}", h.GrantModule)
		router.Delete("/management/users/{id}/access/{moduleID}", h.RevokeModule)
		router.Post("/set-theme/", h.SetTheme)
	})

	do := func(method, target, body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		return w
	}

	errorCode := func(w *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	manager := &auth.Identity{UserID: 3, Username: "gil", Roles: []hierarchy.Role{hierarchy.RoleManager}}
	member := &auth.Identity{UserID: 4, Username: "ursula", Roles: []hierarchy.Role{hierarchy.RoleUser}}

	It("answers 401 without an identity", func() {
		w := do(http.MethodGet, "/users/", "")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("lists the directory", func() {
		as = member
		w := do(http.MethodGet, "/users/", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp user.DirectoryResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Users).To(HaveLen(5))
		Expect(resp.OnlineCount).To(Equal(1))
	})

	It("renders a profile and rejects malformed ids", func() {
		as = member
		w := do(http.MethodGet, "/users/1", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodGet, "/users/abc", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		w = do(http.MethodGet, "/users/404", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("forbids the management listing to plain users", func() {
		as = member
		w := do(http.MethodGet, "/management/users/", "")
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("creates users with 201", func() {
		as = manager
		w := do(http.MethodPost, "/management/users/", `{"username":"nova","password":"long-enough","role":"User"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var resp user.UserResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Username).To(Equal("nova"))
		Expect(resp.Role).To(Equal("User"))
	})

	It("rejects unknown fields in the body", func() {
		as = manager
		w := do(http.MethodPost, "/management/users/", `{"username":"nova","password":"long-enough","role":"User","admin":true}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("refuses to update users of equal rank", func() {
		as = manager
		w := do(http.MethodPut, "/management/users/3", `{"email":"gil@example.com"}`)
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(errorCode(w)).NotTo(BeEmpty())
	})

	It("deletes and resets passwords with 204", func() {
		as = manager
		w := do(http.MethodPut, "/management/users/4/password", `{"password":"brand-new-pass"}`)
		Expect(w.Code).To(Equal(http.StatusNoContent))

		w = do(http.MethodDelete, "/management/users/4", "")
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(repo.users).NotTo(HaveKey(int64(4)))
	})

	It("grants and revokes single modules", func() {
		as = manager
		w := do(http.MethodPut, "/management/users/4/access/10", "")
		Expect(w.Code).To(Equal(http.StatusNoContent))

		w = do(http.MethodDelete, "/management/users/4/access/x", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	Describe("SetTheme", func() {
		status := func(w *httptest.ResponseRecorder) user.StatusResponse {
			var resp user.StatusResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			return resp
		}

		BeforeEach(func() {
			as = member
		})

		It("stores a valid theme", func() {
			w := do(http.MethodPost, "/set-theme/", `{"theme":"dark"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(status(w)).To(Equal(user.StatusResponse{Status: "ok", Message: "Theme updated successfully."}))
			Expect(repo.users[4].Theme).To(Equal("dark"))
		})

		It("rejects unknown themes", func() {
			w := do(http.MethodPost, "/set-theme/", `{"theme":"neon"}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(status(w)).To(Equal(user.StatusResponse{Status: "error", Message: "Invalid theme."}))
			Expect(repo.users[4].Theme).To(Equal("light"))
		})

		It("rejects malformed bodies", func() {
			w := do(http.MethodPost, "/set-theme/", `not json`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(status(w)).To(Equal(user.StatusResponse{Status: "error", Message: "Invalid request."}))
		})
	})
})
