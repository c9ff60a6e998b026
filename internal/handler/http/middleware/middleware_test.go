package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtected(t *testing.T, jwtService jwt.Service, mws ...func(http.Handler) http.Handler) (http.Handler, *user.Actor) {
	t.Helper()
	seen := &user.Actor{}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID, RequestMeta)
	r.Use(jwtauth.Verifier(jwtService.JWTAuth()), AuthRequired(jwtService.JWTAuth()))
	r.Use(mws...)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		*seen, _ = user.ActorFrom(r.Context())
		assert.NotEmpty(t, audit.RequestMetaFrom(r.Context()).RequestID)
		w.WriteHeader(http.StatusNoContent)
	})
	return r, seen
}

func get(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthRequired_BuildsActor(t *testing.T) {
	jwtService := jwt.NewJWTService("middleware-secret", "1h", "24h", false)
	h, seen := newProtected(t, jwtService)

	employeeID, sectionID := "emp-1", "sec-1"
	token, _, err := jwtService.GenerateAccessToken(jwt.AccessClaims{
		UserID: "user-1", Email: "a@kpi.test", EmployeeID: &employeeID, Role: user.RoleSectionHead, SectionID: &sectionID,
	})
	require.NoError(t, err)

	w := get(h, token)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, user.Actor{UserID: "user-1", EmployeeID: "emp-1", Role: user.RoleSectionHead, SectionID: "sec-1"}, *seen)
}

func TestAuthRequired_RejectsRefreshAndMissingTokens(t *testing.T) {
	jwtService := jwt.NewJWTService("middleware-secret", "1h", "24h", false)
	h, _ := newProtected(t, jwtService)

	refresh, _, err := jwtService.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(h, refresh).Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "garbage").Code)
}

func TestRequirePermission(t *testing.T) {
	jwtService := jwt.NewJWTService("middleware-secret", "1h", "24h", false)
	h, _ := newProtected(t, jwtService, RequirePermission(user.PermissionAuditView))

	staff, _, err := jwtService.GenerateAccessToken(jwt.AccessClaims{UserID: "u1", Role: user.RoleEmployee})
	require.NoError(t, err)
	admin, _, err := jwtService.GenerateAccessToken(jwt.AccessClaims{UserID: "u2", Role: user.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(h, staff).Code)
	assert.Equal(t, http.StatusNoContent, get(h, admin).Code)
}

func TestRequireEmployee(t *testing.T) {
	jwtService := jwt.NewJWTService("middleware-secret", "1h", "24h", false)
	h, _ := newProtected(t, jwtService, RequireEmployee)

	bare, _, err := jwtService.GenerateAccessToken(jwt.AccessClaims{UserID: "u1", Role: user.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(h, bare).Code)
}
