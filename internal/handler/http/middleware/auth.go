package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/response"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

// AuthRequired accepts only access tokens and attaches the caller as a user.Actor.
// It must run after jwtauth.Verifier.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			if tokenType, ok := claims["type"].(string); !ok || tokenType != "access" {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			actor := user.Actor{
				UserID:       claimString(claims, "user_id"),
				EmployeeID:   claimString(claims, "employee_id"),
				Role:         user.Role(claimString(claims, "role")),
				SectionID:    claimString(claims, "section_id"),
				DepartmentID: claimString(claims, "department_id"),
			}
			if actor.UserID == "" {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(user.WithActor(r.Context(), actor)))
		}
		return http.HandlerFunc(hfn)
	}
}

// claimString reads an optional string claim; null and missing both yield "".
func claimString(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// RequestMeta copies the request id and client address into the context for audit records.
// It must run after chi's RequestID and RealIP middlewares.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithRequestMeta(r.Context(), audit.RequestMeta{
			RequestID: chiMiddleware.GetReqID(r.Context()),
			IP:        r.RemoteAddr,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
