package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// RouterOptions carries the deployment settings the router needs.
type RouterOptions struct {
	AppName        string
	Version        string
	Env            string
	AllowedOrigins []string
	// UploadsDir is served under /uploads when exports are kept on local disk.
	UploadsDir string
}

func NewRouter(
	opts RouterOptions,
	JWTService jwt.Service,
	authHandler AuthHandler,
	masterHandler MasterHandler,
	employeeHandler EmployeeHandler,
	kpiHandler KpiHandler,
	reviewCycleHandler ReviewCycleHandler,
	evaluationHandler EvaluationHandler,
	notificationHandler NotificationHandler,
	auditHandler AuditHandler,
	dashboardHandler DashboardHandler,
	reportHandler ReportHandler,
	fileHandler FileHandler,
) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(opts.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", opts.AppName),
		slog.String("version", opts.Version),
		slog.String("env", opts.Env),
	)

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))
	r.Use(middleware.RequestMeta)

	if opts.UploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadsDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// EventSource carries its own short-lived token and sets no CORS preflight.
		r.Get("/notifications/stream", notificationHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   opts.AllowedOrigins,
				AllowCredentials: true,
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
				ExposedHeaders:   []string{"Link"},
				MaxAge:           300,
			}))
			r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))

			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.RefreshToken)
				r.Post("/logout", authHandler.Logout)
				r.Get("/login/oauth/google", authHandler.LoginWithGoogle)
				r.Get("/oauth/callback/google", authHandler.OAuthCallbackGoogle)
			})

			// Requires authentication
			r.Group(func(r chi.Router) {
				r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
				r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

				r.Route("/departments", func(r chi.Router) {
					r.Get("/", masterHandler.ListDepartments)
					r.Get("/{id}", masterHandler.GetDepartment)
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionMasterManage))
						r.Post("/", masterHandler.CreateDepartment)
						r.Put("/{id}", masterHandler.UpdateDepartment)
						r.Delete("/{id}", masterHandler.DeleteDepartment)
					})
				})

				r.Route("/sections", func(r chi.Router) {
					r.Get("/", masterHandler.ListSections)
					r.Get("/{id}", masterHandler.GetSection)
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionMasterManage))
						r.Post("/", masterHandler.CreateSection)
						r.Put("/{id}", masterHandler.UpdateSection)
						r.Delete("/{id}", masterHandler.DeleteSection)
					})
				})

				r.Route("/employees", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionViewOwnProfile), middleware.RequireEmployee).
						Get("/me", employeeHandler.GetMe)
					r.With(middleware.RequirePermission(user.PermissionViewOwnProfile), middleware.RequireEmployee).
						Put("/me/avatar", fileHandler.UploadAvatar)
					r.Get("/", employeeHandler.ListEmployees)
					r.Get("/{id}", employeeHandler.GetEmployee)
					r.Get("/{id}/avatar", fileHandler.GetAvatar)
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionEmployeeManage))
						r.Post("/", employeeHandler.CreateEmployee)
						r.Put("/{id}", employeeHandler.UpdateEmployee)
						r.Delete("/{id}", employeeHandler.DeleteEmployee)
					})
				})

				r.Route("/kpis", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionKpiView))
						r.Get("/", kpiHandler.List)
						r.Get("/{id}", kpiHandler.Get)
					})
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionKpiManage))
						r.Post("/", kpiHandler.Create)
						r.Put("/{id}", kpiHandler.Update)
						r.Delete("/{id}", kpiHandler.Delete)
					})
				})

				r.Route("/review-cycles", func(r chi.Router) {
					r.Get("/", reviewCycleHandler.List)
					r.Get("/{id}", reviewCycleHandler.Get)
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionReviewCycleManage))
						r.Post("/", reviewCycleHandler.Create)
						r.Put("/{id}", reviewCycleHandler.Update)
					})
				})

				r.Route("/kpi-values", func(r chi.Router) {
					r.Get("/{id}", kpiHandler.GetValue)
					r.Get("/{id}/evidence", fileHandler.GetEvidence)
					r.With(middleware.RequirePermission(user.PermissionKpiValueViewAll)).Get("/", kpiHandler.ListValues)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionKpiValueSubmit), middleware.RequireEmployee)
						r.Post("/", kpiHandler.SubmitValue)
						r.Get("/my", kpiHandler.ListMyValues)
						r.Post("/{id}/submit", kpiHandler.SubmitDraft)
						r.Post("/{id}/resubmit", kpiHandler.ResubmitValue)
						r.Post("/{id}/evidence", fileHandler.UploadEvidence)
					})

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionKpiValueApprove))
						r.Post("/{id}/stages/{stage}/approve", kpiHandler.ApproveValue)
						r.Post("/{id}/stages/{stage}/reject", kpiHandler.RejectValue)
					})
				})

				r.Route("/evaluations", func(r chi.Router) {
					r.Post("/", evaluationHandler.Create)
					r.Get("/", evaluationHandler.List)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", evaluationHandler.Get)
						r.Put("/objectives", evaluationHandler.UpdateObjectives)
						r.Post("/submit", evaluationHandler.Submit)
						r.Post("/self-review", evaluationHandler.SubmitSelfReview)
						r.Post("/resubmit", evaluationHandler.Resubmit)
						r.Post("/feedback", evaluationHandler.SubmitFeedback)
						r.Post("/confirm", evaluationHandler.Confirm)
						r.Get("/export", evaluationHandler.Export)

						r.Group(func(r chi.Router) {
							r.Use(middleware.RequirePermission(user.PermissionEvaluationReview))
							r.Post("/stages/{stage}/review", evaluationHandler.SubmitStageReview)
							r.Post("/stages/{stage}/reject", evaluationHandler.RejectStage)
							r.Post("/complete", evaluationHandler.CompleteReview)
						})
					})
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", notificationHandler.List)
					r.Get("/unread-count", notificationHandler.UnreadCount)
					r.Post("/read", notificationHandler.MarkAsRead)
					r.Post("/read-all", notificationHandler.MarkAllAsRead)
					r.Delete("/{id}", notificationHandler.Delete)
					r.Get("/preferences", notificationHandler.GetPreferences)
					r.Put("/preferences", notificationHandler.UpdatePreference)
					r.Get("/sse-token", notificationHandler.GetSSEToken)
				})

				r.Route("/dashboard", func(r chi.Router) {
					r.Get("/", dashboardHandler.GetDashboard)
					r.Get("/approval-queue", dashboardHandler.GetApprovalQueue)
				})

				r.Route("/reports", func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionReportView))
					r.Get("/kpi-achievement", reportHandler.GetKpiAchievementReport)
					r.Get("/evaluation-results", reportHandler.GetEvaluationResultReport)
				})

				r.Route("/audit-logs", func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionAuditView))
					r.Get("/", auditHandler.List)
					r.Get("/{entity_type}/{entity_id}", auditHandler.ListForEntity)
				})
			})
		})
	})
	return r
}
