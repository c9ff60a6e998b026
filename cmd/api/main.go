package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/config"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	appHTTP "github.com/cmlabs-hris/kpi-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/email"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/oauth"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/storage"
	"github.com/cmlabs-hris/kpi-backend-go/internal/repository/postgresql"
	approvalService "github.com/cmlabs-hris/kpi-backend-go/internal/service/approval"
	auditService "github.com/cmlabs-hris/kpi-backend-go/internal/service/audit"
	serviceAuth "github.com/cmlabs-hris/kpi-backend-go/internal/service/auth"
	dashboardService "github.com/cmlabs-hris/kpi-backend-go/internal/service/dashboard"
	employeeService "github.com/cmlabs-hris/kpi-backend-go/internal/service/employee"
	evaluationService "github.com/cmlabs-hris/kpi-backend-go/internal/service/evaluation"
	fileService "github.com/cmlabs-hris/kpi-backend-go/internal/service/file"
	kpiService "github.com/cmlabs-hris/kpi-backend-go/internal/service/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/service/master"
	notificationService "github.com/cmlabs-hris/kpi-backend-go/internal/service/notification"
	reportService "github.com/cmlabs-hris/kpi-backend-go/internal/service/report"
	reviewCycleService "github.com/cmlabs-hris/kpi-backend-go/internal/service/reviewcycle"
)

const (
	appName = "kpi-cmlabs"
	version = "v1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With(slog.String("app", appName), slog.String("env", cfg.App.Env)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.App.MigrateOnStart {
		if err := postgresql.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	template, err := loadTemplate(cfg.Workflow.EvaluationTemplatePath)
	if err != nil {
		return err
	}

	fileStorage, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	emailService, err := email.NewEmailService(cfg.SMTP)
	if err != nil {
		return fmt.Errorf("init email service: %w", err)
	}

	// Repositories
	tx := postgresql.NewTransactor(db)
	userRepo := postgresql.NewUserRepository(db)
	refreshTokenRepo := postgresql.NewRefreshTokenRepository(db)
	departmentRepo := postgresql.NewDepartmentRepository(db)
	sectionRepo := postgresql.NewSectionRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	kpiRepo := postgresql.NewKpiRepository(db)
	valueRepo := postgresql.NewValueRepository(db)
	cycleRepo := postgresql.NewReviewCycleRepository(db)
	evaluationRepo := postgresql.NewEvaluationRepository(db)
	notificationRepo := postgresql.NewNotificationRepository(db)
	auditRepo := postgresql.NewAuditRepository(db)
	dashboardRepo := postgresql.NewDashboardRepository(db)
	reportRepo := postgresql.NewReportRepository(db)

	// Services
	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration, cfg.JWT.RefreshExpiration, cfg.App.Env == "production")
	GoogleService := oauth.NewGoogleService(cfg.OAuth2Google.ClientID, cfg.OAuth2Google.ClientSecret, cfg.OAuth2Google.RedirectURL, cfg.OAuth2Google.Scopes)

	hub := sse.NewHub(0)
	notifService := notificationService.NewNotificationService(notificationRepo, hub, emailService, notificationService.Config{
		BatchSize:     cfg.Notification.BatchSize,
		FlushInterval: cfg.Notification.FlushInterval,
		WorkerCount:   cfg.Notification.WorkerCount,
		QueueSize:     cfg.Notification.QueueSize,
	})
	defer notifService.Stop()

	audit := auditService.NewAuditService(auditRepo)
	dispatcher := approvalService.NewDispatcher(employeeRepo, userRepo, notifService, audit, cfg.App.FrontendURL)

	authService := serviceAuth.NewAuthService(tx, userRepo, JWTService, refreshTokenRepo)
	masterService := master.NewMasterService(departmentRepo, sectionRepo, audit)
	empService := employeeService.NewEmployeeService(tx, employeeRepo, userRepo, departmentRepo, sectionRepo, audit)
	kpiSvc := kpiService.NewKpiService(kpiRepo, valueRepo, departmentRepo, audit)
	valueSvc := kpiService.NewValueService(tx, valueRepo, kpiRepo, cycleRepo, dispatcher, cfg.Workflow.TotalWeight)
	cycleSvc := reviewCycleService.NewReviewCycleService(tx, cycleRepo, audit)
	evaluationSvc := evaluationService.NewEvaluationService(tx, evaluationRepo, employeeRepo, cycleRepo, fileStorage, dispatcher, template)
	dashboardSvc := dashboardService.NewDashboardService(dashboardRepo)
	reportSvc := reportService.NewReportService(reportRepo, cycleRepo)
	fileSvc := fileService.NewFileService(tx, fileStorage, employeeRepo, valueRepo)

	// Background jobs
	scheduler := cron.NewScheduler(ctx)
	reminder := approvalService.NewReminder(valueRepo, evaluationRepo, employeeRepo, notifService, emailService, approvalService.ReminderConfig{
		Interval:    cfg.Workflow.ReminderInterval,
		After:       cfg.Workflow.ReminderAfter,
		Repeat:      cfg.Workflow.ReminderRepeat,
		FrontendURL: cfg.App.FrontendURL,
	})
	if err := reminder.RegisterJobs(scheduler); err != nil {
		return fmt.Errorf("register reminder job: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Handlers
	opts := appHTTP.RouterOptions{
		AppName:        appName,
		Version:        version,
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.AllowedOrigins,
	}
	if cfg.Storage.Type == "local" {
		opts.UploadsDir = cfg.Storage.BasePath
	}
	router := appHTTP.NewRouter(
		opts,
		JWTService,
		appHTTP.NewAuthHandler(JWTService, authService, GoogleService, cfg.App.FrontendURL),
		appHTTP.NewMasterHandler(masterService),
		appHTTP.NewEmployeeHandler(empService),
		appHTTP.NewKpiHandler(kpiSvc, valueSvc),
		appHTTP.NewReviewCycleHandler(cycleSvc),
		appHTTP.NewEvaluationHandler(evaluationSvc),
		appHTTP.NewNotificationHandler(notifService, JWTService, cfg.App.FrontendURL),
		appHTTP.NewAuditHandler(audit),
		appHTTP.NewDashboardHandler(dashboardSvc),
		appHTTP.NewReportHandler(reportSvc),
		appHTTP.NewFileHandler(fileSvc),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server running", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	// event streams never finish on their own
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadTemplate(path string) (evaluation.Template, error) {
	if path == "" {
		return evaluation.DefaultTemplate()
	}
	t, err := evaluation.LoadTemplate(path)
	if err != nil {
		return evaluation.Template{}, fmt.Errorf("load evaluation template %s: %w", path, err)
	}
	return t, nil
}
