package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/oauth"
	approvalsvc "github.com/cmlabs-hris/kpi-backend-go/internal/service/approval"
	authService "github.com/cmlabs-hris/kpi-backend-go/internal/service/auth"
	dashboardService "github.com/cmlabs-hris/kpi-backend-go/internal/service/dashboard"
	employeeService "github.com/cmlabs-hris/kpi-backend-go/internal/service/employee"
	evaluationService "github.com/cmlabs-hris/kpi-backend-go/internal/service/evaluation"
	fileService "github.com/cmlabs-hris/kpi-backend-go/internal/service/file"
	kpiService "github.com/cmlabs-hris/kpi-backend-go/internal/service/kpi"
	masterService "github.com/cmlabs-hris/kpi-backend-go/internal/service/master"
	reportService "github.com/cmlabs-hris/kpi-backend-go/internal/service/report"
	reviewCycleService "github.com/cmlabs-hris/kpi-backend-go/internal/service/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type apiFixture struct {
	org      *servicetest.Org
	jwt      jwt.Service
	notifier *servicetest.Notifier
	router   http.Handler
	storage  *servicetest.Storage
	kpi      kpi.Kpi
	cycle    reviewcycle.ReviewCycle
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	org := servicetest.NewOrg()
	hash, err := authService.HashPassword("password123")
	require.NoError(t, err)
	require.NoError(t, org.Users.UpdatePassword(ctx, org.Staff.UserID, hash))

	tx := &servicetest.Transactor{}
	store := servicetest.NewStorage()
	notifier := servicetest.NewNotifier()
	auditor := &servicetest.Auditor{}
	departments := servicetest.NewDepartmentRepository()
	sections := servicetest.NewSectionRepository()
	kpis := servicetest.NewKpiRepository()
	values := servicetest.NewValueRepository(org.Employees, kpis)
	cycles := servicetest.NewReviewCycleRepository()
	evaluations := servicetest.NewEvaluationRepository(org.Employees, cycles)
	template, err := evaluation.DefaultTemplate()
	require.NoError(t, err)

	jwtService := jwt.NewJWTService(handlerTestSecret, "1h", "24h", false)
	dispatcher := approvalsvc.NewDispatcher(org.Employees, org.Users, notifier, auditor, "http://app.test")

	target := 100.0
	definition, err := kpis.Create(ctx, kpi.Kpi{Name: "Sales", Unit: "IDR", DefaultTarget: &target, Frequency: kpi.FrequencyMonthly, IsActive: true})
	require.NoError(t, err)
	now := time.Now().UTC()
	cycle, err := cycles.Create(ctx, reviewcycle.ReviewCycle{Name: "Current", StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 2, 0)})
	require.NoError(t, err)

	router := NewRouter(
		RouterOptions{AppName: "kpi-test", Env: "test", AllowedOrigins: []string{"http://app.test"}},
		jwtService,
		NewAuthHandler(jwtService, authService.NewAuthService(tx, org.Users, jwtService, servicetest.NewRefreshTokens()), oauth.NewGoogleService("id", "secret", "http://app.test/cb", nil), "http://app.test"),
		NewMasterHandler(masterService.NewMasterService(departments, sections, auditor)),
		NewEmployeeHandler(employeeService.NewEmployeeService(tx, org.Employees, org.Users, departments, sections, auditor)),
		NewKpiHandler(
			kpiService.NewKpiService(kpis, values, departments, auditor),
			kpiService.NewValueService(tx, values, kpis, cycles, dispatcher, 160),
		),
		NewReviewCycleHandler(reviewCycleService.NewReviewCycleService(tx, cycles, auditor)),
		NewEvaluationHandler(evaluationService.NewEvaluationService(tx, evaluations, org.Employees, cycles, servicetest.NewStorage(), dispatcher, template)),
		NewNotificationHandler(notifier, jwtService, "http://app.test"),
		NewAuditHandler(auditor),
		NewDashboardHandler(dashboardService.NewDashboardService(servicetest.NewDashboardRepository(values, evaluations))),
		NewReportHandler(reportService.NewReportService(servicetest.NewReportRepository(values, evaluations), cycles)),
		NewFileHandler(fileService.NewFileService(tx, store, org.Employees, values)),
	)

	return &apiFixture{org: org, jwt: jwtService, notifier: notifier, router: router, storage: store, kpi: definition, cycle: cycle}
}

func (f *apiFixture) tokenFor(t *testing.T, e employee.Employee) string {
	t.Helper()
	token, _, err := f.jwt.GenerateAccessToken(jwt.AccessClaims{
		UserID:       e.UserID,
		Email:        e.Email,
		EmployeeID:   &e.ID,
		Role:         e.Role,
		SectionID:    e.SectionID,
		DepartmentID: e.DepartmentID,
	})
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp response.Response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

// decodeData re-decodes the envelope's data field into v.
func decodeData(t *testing.T, resp response.Response, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestRouter_Heartbeat(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_LoginSetsRefreshCookie(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    f.org.Staff.Email,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refresh_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	rec, resp = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    f.org.Staff.Email,
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/kpi-values/my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/notifications/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_PermissionGates(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.tokenFor(t, f.org.Staff)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"audit log", http.MethodGet, "/api/v1/audit-logs", nil},
		{"create department", http.MethodPost, "/api/v1/departments", map[string]string{"name": "Ops", "code": "OPS"}},
		{"list all values", http.MethodGet, "/api/v1/kpi-values", nil},
		{"approve value", http.MethodPost, "/api/v1/kpi-values/x/stages/section/approve", nil},
		{"create kpi", http.MethodPost, "/api/v1/kpis", map[string]string{"name": "X"}},
		{"kpi report", http.MethodGet, "/api/v1/reports/kpi-achievement?review_cycle_id=x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := f.do(t, tt.method, tt.path, staff, tt.body)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			require.NotNil(t, resp.Error)
		})
	}
}

func TestRouter_KpiValueApprovalChain(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.tokenFor(t, f.org.Staff)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/kpi-values", staff, map[string]any{
		"kpi_id":          f.kpi.ID,
		"review_cycle_id": f.cycle.ID,
		"actual_value":    85,
		"weight":          40,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var value kpi.ValueResponse
	decodeData(t, resp, &value)
	assert.Equal(t, "pending_section_approval", value.Status)

	base := "/api/v1/kpi-values/" + value.ID

	// the department head is a valid approver but the value is not at that stage yet
	rec, resp = f.do(t, http.MethodPost, base+"/stages/department/approve", f.tokenFor(t, f.org.DeptHead), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_TRANSITION", resp.Error.Code)
	assert.Equal(t, "pending_section_approval", resp.Error.Details["current_status"])
	assert.Equal(t, "approve_department", resp.Error.Details["action"])

	rec, resp = f.do(t, http.MethodPost, base+"/stages/bogus/approve", f.tokenFor(t, f.org.SectionHead), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	steps := []struct {
		stage  string
		actor  employee.Employee
		status string
	}{
		{"section", f.org.SectionHead, "pending_dept_approval"},
		{"department", f.org.DeptHead, "pending_manager_approval"},
		{"manager", f.org.Manager, "approved"},
	}
	for _, step := range steps {
		rec, resp = f.do(t, http.MethodPost, base+"/stages/"+step.stage+"/approve", f.tokenFor(t, step.actor), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decodeData(t, resp, &value)
		assert.Equal(t, step.status, value.Status)
	}

	rec, _ = f.do(t, http.MethodGet, base, staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_KpiValueRejectAndResubmit(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.tokenFor(t, f.org.Staff)
	sectionHead := f.tokenFor(t, f.org.SectionHead)

	_, resp := f.do(t, http.MethodPost, "/api/v1/kpi-values", staff, map[string]any{
		"kpi_id":          f.kpi.ID,
		"review_cycle_id": f.cycle.ID,
		"actual_value":    60,
		"weight":          20,
	})
	var value kpi.ValueResponse
	decodeData(t, resp, &value)
	base := "/api/v1/kpi-values/" + value.ID

	rec, resp := f.do(t, http.MethodPost, base+"/stages/section/reject", sectionHead, map[string]string{"reason": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	rec, resp = f.do(t, http.MethodPost, base+"/stages/section/reject", sectionHead, map[string]string{"reason": "missing evidence"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, resp, &value)
	assert.Equal(t, "rejected_by_section", value.Status)
	require.NotNil(t, value.RejectionReason)
	assert.Equal(t, "missing evidence", *value.RejectionReason)

	rec, resp = f.do(t, http.MethodPost, base+"/resubmit", staff, map[string]any{"actual_value": 75})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, resp, &value)
	assert.Equal(t, "pending_section_approval", value.Status)
	assert.Equal(t, 75.0, value.ActualValue)
	assert.Nil(t, value.RejectionReason)

	// a colleague cannot read it
	rec, _ = f.do(t, http.MethodGet, base, f.tokenFor(t, f.org.Colleague), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_DashboardApprovalQueue(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.tokenFor(t, f.org.Staff)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/kpi-values", staff, map[string]any{
		"kpi_id":          f.kpi.ID,
		"review_cycle_id": f.cycle.ID,
		"actual_value":    90,
		"weight":          30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, resp := f.do(t, http.MethodGet, "/api/v1/dashboard/approval-queue?review_cycle_id="+f.cycle.ID, f.tokenFor(t, f.org.SectionHead), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var queue struct {
		KpiValues int64            `json:"kpi_values"`
		Total     int64            `json:"total"`
		ByStage   map[string]int64 `json:"by_stage"`
	}
	decodeData(t, resp, &queue)
	assert.Equal(t, int64(1), queue.KpiValues)
	assert.Equal(t, int64(1), queue.ByStage["section"])

	// the submitter sees their own numbers and no queue
	rec, resp = f.do(t, http.MethodGet, "/api/v1/dashboard", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dash struct {
		Scope     string `json:"scope"`
		KpiValues struct {
			Pending int64 `json:"pending"`
		} `json:"kpi_values"`
		ApprovalQueue struct {
			Total int64 `json:"total"`
		} `json:"approval_queue"`
	}
	decodeData(t, resp, &dash)
	assert.Equal(t, "own", dash.Scope)
	assert.Equal(t, int64(1), dash.KpiValues.Pending)
	assert.Zero(t, dash.ApprovalQueue.Total)
}

func TestRouter_KpiAchievementReport(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/kpi-values", f.tokenFor(t, f.org.Staff), map[string]any{
		"kpi_id":          f.kpi.ID,
		"review_cycle_id": f.cycle.ID,
		"actual_value":    50,
		"weight":          25,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, resp := f.do(t, http.MethodGet, "/api/v1/reports/kpi-achievement?review_cycle_id="+f.cycle.ID, f.tokenFor(t, f.org.Manager), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		CycleName string `json:"cycle_name"`
		Rows      []struct {
			EmployeeID    string `json:"employee_id"`
			PendingValues int    `json:"pending_values"`
		} `json:"rows"`
	}
	decodeData(t, resp, &result)
	assert.Equal(t, f.cycle.Name, result.CycleName)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, f.org.Staff.ID, result.Rows[0].EmployeeID)
	assert.Equal(t, 1, result.Rows[0].PendingValues)

	rec, resp = f.do(t, http.MethodGet, "/api/v1/reports/kpi-achievement", f.tokenFor(t, f.org.Manager), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestRouter_SSEToken(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/notifications/sse-token", f.tokenFor(t, f.org.Staff), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["token"])

	rec, _ = f.do(t, http.MethodGet, "/api/v1/notifications/stream?token=garbage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func (f *apiFixture) upload(t *testing.T, method, path, token, filename string, content []byte) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestRouter_KpiValueEvidence(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.tokenFor(t, f.org.Staff)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/kpi-values", staff, map[string]any{
		"kpi_id":          f.kpi.ID,
		"review_cycle_id": f.cycle.ID,
		"actual_value":    70,
		"weight":          30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var value kpi.ValueResponse
	decodeData(t, resp, &value)
	base := "/api/v1/kpi-values/" + value.ID

	rec, resp = f.upload(t, http.MethodPost, base+"/evidence", staff, "proof.pdf", []byte("%PDF-1.7"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var uploaded struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	decodeData(t, resp, &uploaded)
	assert.Contains(t, f.storage.Files, uploaded.Path)

	rec, resp = f.do(t, http.MethodGet, base+"/evidence", f.tokenFor(t, f.org.SectionHead), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fetched struct {
		URL string `json:"url"`
	}
	decodeData(t, resp, &fetched)
	assert.Equal(t, uploaded.URL, fetched.URL)

	rec, resp = f.do(t, http.MethodGet, base, staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &value)
	assert.True(t, value.HasEvidence)

	rec, resp = f.upload(t, http.MethodPost, base+"/evidence", staff, "tool.exe", []byte("MZ"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = f.do(t, http.MethodPost, base+"/stages/section/approve", f.tokenFor(t, f.org.SectionHead), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = f.upload(t, http.MethodPost, base+"/evidence", staff, "late.pdf", []byte("%PDF-1.7"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_AvatarMissing(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/employees/"+f.org.Colleague.ID+"/avatar", f.tokenFor(t, f.org.Staff), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_MalformedPathID(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.tokenFor(t, f.org.Staff)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"kpi value", http.MethodGet, "/api/v1/kpi-values/not-a-uuid"},
		{"kpi value evidence", http.MethodGet, "/api/v1/kpi-values/123/evidence"},
		{"employee", http.MethodGet, "/api/v1/employees/42"},
		{"evaluation", http.MethodGet, "/api/v1/evaluations/abc"},
		{"evaluation export", http.MethodGet, "/api/v1/evaluations/abc/export"},
		{"notification", http.MethodDelete, "/api/v1/notifications/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := f.do(t, tt.method, tt.path, staff, nil)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			require.NotNil(t, resp.Error)
		})
	}
}
