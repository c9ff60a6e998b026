package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/file"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", validator.ValidationErrors{{Field: "reason", Message: "reason is required"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"transition", &approval.InvalidTransitionError{Current: approval.StatusApproved, Action: approval.ActionResubmit}, http.StatusConflict, "INVALID_TRANSITION"},
		{"precondition", fmt.Errorf("approve: %w", &approval.PreconditionError{Expected: "pending_section_approval", Actual: "approved"}), http.StatusConflict, "PRECONDITION_VIOLATION"},
		{"not found", fmt.Errorf("get: %w", kpi.ErrKpiValueNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden stage", user.ErrForbiddenStage, http.StatusForbidden, "FORBIDDEN"},
		{"weight budget", evaluation.ErrWeightBudgetExceeded, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"duplicate", evaluation.ErrEvaluationExists, http.StatusConflict, "CONFLICT"},
		{"evidence locked", kpi.ErrEvidenceLocked, http.StatusConflict, "CONFLICT"},
		{"upload too large", fmt.Errorf("upload: %w", file.ErrFileTooLarge), http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"upload type", file.ErrInvalidFileType, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"no evidence", file.ErrEvidenceNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(w, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestHandleError_TransitionDetails(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, &approval.InvalidTransitionError{Current: approval.StatusDraft, Action: approval.ActionApproveSection})

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "draft", resp.Error.Details["current_status"])
	assert.Equal(t, string(approval.ActionApproveSection), resp.Error.Details["action"])
}

func TestHandleError_InternalHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, errors.New("pq: password authentication failed"))
	assert.NotContains(t, w.Body.String(), "password")
}
