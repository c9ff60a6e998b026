package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/file"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/department"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/section"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

var notFound = []error{
	user.ErrUserNotFound,
	employee.ErrEmployeeNotFound,
	department.ErrDepartmentNotFound,
	section.ErrSectionNotFound,
	kpi.ErrKpiNotFound,
	kpi.ErrKpiValueNotFound,
	reviewcycle.ErrReviewCycleNotFound,
	evaluation.ErrEvaluationNotFound,
	evaluation.ErrObjectiveNotFound,
	notification.ErrNotificationNotFound,
	file.ErrAvatarNotFound,
	file.ErrEvidenceNotFound,
}

var conflict = []error{
	user.ErrUserEmailExists,
	employee.ErrEmployeeCodeExists,
	employee.ErrEmailExists,
	department.ErrDepartmentCodeExists,
	department.ErrDepartmentInUse,
	section.ErrSectionCodeExists,
	section.ErrSectionInUse,
	kpi.ErrKpiNameExists,
	kpi.ErrKpiInUse,
	kpi.ErrKpiValueExists,
	reviewcycle.ErrReviewCycleNameExists,
	reviewcycle.ErrReviewCycleLocked,
	evaluation.ErrEvaluationExists,
	evaluation.ErrObjectivesLocked,
	kpi.ErrEvidenceLocked,
}

var forbidden = []error{
	user.ErrForbiddenStage,
	user.ErrNotOwner,
	user.ErrInsufficientPermissions,
	user.ErrEmployeeProfileRequired,
	employee.ErrUnauthorized,
	employee.ErrCannotDeleteSelf,
	evaluation.ErrConfirmationNotAllowed,
}

var unprocessable = []error{
	approval.ErrInvalidStage,
	kpi.ErrKpiInactive,
	kpi.ErrWeightBudgetExceeded,
	evaluation.ErrWeightBudgetExceeded,
	employee.ErrSectionOutsideDept,
	notification.ErrInvalidNotificationType,
	notification.ErrRecipientRequired,
	file.ErrInvalidFileType,
	file.ErrFileRequired,
}

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var transitionErr *approval.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		Error(w, http.StatusConflict, "INVALID_TRANSITION", transitionErr.Error(), map[string]string{
			"current_status": string(transitionErr.Current),
			"action":         string(transitionErr.Action),
		})
		return
	}

	var preconditionErr *approval.PreconditionError
	if errors.As(err, &preconditionErr) {
		Error(w, http.StatusConflict, "PRECONDITION_VIOLATION", preconditionErr.Error(), map[string]string{
			"expected": preconditionErr.Expected,
			"actual":   preconditionErr.Actual,
		})
		return
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrRefreshTokenRevoked),
		errors.Is(err, auth.ErrAccountRemoved),
		errors.Is(err, auth.ErrAccountNotProvided):
		Unauthorized(w, err.Error())
	case matches(err, notFound):
		NotFound(w, err.Error())
	case matches(err, forbidden):
		Forbidden(w, err.Error())
	case matches(err, conflict):
		Conflict(w, err.Error())
	case errors.Is(err, file.ErrFileTooLarge):
		Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error(), nil)
	case matches(err, unprocessable):
		Error(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
