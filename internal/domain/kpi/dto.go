package kpi

import (
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

type CreateKpiRequest struct {
	Name          string   `json:"name"`
	Description   *string  `json:"description,omitempty"`
	Unit          string   `json:"unit"`
	DepartmentID  *string  `json:"department_id,omitempty"`
	DefaultTarget *float64 `json:"default_target,omitempty"`
	Frequency     string   `json:"frequency"`
}

func (r *CreateKpiRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{
			Field:   "name",
			Message: "name is required",
		})
	} else if len(r.Name) > 255 {
		errs = append(errs, validator.ValidationError{
			Field:   "name",
			Message: "name must not exceed 255 characters",
		})
	}

	if validator.IsEmpty(r.Unit) {
		errs = append(errs, validator.ValidationError{
			Field:   "unit",
			Message: "unit is required",
		})
	} else if len(r.Unit) > 50 {
		errs = append(errs, validator.ValidationError{
			Field:   "unit",
			Message: "unit must not exceed 50 characters",
		})
	}

	if r.DepartmentID != nil && !validator.IsValidUUID(*r.DepartmentID) {
		errs = append(errs, validator.ValidationError{
			Field:   "department_id",
			Message: "department_id must be a valid UUID",
		})
	}

	if r.Frequency == "" {
		r.Frequency = string(FrequencyMonthly)
	}
	if !validator.IsInSlice(r.Frequency, ValidFrequencies) {
		errs = append(errs, validator.ValidationError{
			Field:   "frequency",
			Message: "frequency must be one of monthly, quarterly, yearly",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type UpdateKpiRequest struct {
	ID            string   `json:"-"`
	Name          *string  `json:"name,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Unit          *string  `json:"unit,omitempty"`
	DepartmentID  *string  `json:"department_id,omitempty"`
	DefaultTarget *float64 `json:"default_target,omitempty"`
	Frequency     *string  `json:"frequency,omitempty"`
	IsActive      *bool    `json:"is_active,omitempty"`
}

func (r *UpdateKpiRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs = append(errs, validator.ValidationError{
			Field:   "id",
			Message: "id is required",
		})
	}

	if r.Name != nil {
		if validator.IsEmpty(*r.Name) {
			errs = append(errs, validator.ValidationError{
				Field:   "name",
				Message: "name must not be empty",
			})
		} else if len(*r.Name) > 255 {
			errs = append(errs, validator.ValidationError{
				Field:   "name",
				Message: "name must not exceed 255 characters",
			})
		}
	}

	if r.Unit != nil && validator.IsEmpty(*r.Unit) {
		errs = append(errs, validator.ValidationError{
			Field:   "unit",
			Message: "unit must not be empty",
		})
	}

	if r.DepartmentID != nil && !validator.IsValidUUID(*r.DepartmentID) {
		errs = append(errs, validator.ValidationError{
			Field:   "department_id",
			Message: "department_id must be a valid UUID",
		})
	}

	if r.Frequency != nil && !validator.IsInSlice(*r.Frequency, ValidFrequencies) {
		errs = append(errs, validator.ValidationError{
			Field:   "frequency",
			Message: "frequency must be one of monthly, quarterly, yearly",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type KpiFilter struct {
	DepartmentID *string `json:"department_id,omitempty"`
	Search       *string `json:"search,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *KpiFilter) Validate() error {
	return validatePage(&f.Page, &f.Limit)
}

type KpiResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   *string  `json:"description,omitempty"`
	Unit          string   `json:"unit"`
	DepartmentID  *string  `json:"department_id,omitempty"`
	DefaultTarget *float64 `json:"default_target,omitempty"`
	Frequency     string   `json:"frequency"`
	IsActive      bool     `json:"is_active"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

type ListKpiResponse struct {
	TotalCount int64         `json:"total_count"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
	Showing    string        `json:"showing"`
	Kpis       []KpiResponse `json:"kpis"`
}

// SubmitValueRequest creates a KPI value owned by the caller. Draft keeps it out of
// the approval chain until it is submitted.
type SubmitValueRequest struct {
	KpiID         string   `json:"kpi_id" validate:"required,uuid"`
	ReviewCycleID string   `json:"review_cycle_id" validate:"required,uuid"`
	TargetValue   *float64 `json:"target_value,omitempty"`
	ActualValue   float64  `json:"actual_value"`
	Weight        float64  `json:"weight" validate:"gte=0,lte=100"`
	Notes         *string  `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Draft         bool     `json:"draft"`
}

func (r *SubmitValueRequest) Validate() error {
	return validator.Struct(r)
}

type ApproveValueRequest struct {
	ID    string         `json:"-"`
	Stage approval.Stage `json:"-"`
}

type RejectValueRequest struct {
	ID     string         `json:"-"`
	Stage  approval.Stage `json:"-"`
	Reason string         `json:"reason"`
}

func (r *RejectValueRequest) Validate() error {
	return approval.ValidateReason(r.Reason)
}

// ResubmitValueRequest optionally corrects the value while sending it back into the chain.
type ResubmitValueRequest struct {
	ID          string   `json:"-"`
	TargetValue *float64 `json:"target_value,omitempty"`
	ActualValue *float64 `json:"actual_value,omitempty"`
	Weight      *float64 `json:"weight,omitempty" validate:"omitempty,gte=0,lte=100"`
	Notes       *string  `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

func (r *ResubmitValueRequest) Validate() error {
	return validator.Struct(r)
}

type ValueFilter struct {
	EmployeeID    *string `json:"employee_id,omitempty"`
	KpiID         *string `json:"kpi_id,omitempty"`
	ReviewCycleID *string `json:"review_cycle_id,omitempty"`
	Status        *string `json:"status,omitempty"`
	SectionID     *string `json:"section_id,omitempty"`
	DepartmentID  *string `json:"department_id,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *ValueFilter) Validate() error {
	if err := validatePage(&f.Page, &f.Limit); err != nil {
		return err
	}
	if f.Status != nil && !approval.Status(*f.Status).Valid() {
		return validator.ValidationErrors{{Field: "status", Message: "invalid status"}}
	}
	return nil
}

type ValueResponse struct {
	ID            string  `json:"id"`
	KpiID         string  `json:"kpi_id"`
	KpiName       string  `json:"kpi_name,omitempty"`
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name,omitempty"`
	ReviewCycleID string  `json:"review_cycle_id"`
	TargetValue   float64 `json:"target_value"`
	ActualValue   float64 `json:"actual_value"`
	Weight        float64 `json:"weight"`
	Notes         *string `json:"notes,omitempty"`
	HasEvidence   bool    `json:"has_evidence"`

	Status               string  `json:"status"`
	RejectionReason      *string `json:"rejection_reason,omitempty"`
	RejectedBy           *string `json:"rejected_by,omitempty"`
	RejectedAt           *string `json:"rejected_at,omitempty"`
	SectionApprovedBy    *string `json:"section_approved_by,omitempty"`
	SectionApprovedAt    *string `json:"section_approved_at,omitempty"`
	DepartmentApprovedBy *string `json:"department_approved_by,omitempty"`
	DepartmentApprovedAt *string `json:"department_approved_at,omitempty"`
	ManagerApprovedBy    *string `json:"manager_approved_by,omitempty"`
	ManagerApprovedAt    *string `json:"manager_approved_at,omitempty"`
	SubmittedAt          *string `json:"submitted_at,omitempty"`
	TransitionedAt       *string `json:"transitioned_at,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ListValueResponse struct {
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
	Showing    string          `json:"showing"`
	Values     []ValueResponse `json:"kpi_values"`
}

func validatePage(page, limit *int) error {
	var errs validator.ValidationErrors

	if *page < 0 {
		errs = append(errs, validator.ValidationError{Field: "page", Message: "page must be a positive number"})
	}
	if *page == 0 {
		*page = 1
	}
	if *limit < 0 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must be a positive number"})
	}
	if *limit == 0 {
		*limit = 20
	}
	if *limit > 100 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must not exceed 100"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
