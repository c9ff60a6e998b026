package report

import (
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

// CycleReportRequest selects one review cycle, optionally narrowed to a unit.
// The caller's own scope always applies on top.
type CycleReportRequest struct {
	ReviewCycleID string  `json:"review_cycle_id"`
	DepartmentID  *string `json:"department_id,omitempty"`
	SectionID     *string `json:"section_id,omitempty"`
}

func (r *CycleReportRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ReviewCycleID) {
		errs = append(errs, validator.ValidationError{
			Field:   "review_cycle_id",
			Message: "review_cycle_id is required",
		})
	} else if !validator.IsValidUUID(r.ReviewCycleID) {
		errs = append(errs, validator.ValidationError{
			Field:   "review_cycle_id",
			Message: "review_cycle_id must be a valid UUID",
		})
	}

	if r.DepartmentID != nil && !validator.IsValidUUID(*r.DepartmentID) {
		errs = append(errs, validator.ValidationError{
			Field:   "department_id",
			Message: "department_id must be a valid UUID",
		})
	}

	if r.SectionID != nil && !validator.IsValidUUID(*r.SectionID) {
		errs = append(errs, validator.ValidationError{
			Field:   "section_id",
			Message: "section_id must be a valid UUID",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========================================
// KPI ACHIEVEMENT REPORT
// ========================================

type KpiAchievementReport struct {
	ReviewCycleID string `json:"review_cycle_id"`
	CycleName     string `json:"cycle_name"`
	GeneratedAt   string `json:"generated_at"`

	TotalEmployees     int     `json:"total_employees"`
	AverageAchievement float64 `json:"average_achievement"`

	Rows []KpiAchievementRow `json:"rows"`
}

// KpiAchievementRow is one employee's KPI values in a cycle. Achievement is the
// weight-averaged actual/target ratio of approved values, in percent.
type KpiAchievementRow struct {
	EmployeeID     string  `json:"employee_id"`
	EmployeeName   string  `json:"employee_name"`
	EmployeeCode   string  `json:"employee_code"`
	SectionName    *string `json:"section_name"`
	DepartmentName *string `json:"department_name"`

	TotalValues    int `json:"total_values"`
	ApprovedValues int `json:"approved_values"`
	PendingValues  int `json:"pending_values"`
	RejectedValues int `json:"rejected_values"`
	DraftValues    int `json:"draft_values"`

	TotalWeight    float64 `json:"total_weight"`
	ApprovedWeight float64 `json:"approved_weight"`
	Achievement    float64 `json:"achievement"`

	// Σ weight × actual/target over approved values with a positive target
	WeightedAttainment float64 `json:"-"`
	// Σ weight over the same values
	AttainmentWeight float64 `json:"-"`
}

// ========================================
// EVALUATION RESULT REPORT
// ========================================

type EvaluationResultReport struct {
	ReviewCycleID string `json:"review_cycle_id"`
	CycleName     string `json:"cycle_name"`
	GeneratedAt   string `json:"generated_at"`

	TotalEmployees    int              `json:"total_employees"`
	Completed         int              `json:"completed"`
	AverageFinalScore float64          `json:"average_final_score"`
	RankDistribution  map[string]int64 `json:"rank_distribution"`

	Rows []EvaluationResultRow `json:"rows"`
}

type EvaluationResultRow struct {
	EvaluationID   string  `json:"evaluation_id"`
	EmployeeID     string  `json:"employee_id"`
	EmployeeName   string  `json:"employee_name"`
	EmployeeCode   string  `json:"employee_code"`
	SectionName    *string `json:"section_name"`
	DepartmentName *string `json:"department_name"`

	Status       string   `json:"status"`
	Rank         string   `json:"rank"`
	AverageScore float64  `json:"average_score"`
	FinalScore   *float64 `json:"final_score"`
	CompletedAt  *string  `json:"completed_at"`
}
