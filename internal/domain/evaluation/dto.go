package evaluation

import (
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

type CreateEvaluationRequest struct {
	EmployeeID    string  `json:"employee_id" validate:"required,uuid"`
	ReviewCycleID string  `json:"review_cycle_id" validate:"required,uuid"`
	SupervisorID  *string `json:"supervisor_id,omitempty" validate:"omitempty,uuid"`
	Comments      *string `json:"comments,omitempty" validate:"omitempty,max=2000"`
}

func (r *CreateEvaluationRequest) Validate() error {
	return validator.Struct(r)
}

type ObjectiveInput struct {
	Code        string   `json:"code" validate:"required"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	Target      *string  `json:"target,omitempty" validate:"omitempty,max=500"`
	SelfScore   *float64 `json:"self_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	Weight      *float64 `json:"weight,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type UpdateObjectivesRequest struct {
	ID         string           `json:"-"`
	Objectives []ObjectiveInput `json:"objectives" validate:"required,min=1,dive"`
	Comments   *string          `json:"comments,omitempty" validate:"omitempty,max=2000"`
}

func (r *UpdateObjectivesRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}

	var errs validator.ValidationErrors
	seen := make(map[string]bool, len(r.Objectives))
	for _, o := range r.Objectives {
		if !validator.IsInSlice(o.Code, ObjectiveCodes) {
			errs = append(errs, validator.ValidationError{Field: "objectives." + o.Code, Message: "unknown objective code"})
		}
		if seen[o.Code] {
			errs = append(errs, validator.ValidationError{Field: "objectives." + o.Code, Message: "objective listed twice"})
		}
		seen[o.Code] = true
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SelfReviewRequest struct {
	ID      string  `json:"-"`
	Score   float64 `json:"score" validate:"gte=0,lte=100"`
	Comment string  `json:"comment" validate:"max=2000"`
}

func (r *SelfReviewRequest) Validate() error {
	return validator.Struct(r)
}

type ObjectiveScoreInput struct {
	Code            string  `json:"code" validate:"required"`
	SupervisorScore float64 `json:"supervisor_score" validate:"gte=0,lte=100"`
}

type StageReviewRequest struct {
	ID              string                `json:"-"`
	Stage           approval.Stage        `json:"-"`
	Score           float64               `json:"score" validate:"gte=0,lte=100"`
	Comment         string                `json:"comment" validate:"max=2000"`
	ObjectiveScores []ObjectiveScoreInput `json:"objective_scores,omitempty" validate:"omitempty,dive"`
}

func (r *StageReviewRequest) Validate() error {
	return validator.Struct(r)
}

// ToObjectiveScores converts the request input for SubmitStageReview.
func (r *StageReviewRequest) ToObjectiveScores() []ObjectiveScore {
	out := make([]ObjectiveScore, len(r.ObjectiveScores))
	for i, s := range r.ObjectiveScores {
		out[i] = ObjectiveScore{Code: s.Code, SupervisorScore: s.SupervisorScore}
	}
	return out
}

type RejectRequest struct {
	ID     string         `json:"-"`
	Stage  approval.Stage `json:"-"`
	Reason string         `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	return approval.ValidateReason(r.Reason)
}

type FeedbackRequest struct {
	ID       string `json:"-"`
	Feedback string `json:"feedback"`
}

type EvaluationFilter struct {
	EmployeeID    *string `json:"employee_id,omitempty"`
	ReviewCycleID *string `json:"review_cycle_id,omitempty"`
	Status        *string `json:"status,omitempty"`
	SectionID     *string `json:"section_id,omitempty"`
	DepartmentID  *string `json:"department_id,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *EvaluationFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{Field: "page", Message: "page must be a positive number"})
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must be a positive number"})
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must not exceed 100"})
	}
	if f.Status != nil && !approval.Status(*f.Status).Valid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "invalid status"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type EvaluationResponse struct {
	ID            string      `json:"id"`
	EmployeeID    string      `json:"employee_id"`
	EmployeeName  string      `json:"employee_name,omitempty"`
	ReviewCycleID string      `json:"review_cycle_id"`
	CycleName     string      `json:"review_cycle_name,omitempty"`
	SupervisorID  *string     `json:"supervisor_id,omitempty"`
	Objectives    []Objective `json:"objectives"`

	Rank         string  `json:"rank"`
	TotalScore   float64 `json:"total_score"`
	AverageScore float64 `json:"average_score"`
	IEScore      float64 `json:"ie_score"`
	ScoringMode  string  `json:"scoring_mode"`

	Status          string  `json:"status"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	RejectedBy      *string `json:"rejected_by,omitempty"`
	SubmittedAt     *string `json:"submitted_at,omitempty"`
	TransitionedAt  *string `json:"transitioned_at,omitempty"`

	SelfReview       *Review `json:"self_review,omitempty"`
	SectionReview    *Review `json:"section_review,omitempty"`
	DepartmentReview *Review `json:"department_review,omitempty"`
	ManagerReview    *Review `json:"manager_review,omitempty"`

	FinalScore          *float64 `json:"final_score,omitempty"`
	CompletedAt         *string  `json:"completed_at,omitempty"`
	EmployeeFeedback    *string  `json:"employee_feedback,omitempty"`
	EmployeeConfirmed   bool     `json:"employee_confirmed"`
	SupervisorConfirmed bool     `json:"supervisor_confirmed"`
	Comments            *string  `json:"comments,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ListEvaluationResponse struct {
	TotalCount  int64                `json:"total_count"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	TotalPages  int                  `json:"total_pages"`
	Showing     string               `json:"showing"`
	Evaluations []EvaluationResponse `json:"evaluations"`
}

type ExportResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}
