package evaluation

import (
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
)

// ObjectiveCodes lists the objectives of every evaluation in display order.
var ObjectiveCodes = []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "B1", "B2", "B3"}

// Objective is one weighted line of a performance evaluation.
type Objective struct {
	Code            string   `json:"code"`
	Description     string   `json:"description"`
	Target          string   `json:"target"`
	SelfScore       *float64 `json:"self_score,omitempty"`
	SupervisorScore *float64 `json:"supervisor_score,omitempty"`
	Weight          float64  `json:"weight"`
}

// Review is a score with a comment left by the employee or one approval stage.
type Review struct {
	ReviewerID string    `json:"reviewer_id"`
	Score      float64   `json:"score"`
	Comment    string    `json:"comment"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

type Evaluation struct {
	ID            string
	EmployeeID    string
	ReviewCycleID string
	SupervisorID  *string

	Objectives   []Objective
	Rank         string
	TotalScore   float64
	AverageScore float64
	IEScore      float64
	ScoringMode  ScoringMode

	EmployeeConfirmed   bool
	SupervisorConfirmed bool
	Comments            *string

	approval.Workflow

	SelfReview       *Review
	SectionReview    *Review
	DepartmentReview *Review
	ManagerReview    *Review

	FinalScore       *float64
	CompletedAt      *time.Time
	EmployeeFeedback *string
	FeedbackAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Join
	EmployeeName string
	SectionID    string
	DepartmentID string
	CycleName    string
}

// Objective returns a pointer to the objective with code, or nil.
func (e *Evaluation) Objective(code string) *Objective {
	for i := range e.Objectives {
		if e.Objectives[i].Code == code {
			return &e.Objectives[i]
		}
	}
	return nil
}

// StageReview returns the review recorded at stage, or nil.
func (e *Evaluation) StageReview(stage approval.Stage) *Review {
	switch stage {
	case approval.StageSection:
		return e.SectionReview
	case approval.StageDepartment:
		return e.DepartmentReview
	case approval.StageManager:
		return e.ManagerReview
	}
	return nil
}

func (e *Evaluation) setStageReview(stage approval.Stage, r *Review) {
	switch stage {
	case approval.StageSection:
		e.SectionReview = r
	case approval.StageDepartment:
		e.DepartmentReview = r
	case approval.StageManager:
		e.ManagerReview = r
	}
}

func (e *Evaluation) hasStageReview() (approval.Stage, bool) {
	for _, st := range approval.Stages {
		if e.StageReview(st) != nil {
			return st, true
		}
	}
	return "", false
}

// IsCompleted reports whether the final score has been frozen.
func (e *Evaluation) IsCompleted() bool {
	return e.CompletedAt != nil
}

// Recalculate derives IE, total, average and rank from the objectives. It runs on
// every insert and update so the derived fields never lag their inputs.
//
// total = Σ(supervisor_score × weight); average = total / Σweight; unscored
// objectives count as 0. In legacy mode the IE index replaces A1's supervisor
// score before the total is taken.
func (e *Evaluation) Recalculate(t Template) {
	mode := e.ScoringMode
	if mode == "" {
		mode = t.ScoringMode
		e.ScoringMode = mode
	}

	entries := make([]WeightedScore, len(e.Objectives))
	for i, o := range e.Objectives {
		entries[i] = WeightedScore{Weight: o.Weight, Score: scoreOrZero(o.SupervisorScore)}
	}
	e.IEScore = WeightedAverage(entries)

	if mode == ScoringModeLegacy {
		if a1 := e.Objective("A1"); a1 != nil {
			ie := e.IEScore
			a1.SupervisorScore = &ie
		}
	}

	var total, weight float64
	for _, o := range e.Objectives {
		total += scoreOrZero(o.SupervisorScore) * o.Weight
		weight += o.Weight
	}
	e.TotalScore = Round2(total)
	if weight == 0 {
		e.AverageScore = 0
	} else {
		e.AverageScore = Round2(total / weight)
	}
	e.Rank = t.RankFor(e.AverageScore)
}

// TotalWeight sums the objective weights.
func (e *Evaluation) TotalWeight() float64 {
	var sum float64
	for _, o := range e.Objectives {
		sum += o.Weight
	}
	return sum
}

func scoreOrZero(s *float64) float64 {
	if s == nil {
		return 0
	}
	return *s
}
