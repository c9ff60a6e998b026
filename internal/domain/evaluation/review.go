package evaluation

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

const (
	MaxCommentLength  = 2000
	MaxFeedbackLength = 2000
)

// SubmitSelfReview stores the employee's own score, replacing any earlier one.
// It is refused once any approval stage has reviewed the evaluation.
func (e *Evaluation) SubmitSelfReview(employeeID string, score float64, comment string, now time.Time) error {
	if err := validateReview(score, comment); err != nil {
		return err
	}
	if st, ok := e.hasStageReview(); ok {
		return &approval.PreconditionError{Expected: "no stage reviews", Actual: string(st) + " review recorded"}
	}
	if e.IsCompleted() {
		return &approval.PreconditionError{Expected: "not completed", Actual: "completed"}
	}

	e.SelfReview = &Review{ReviewerID: employeeID, Score: score, Comment: strings.TrimSpace(comment), ReviewedAt: now}
	return nil
}

// ObjectiveScore sets the supervisor score of one objective as part of a stage review.
type ObjectiveScore struct {
	Code            string
	SupervisorScore float64
}

// SubmitStageReview records stage's review and approves the evaluation at that stage.
// Both happen on the same record so they are persisted together.
func (e *Evaluation) SubmitStageReview(stage approval.Stage, reviewerID string, score float64, comment string, objectiveScores []ObjectiveScore, t Template, now time.Time) error {
	if err := e.ExpectPending(stage); err != nil {
		return err
	}
	if err := validateReview(score, comment); err != nil {
		return err
	}
	if err := e.applyObjectiveScores(objectiveScores); err != nil {
		return err
	}

	if err := e.Approve(stage, reviewerID, now); err != nil {
		return err
	}
	e.setStageReview(stage, &Review{ReviewerID: reviewerID, Score: score, Comment: strings.TrimSpace(comment), ReviewedAt: now})
	e.Recalculate(t)
	return nil
}

// RejectStage rejects the evaluation at stage with reason.
func (e *Evaluation) RejectStage(stage approval.Stage, reviewerID, reason string, now time.Time) error {
	if err := e.ExpectPending(stage); err != nil {
		return err
	}
	return e.Reject(stage, reason, reviewerID, now)
}

// ResubmitForReview restarts a rejected evaluation at the section stage. Stage reviews
// from the previous round are discarded with the approvals they belonged to.
func (e *Evaluation) ResubmitForReview(now time.Time) error {
	if err := e.Resubmit(now); err != nil {
		return err
	}
	e.SectionReview = nil
	e.DepartmentReview = nil
	e.ManagerReview = nil
	return nil
}

// CompleteReview freezes the final score as the stage-weighted average of the
// recorded reviews. It only runs once, on an approved evaluation.
func (e *Evaluation) CompleteReview(weights StageWeights, now time.Time) error {
	if e.IsCompleted() {
		return &approval.PreconditionError{Expected: "not completed", Actual: "completed"}
	}
	if e.Status != approval.StatusApproved {
		return &approval.PreconditionError{Expected: string(approval.StatusApproved), Actual: string(e.Status)}
	}

	var entries []WeightedScore
	add := func(weight float64, r *Review) {
		if r != nil {
			entries = append(entries, WeightedScore{Weight: weight, Score: r.Score})
		}
	}
	add(weights.Self, e.SelfReview)
	add(weights.Section, e.SectionReview)
	add(weights.Department, e.DepartmentReview)
	add(weights.Manager, e.ManagerReview)

	final := WeightedAverage(entries)
	e.FinalScore = &final
	e.CompletedAt = &now
	return nil
}

// SubmitEmployeeFeedback stores the employee's response to a completed review. The
// workflow status is left alone.
func (e *Evaluation) SubmitEmployeeFeedback(text string, now time.Time) error {
	if !e.IsCompleted() {
		return &approval.PreconditionError{Expected: "completed", Actual: string(e.Status)}
	}
	text = strings.TrimSpace(text)
	if validator.IsEmpty(text) {
		return validator.ValidationErrors{{Field: "feedback", Message: "feedback is required"}}
	}
	if validator.RuneLen(text) > MaxFeedbackLength {
		return validator.ValidationErrors{{Field: "feedback", Message: "feedback must not exceed 2000 characters"}}
	}
	e.EmployeeFeedback = &text
	e.FeedbackAt = &now
	return nil
}

// Confirm sets the employee or supervisor acknowledgement of a completed evaluation.
func (e *Evaluation) Confirm(asEmployee bool) error {
	if !e.IsCompleted() {
		return &approval.PreconditionError{Expected: "completed", Actual: string(e.Status)}
	}
	if asEmployee {
		e.EmployeeConfirmed = true
	} else {
		e.SupervisorConfirmed = true
	}
	return nil
}

// CanEditObjectives reports whether the owner may still change objectives.
func (e *Evaluation) CanEditObjectives() bool {
	return e.Status == approval.StatusDraft || e.Status.IsRejected()
}

func (e *Evaluation) applyObjectiveScores(scores []ObjectiveScore) error {
	var errs validator.ValidationErrors
	for _, s := range scores {
		if e.Objective(s.Code) == nil {
			errs = append(errs, validator.ValidationError{Field: "objective_scores." + s.Code, Message: "unknown objective"})
			continue
		}
		if !validator.IsScore(s.SupervisorScore) {
			errs = append(errs, validator.ValidationError{Field: "objective_scores." + s.Code, Message: "supervisor_score must be between 0 and 100"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	for _, s := range scores {
		v := s.SupervisorScore
		e.Objective(s.Code).SupervisorScore = &v
	}
	return nil
}

func validateReview(score float64, comment string) error {
	var errs validator.ValidationErrors
	if !validator.IsScore(score) {
		errs = append(errs, validator.ValidationError{Field: "score", Message: "score must be between 0 and 100"})
	}
	if validator.RuneLen(comment) > MaxCommentLength {
		errs = append(errs, validator.ValidationError{Field: "comment", Message: "comment must not exceed 2000 characters"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
