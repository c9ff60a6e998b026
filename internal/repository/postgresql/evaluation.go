package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type evaluationRepositoryImpl struct {
	db *database.DB
}

func NewEvaluationRepository(db *database.DB) evaluation.EvaluationRepository {
	return &evaluationRepositoryImpl{db: db}
}

const evaluationSelect = `
	SELECT ev.id, ev.employee_id, ev.review_cycle_id, ev.supervisor_id,
		   ev.objectives, ev.rank, ev.total_score, ev.average_score, ev.ie_score, ev.scoring_mode,
		   ev.employee_confirmed, ev.supervisor_confirmed, ev.comments,
		   ev.status, ev.rejection_reason, ev.rejected_by, ev.rejected_at,
		   ev.section_approved_by, ev.section_approved_at, ev.department_approved_by, ev.department_approved_at,
		   ev.manager_approved_by, ev.manager_approved_at, ev.submitted_at, ev.transitioned_at,
		   ev.self_review, ev.section_review, ev.department_review, ev.manager_review,
		   ev.final_score, ev.completed_at, ev.employee_feedback, ev.feedback_at,
		   ev.created_at, ev.updated_at,
		   e.full_name, COALESCE(e.section_id::text, ''), COALESCE(e.department_id::text, ''), c.name
	FROM evaluations ev
	JOIN employees e ON e.id = ev.employee_id
	JOIN review_cycles c ON c.id = ev.review_cycle_id
`

func scanEvaluation(row pgx.Row) (evaluation.Evaluation, error) {
	var ev evaluation.Evaluation
	var objectives, selfReview, sectionReview, departmentReview, managerReview []byte

	dest := []interface{}{
		&ev.ID, &ev.EmployeeID, &ev.ReviewCycleID, &ev.SupervisorID,
		&objectives, &ev.Rank, &ev.TotalScore, &ev.AverageScore, &ev.IEScore, &ev.ScoringMode,
		&ev.EmployeeConfirmed, &ev.SupervisorConfirmed, &ev.Comments,
	}
	dest = append(dest, workflowDest(&ev.Workflow)...)
	dest = append(dest,
		&selfReview, &sectionReview, &departmentReview, &managerReview,
		&ev.FinalScore, &ev.CompletedAt, &ev.EmployeeFeedback, &ev.FeedbackAt,
		&ev.CreatedAt, &ev.UpdatedAt,
		&ev.EmployeeName, &ev.SectionID, &ev.DepartmentID, &ev.CycleName,
	)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return evaluation.Evaluation{}, evaluation.ErrEvaluationNotFound
		}
		return evaluation.Evaluation{}, err
	}

	if err := json.Unmarshal(objectives, &ev.Objectives); err != nil {
		return evaluation.Evaluation{}, fmt.Errorf("failed to unmarshal objectives: %w", err)
	}
	for _, r := range []struct {
		raw  []byte
		into **evaluation.Review
	}{
		{selfReview, &ev.SelfReview},
		{sectionReview, &ev.SectionReview},
		{departmentReview, &ev.DepartmentReview},
		{managerReview, &ev.ManagerReview},
	} {
		if r.raw == nil {
			continue
		}
		if err := json.Unmarshal(r.raw, r.into); err != nil {
			return evaluation.Evaluation{}, fmt.Errorf("failed to unmarshal review: %w", err)
		}
	}
	return ev, nil
}

// reviewJSON keeps an absent review as SQL NULL rather than JSON null.
func reviewJSON(r *evaluation.Review) (interface{}, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// contentArgs are the columns written by both Create and Update, in column order.
func contentArgs(ev evaluation.Evaluation) ([]interface{}, error) {
	objectives, err := json.Marshal(ev.Objectives)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal objectives: %w", err)
	}

	args := []interface{}{
		ev.SupervisorID, objectives, ev.Rank, ev.TotalScore, ev.AverageScore, ev.IEScore, string(ev.ScoringMode),
		ev.EmployeeConfirmed, ev.SupervisorConfirmed, ev.Comments,
	}
	args = append(args, workflowArgs(ev.Workflow)...)
	for _, r := range []*evaluation.Review{ev.SelfReview, ev.SectionReview, ev.DepartmentReview, ev.ManagerReview} {
		raw, err := reviewJSON(r)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal review: %w", err)
		}
		args = append(args, raw)
	}
	return append(args, ev.FinalScore, ev.CompletedAt, ev.EmployeeFeedback, ev.FeedbackAt), nil
}

const evaluationContentColumns = `supervisor_id, objectives, rank, total_score, average_score, ie_score, scoring_mode,
	employee_confirmed, supervisor_confirmed, comments, ` + workflowColumns + `,
	self_review, section_review, department_review, manager_review,
	final_score, completed_at, employee_feedback, feedback_at`

func (r *evaluationRepositoryImpl) Create(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	q := GetQuerier(ctx, r.db)

	content, err := contentArgs(ev)
	if err != nil {
		return evaluation.Evaluation{}, err
	}
	args := append([]interface{}{ev.EmployeeID, ev.ReviewCycleID}, content...)

	query := fmt.Sprintf(`
		INSERT INTO evaluations (employee_id, review_cycle_id, %s)
		VALUES (%s)
		RETURNING id
	`, evaluationContentColumns, placeholders(1, len(args)))

	var id string
	if err := q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err, "evaluations_employee_cycle_key") {
			return evaluation.Evaluation{}, evaluation.ErrEvaluationExists
		}
		return evaluation.Evaluation{}, fmt.Errorf("failed to create evaluation: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *evaluationRepositoryImpl) GetByID(ctx context.Context, id string) (evaluation.Evaluation, error) {
	q := GetQuerier(ctx, r.db)
	return scanEvaluation(q.QueryRow(ctx, evaluationSelect+` WHERE ev.id = $1`, id))
}

func (r *evaluationRepositoryImpl) GetByIDForUpdate(ctx context.Context, id string) (evaluation.Evaluation, error) {
	q := GetQuerier(ctx, r.db)
	return scanEvaluation(q.QueryRow(ctx, evaluationSelect+` WHERE ev.id = $1 FOR UPDATE OF ev`, id))
}

func (r *evaluationRepositoryImpl) List(ctx context.Context, filter evaluation.EvaluationFilter) ([]evaluation.Evaluation, int64, error) {
	q := GetQuerier(ctx, r.db)

	var c conditions
	if filter.EmployeeID != nil {
		c.add("ev.employee_id = $%d", *filter.EmployeeID)
	}
	if filter.ReviewCycleID != nil {
		c.add("ev.review_cycle_id = $%d", *filter.ReviewCycleID)
	}
	if filter.Status != nil {
		c.add("ev.status = ANY($%d)", statusFilter(*filter.Status))
	}
	if filter.SectionID != nil {
		c.add("e.section_id = $%d", *filter.SectionID)
	}
	if filter.DepartmentID != nil {
		c.add("e.department_id = $%d", *filter.DepartmentID)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM evaluations ev JOIN employees e ON e.id = ev.employee_id` + c.where()
	if err := q.QueryRow(ctx, countQuery, c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count evaluations: %w", err)
	}

	limit, args := c.page(filter.Page, filter.Limit)
	rows, err := q.Query(ctx, evaluationSelect+c.where()+` ORDER BY ev.created_at DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list evaluations: %w", err)
	}
	evaluations, err := collectEvaluations(rows)
	if err != nil {
		return nil, 0, err
	}
	return evaluations, total, nil
}

func collectEvaluations(rows pgx.Rows) ([]evaluation.Evaluation, error) {
	defer rows.Close()
	var evaluations []evaluation.Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, ev)
	}
	return evaluations, rows.Err()
}

// Update implements evaluation.EvaluationRepository as a compare-and-set on status.
func (r *evaluationRepositoryImpl) Update(ctx context.Context, ev evaluation.Evaluation, expected approval.Status) error {
	q := GetQuerier(ctx, r.db)

	args, err := contentArgs(ev)
	if err != nil {
		return err
	}
	args = append(args, ev.ID, expected)

	query := fmt.Sprintf(`
		UPDATE evaluations SET (%s, updated_at) = (%s, NOW())
		WHERE id = $%d AND status = $%d
	`, evaluationContentColumns, placeholders(1, len(args)-2), len(args)-1, len(args))

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update evaluation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return preconditionFailed(ctx, q, "evaluations", ev.ID, expected, evaluation.ErrEvaluationNotFound)
	}
	return nil
}

func (r *evaluationRepositoryImpl) ExistsForEmployeeCycle(ctx context.Context, employeeID, reviewCycleID string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM evaluations WHERE employee_id = $1 AND review_cycle_id = $2)`, employeeID, reviewCycleID).Scan(&exists)
	return exists, err
}

func (r *evaluationRepositoryImpl) ListPendingSince(ctx context.Context, before time.Time) ([]evaluation.Evaluation, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, evaluationSelect+` WHERE ev.status = ANY($1) AND ev.transitioned_at < $2 ORDER BY ev.transitioned_at`, pendingStatuses, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending evaluations: %w", err)
	}
	return collectEvaluations(rows)
}
