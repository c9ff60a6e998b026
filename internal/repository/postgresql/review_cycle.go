package postgresql

import (
	"context"
	"errors"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type reviewCycleRepositoryImpl struct {
	db *database.DB
}

func NewReviewCycleRepository(db *database.DB) reviewcycle.ReviewCycleRepository {
	return &reviewCycleRepositoryImpl{db: db}
}

const reviewCycleSelect = `
	SELECT c.id, c.name, c.start_date, c.end_date, c.created_at, c.updated_at,
		   EXISTS(SELECT 1 FROM kpi_values v WHERE v.review_cycle_id = c.id)
			   OR EXISTS(SELECT 1 FROM evaluations ev WHERE ev.review_cycle_id = c.id)
	FROM review_cycles c
`

func scanReviewCycle(row pgx.Row) (reviewcycle.ReviewCycle, error) {
	var c reviewcycle.ReviewCycle
	err := row.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt, &c.Referenced)
	if errors.Is(err, pgx.ErrNoRows) {
		return reviewcycle.ReviewCycle{}, reviewcycle.ErrReviewCycleNotFound
	}
	return c, err
}

func (r *reviewCycleRepositoryImpl) Create(ctx context.Context, c reviewcycle.ReviewCycle) (reviewcycle.ReviewCycle, error) {
	q := GetQuerier(ctx, r.db)

	var id string
	err := q.QueryRow(ctx, `INSERT INTO review_cycles (name, start_date, end_date) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.StartDate, c.EndDate).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "review_cycles_name_key") {
			return reviewcycle.ReviewCycle{}, reviewcycle.ErrReviewCycleNameExists
		}
		return reviewcycle.ReviewCycle{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *reviewCycleRepositoryImpl) GetByID(ctx context.Context, id string) (reviewcycle.ReviewCycle, error) {
	q := GetQuerier(ctx, r.db)
	return scanReviewCycle(q.QueryRow(ctx, reviewCycleSelect+` WHERE c.id = $1`, id))
}

func (r *reviewCycleRepositoryImpl) List(ctx context.Context) ([]reviewcycle.ReviewCycle, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, reviewCycleSelect+` ORDER BY c.start_date DESC, c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []reviewcycle.ReviewCycle
	for rows.Next() {
		c, err := scanReviewCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func (r *reviewCycleRepositoryImpl) Update(ctx context.Context, c reviewcycle.ReviewCycle) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE review_cycles SET name = $1, start_date = $2, end_date = $3, updated_at = NOW()
		WHERE id = $4
	`, c.Name, c.StartDate, c.EndDate, c.ID)
	if err != nil {
		if isUniqueViolation(err, "review_cycles_name_key") {
			return reviewcycle.ErrReviewCycleNameExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return reviewcycle.ErrReviewCycleNotFound
	}
	return nil
}

func (r *reviewCycleRepositoryImpl) IsReferenced(ctx context.Context, id string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var referenced bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM kpi_values WHERE review_cycle_id = $1)
			OR EXISTS(SELECT 1 FROM evaluations WHERE review_cycle_id = $1)
	`, id).Scan(&referenced)
	return referenced, err
}
