package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type kpiRepositoryImpl struct {
	db *database.DB
}

func NewKpiRepository(db *database.DB) kpi.KpiRepository {
	return &kpiRepositoryImpl{db: db}
}

const kpiColumns = `id, name, description, unit, department_id, default_target, frequency, is_active, created_at, updated_at`

func scanKpi(row pgx.Row) (kpi.Kpi, error) {
	var k kpi.Kpi
	err := row.Scan(&k.ID, &k.Name, &k.Description, &k.Unit, &k.DepartmentID, &k.DefaultTarget, &k.Frequency, &k.IsActive, &k.CreatedAt, &k.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return kpi.Kpi{}, kpi.ErrKpiNotFound
	}
	return k, err
}

func (r *kpiRepositoryImpl) Create(ctx context.Context, k kpi.Kpi) (kpi.Kpi, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO kpis (name, description, unit, department_id, default_target, frequency, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + kpiColumns

	created, err := scanKpi(q.QueryRow(ctx, query, k.Name, k.Description, k.Unit, k.DepartmentID, k.DefaultTarget, k.Frequency, k.IsActive))
	if err != nil {
		if isUniqueViolation(err, "kpis_name_key") {
			return kpi.Kpi{}, kpi.ErrKpiNameExists
		}
		return kpi.Kpi{}, err
	}
	return created, nil
}

func (r *kpiRepositoryImpl) GetByID(ctx context.Context, id string) (kpi.Kpi, error) {
	q := GetQuerier(ctx, r.db)
	return scanKpi(q.QueryRow(ctx, `SELECT `+kpiColumns+` FROM kpis WHERE id = $1`, id))
}

func (r *kpiRepositoryImpl) List(ctx context.Context, filter kpi.KpiFilter) ([]kpi.Kpi, int64, error) {
	q := GetQuerier(ctx, r.db)

	var c conditions
	if filter.DepartmentID != nil {
		c.add("department_id = $%d", *filter.DepartmentID)
	}
	if filter.Search != nil && *filter.Search != "" {
		c.add("name ILIKE $%d", "%"+*filter.Search+"%")
	}
	if filter.IsActive != nil {
		c.add("is_active = $%d", *filter.IsActive)
	}

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM kpis`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count kpis: %w", err)
	}

	limit, args := c.page(filter.Page, filter.Limit)
	rows, err := q.Query(ctx, `SELECT `+kpiColumns+` FROM kpis`+c.where()+` ORDER BY name`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list kpis: %w", err)
	}
	defer rows.Close()

	var kpis []kpi.Kpi
	for rows.Next() {
		k, err := scanKpi(rows)
		if err != nil {
			return nil, 0, err
		}
		kpis = append(kpis, k)
	}
	return kpis, total, rows.Err()
}

func (r *kpiRepositoryImpl) Update(ctx context.Context, req kpi.UpdateKpiRequest) error {
	q := GetQuerier(ctx, r.db)

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = nullable(*req.Description)
	}
	if req.Unit != nil {
		updates["unit"] = *req.Unit
	}
	if req.DepartmentID != nil {
		updates["department_id"] = nullable(*req.DepartmentID)
	}
	if req.DefaultTarget != nil {
		updates["default_target"] = *req.DefaultTarget
	}
	if req.Frequency != nil {
		updates["frequency"] = *req.Frequency
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	affected, err := updateColumns(ctx, q, "kpis", req.ID, updates, "")
	if err != nil {
		if isUniqueViolation(err, "kpis_name_key") {
			return kpi.ErrKpiNameExists
		}
		return err
	}
	if affected == 0 {
		return kpi.ErrKpiNotFound
	}
	return nil
}

func (r *kpiRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM kpis WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return kpi.ErrKpiInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpi.ErrKpiNotFound
	}
	return nil
}
