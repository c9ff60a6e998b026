package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/section"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type sectionRepositoryImpl struct {
	db *database.DB
}

func NewSectionRepository(db *database.DB) section.SectionRepository {
	return &sectionRepositoryImpl{db: db}
}

const sectionSelect = `
	SELECT s.id, s.department_id, s.name, s.code, s.head_id, s.created_at, s.updated_at, d.name
	FROM sections s
	JOIN departments d ON d.id = s.department_id
`

func scanSection(row pgx.Row) (section.Section, error) {
	var s section.Section
	err := row.Scan(&s.ID, &s.DepartmentID, &s.Name, &s.Code, &s.HeadID, &s.CreatedAt, &s.UpdatedAt, &s.DepartmentName)
	if errors.Is(err, pgx.ErrNoRows) {
		return section.Section{}, section.ErrSectionNotFound
	}
	return s, err
}

func (r *sectionRepositoryImpl) Create(ctx context.Context, s section.Section) (section.Section, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO sections (department_id, name, code, head_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, department_id, name, code, head_id, created_at, updated_at
	`

	var created section.Section
	err := q.QueryRow(ctx, query, s.DepartmentID, s.Name, s.Code, s.HeadID).Scan(
		&created.ID, &created.DepartmentID, &created.Name, &created.Code, &created.HeadID, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "sections_code_key") {
			return section.Section{}, section.ErrSectionCodeExists
		}
		return section.Section{}, err
	}
	return created, nil
}

func (r *sectionRepositoryImpl) GetByID(ctx context.Context, id string) (section.Section, error) {
	q := GetQuerier(ctx, r.db)
	return scanSection(q.QueryRow(ctx, sectionSelect+` WHERE s.id = $1`, id))
}

func (r *sectionRepositoryImpl) List(ctx context.Context, filter section.SectionFilter) ([]section.Section, error) {
	q := GetQuerier(ctx, r.db)

	var c conditions
	if filter.DepartmentID != nil {
		c.add("s.department_id = $%d", *filter.DepartmentID)
	}

	rows, err := q.Query(ctx, sectionSelect+c.where()+` ORDER BY d.name, s.name`, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []section.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

func (r *sectionRepositoryImpl) Update(ctx context.Context, req section.UpdateSectionRequest) error {
	q := GetQuerier(ctx, r.db)

	updates := make(map[string]interface{})
	if req.DepartmentID != nil {
		updates["department_id"] = *req.DepartmentID
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Code != nil {
		updates["code"] = *req.Code
	}
	if req.HeadID != nil {
		updates["head_id"] = nullable(*req.HeadID)
	}

	affected, err := updateColumns(ctx, q, "sections", req.ID, updates, "")
	if err != nil {
		if isUniqueViolation(err, "sections_code_key") {
			return section.ErrSectionCodeExists
		}
		return err
	}
	if affected == 0 {
		return section.ErrSectionNotFound
	}
	return nil
}

func (r *sectionRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	var inUse bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM employees WHERE section_id = $1 AND deleted_at IS NULL)`, id).Scan(&inUse); err != nil {
		return fmt.Errorf("failed to check section usage: %w", err)
	}
	if inUse {
		return section.ErrSectionInUse
	}

	tag, err := q.Exec(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return section.ErrSectionInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return section.ErrSectionNotFound
	}
	return nil
}
