package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
)

type auditRepositoryImpl struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) audit.Repository {
	return &auditRepositoryImpl{db: db}
}

// jsonb turns an empty snapshot into SQL NULL.
func jsonb(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func (r *auditRepositoryImpl) Create(ctx context.Context, e audit.Entry) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO audit_logs (actor_user_id, action, entity_type, entity_id, before, after, request_id, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ActorUserID, e.Action, e.EntityType, e.EntityID, jsonb(e.Before), jsonb(e.After), e.RequestID, e.IP)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (r *auditRepositoryImpl) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, int64, error) {
	q := GetQuerier(ctx, r.db)

	var c conditions
	if filter.Action != nil {
		c.add("action = $%d", *filter.Action)
	}
	if filter.EntityType != nil {
		c.add("entity_type = $%d", *filter.EntityType)
	}
	if filter.EntityID != nil {
		c.add("entity_id = $%d", *filter.EntityID)
	}
	if filter.ActorUserID != nil {
		c.add("actor_user_id = $%d", *filter.ActorUserID)
	}

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	limit, args := c.page(filter.Page, filter.Limit)
	rows, err := q.Query(ctx, `
		SELECT id, actor_user_id, action, entity_type, entity_id, before, after, request_id, ip, created_at
		FROM audit_logs`+c.where()+` ORDER BY created_at DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var before, after []byte
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.Action, &e.EntityType, &e.EntityID, &before, &after, &e.RequestID, &e.IP, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.Before, e.After = before, after
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
