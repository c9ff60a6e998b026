package audit

import (
	"encoding/json"
	"time"
)

const (
	EntityKpi         = "kpi"
	EntityKpiValue    = "kpi_value"
	EntityEvaluation  = "evaluation"
	EntityReviewCycle = "review_cycle"
	EntityEmployee    = "employee"
	EntityDepartment  = "department"
	EntitySection     = "section"
)

// Entry is one append-only record of who changed what.
type Entry struct {
	ID          string
	ActorUserID *string
	Action      string
	EntityType  string
	EntityID    string
	Before      json.RawMessage
	After       json.RawMessage
	RequestID   string
	IP          string
	CreatedAt   time.Time
}
