package dashboard

// ========== COMBINED DASHBOARD ==========

// DashboardResponse is the combined response for the main dashboard endpoint
type DashboardResponse struct {
	ReviewCycleID *string               `json:"review_cycle_id,omitempty"`
	Scope         string                `json:"scope"`
	KpiValues     StatusSummary         `json:"kpi_values"`
	Evaluations   StatusSummary         `json:"evaluations"`
	Scores        ScoreSummary          `json:"scores"`
	ApprovalQueue ApprovalQueueResponse `json:"approval_queue"`
	UpdatedAt     string                `json:"updated_at"`
}

// Scope names
const (
	ScopeOwn          = "own"
	ScopeSection      = "section"
	ScopeDepartment   = "department"
	ScopeOrganisation = "organisation"
)

// ========== STATUS BREAKDOWN ==========

// StatusSummary groups workflow states for a pie or stacked bar chart
type StatusSummary struct {
	Total    int64            `json:"total"`
	Draft    int64            `json:"draft"`
	Pending  int64            `json:"pending"`
	Rejected int64            `json:"rejected"`
	Approved int64            `json:"approved"`
	ByStatus map[string]int64 `json:"by_status"`
}

// ========== SCORES ==========

type ScoreSummary struct {
	Completed         int64            `json:"completed"`
	AverageFinalScore float64          `json:"average_final_score"`
	RankDistribution  map[string]int64 `json:"rank_distribution"`
}

// ========== APPROVAL QUEUE ==========

// ApprovalQueueResponse counts what is waiting on the caller, per record kind and stage
type ApprovalQueueResponse struct {
	KpiValues   int64            `json:"kpi_values"`
	Evaluations int64            `json:"evaluations"`
	Total       int64            `json:"total"`
	ByStage     map[string]int64 `json:"by_stage"`
}
