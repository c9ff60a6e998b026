package reviewcycle

import "time"

// ReviewCycle is a named period such as "Q1-2025" that scopes KPI values and evaluations.
type ReviewCycle struct {
	ID        string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	// Referenced is true once any KPI value or evaluation points at the cycle.
	Referenced bool
}
