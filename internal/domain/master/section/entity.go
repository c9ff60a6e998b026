package section

import "time"

// Section is a unit inside a department; the first approval stage is scoped to it.
type Section struct {
	ID           string
	DepartmentID string
	Name         string
	Code         string
	HeadID       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Join
	DepartmentName string
}
