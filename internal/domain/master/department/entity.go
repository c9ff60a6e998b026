package department

import "time"

type Department struct {
	ID          string
	Name        string
	Code        string
	Description *string
	HeadID      *string // employee heading the department
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
