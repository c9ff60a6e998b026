package employee

import (
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

type Employee struct {
	ID            string
	UserID        string
	EmployeeCode  string
	FullName      string
	PositionTitle *string
	SectionID     *string
	DepartmentID  *string
	HireDate      *time.Time
	AvatarPath    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time

	// Join
	Email          string
	Role           user.Role
	SectionName    *string
	DepartmentName *string
}

// Owner returns the organisational placement used for stage scoping.
func (e Employee) Owner() user.Owner {
	o := user.Owner{EmployeeID: e.ID}
	if e.SectionID != nil {
		o.SectionID = *e.SectionID
	}
	if e.DepartmentID != nil {
		o.DepartmentID = *e.DepartmentID
	}
	return o
}

// Actor builds the request actor for this employee's user.
func (e Employee) Actor() user.Actor {
	o := e.Owner()
	return user.Actor{
		UserID:       e.UserID,
		EmployeeID:   e.ID,
		Role:         e.Role,
		SectionID:    o.SectionID,
		DepartmentID: o.DepartmentID,
	}
}
