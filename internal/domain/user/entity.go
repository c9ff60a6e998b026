package user

import "time"

type Role string

const (
	RoleAdmin          Role = "admin"           // HR administrator - full access
	RoleManager        Role = "manager"         // Final approval stage
	RoleDepartmentHead Role = "department_head" // Approves for one department
	RoleSectionHead    Role = "section_head"    // Approves for one section
	RoleEmployee       Role = "employee"        // Submits own KPI values
)

var ValidRoles = []string{
	string(RoleAdmin),
	string(RoleManager),
	string(RoleDepartmentHead),
	string(RoleSectionHead),
	string(RoleEmployee),
}

type User struct {
	ID              string
	Email           string
	PasswordHash    *string
	Role            Role
	OAuthProvider   *string
	OAuthProviderID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Join
	EmployeeID   *string
	SectionID    *string
	DepartmentID *string
}

// IsAdmin checks if user is an HR administrator
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsApprover checks if user sits on any approval stage
func (u *User) IsApprover() bool {
	return u.Role != RoleEmployee
}
