package employee

import (
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

type CreateEmployeeRequest struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	Role          string  `json:"role"`
	EmployeeCode  string  `json:"employee_code"`
	FullName      string  `json:"full_name"`
	PositionTitle *string `json:"position_title,omitempty"`
	SectionID     *string `json:"section_id,omitempty"`
	DepartmentID  *string `json:"department_id,omitempty"`
	HireDate      *string `json:"hire_date,omitempty"` // YYYY-MM-DD
}

func (r *CreateEmployeeRequest) Validate() error {
	var errs validator.ValidationErrors

	// Email
	if validator.IsEmpty(r.Email) {
		errs = append(errs, validator.ValidationError{
			Field:   "email",
			Message: "email is required",
		})
	} else if !validator.IsValidEmail(r.Email) {
		errs = append(errs, validator.ValidationError{
			Field:   "email",
			Message: "invalid email format",
		})
	}

	// Password
	if validator.IsEmpty(r.Password) {
		errs = append(errs, validator.ValidationError{
			Field:   "password",
			Message: "password is required",
		})
	} else if len(r.Password) < 8 {
		errs = append(errs, validator.ValidationError{
			Field:   "password",
			Message: "password must be at least 8 characters",
		})
	}

	// Role
	if r.Role == "" {
		r.Role = string(user.RoleEmployee)
	}
	if !validator.IsInSlice(r.Role, user.ValidRoles) {
		errs = append(errs, validator.ValidationError{
			Field:   "role",
			Message: "invalid role",
		})
	}

	// Employee code
	if validator.IsEmpty(r.EmployeeCode) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_code",
			Message: "employee_code is required",
		})
	} else if len(r.EmployeeCode) > 50 {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_code",
			Message: "employee_code must not exceed 50 characters",
		})
	}

	// Full name
	if validator.IsEmpty(r.FullName) {
		errs = append(errs, validator.ValidationError{
			Field:   "full_name",
			Message: "full_name is required",
		})
	} else if len(r.FullName) > 255 {
		errs = append(errs, validator.ValidationError{
			Field:   "full_name",
			Message: "full_name must not exceed 255 characters",
		})
	}

	errs = append(errs, validatePlacement(user.Role(r.Role), r.SectionID, r.DepartmentID)...)

	if r.HireDate != nil {
		if _, ok := validator.IsValidDate(*r.HireDate); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "hire_date",
				Message: "hire_date must be in YYYY-MM-DD format",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type UpdateEmployeeRequest struct {
	ID            string  `json:"-"`
	FullName      *string `json:"full_name,omitempty"`
	PositionTitle *string `json:"position_title,omitempty"`
	Role          *string `json:"role,omitempty"`
	SectionID     *string `json:"section_id,omitempty"`
	DepartmentID  *string `json:"department_id,omitempty"`
	HireDate      *string `json:"hire_date,omitempty"`
}

func (r *UpdateEmployeeRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs = append(errs, validator.ValidationError{
			Field:   "id",
			Message: "id is required",
		})
	}

	if r.FullName != nil && validator.IsEmpty(*r.FullName) {
		errs = append(errs, validator.ValidationError{
			Field:   "full_name",
			Message: "full_name must not be empty",
		})
	}

	if r.Role != nil && !validator.IsInSlice(*r.Role, user.ValidRoles) {
		errs = append(errs, validator.ValidationError{
			Field:   "role",
			Message: "invalid role",
		})
	}

	if r.SectionID != nil && !validator.IsValidUUID(*r.SectionID) {
		errs = append(errs, validator.ValidationError{
			Field:   "section_id",
			Message: "section_id must be a valid UUID",
		})
	}
	if r.DepartmentID != nil && !validator.IsValidUUID(*r.DepartmentID) {
		errs = append(errs, validator.ValidationError{
			Field:   "department_id",
			Message: "department_id must be a valid UUID",
		})
	}

	if r.HireDate != nil {
		if _, ok := validator.IsValidDate(*r.HireDate); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "hire_date",
				Message: "hire_date must be in YYYY-MM-DD format",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// validatePlacement checks that section and department heads carry the unit they head.
func validatePlacement(role user.Role, sectionID, departmentID *string) validator.ValidationErrors {
	var errs validator.ValidationErrors

	if sectionID != nil && !validator.IsValidUUID(*sectionID) {
		errs = append(errs, validator.ValidationError{
			Field:   "section_id",
			Message: "section_id must be a valid UUID",
		})
	}
	if departmentID != nil && !validator.IsValidUUID(*departmentID) {
		errs = append(errs, validator.ValidationError{
			Field:   "department_id",
			Message: "department_id must be a valid UUID",
		})
	}

	switch role {
	case user.RoleSectionHead, user.RoleEmployee:
		if sectionID == nil {
			errs = append(errs, validator.ValidationError{
				Field:   "section_id",
				Message: "section_id is required for role " + string(role),
			})
		}
		fallthrough
	case user.RoleDepartmentHead:
		if departmentID == nil {
			errs = append(errs, validator.ValidationError{
				Field:   "department_id",
				Message: "department_id is required for role " + string(role),
			})
		}
	}

	return errs
}

type EmployeeFilter struct {
	Search       *string `json:"search,omitempty"`
	SectionID    *string `json:"section_id,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
	Role         *string `json:"role,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *EmployeeFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{Field: "page", Message: "page must be a positive number"})
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must be a positive number"})
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must not exceed 100"})
	}
	if f.Role != nil && !validator.IsInSlice(*f.Role, user.ValidRoles) {
		errs = append(errs, validator.ValidationError{Field: "role", Message: "invalid role"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type EmployeeResponse struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Email          string  `json:"email"`
	Role           string  `json:"role"`
	EmployeeCode   string  `json:"employee_code"`
	FullName       string  `json:"full_name"`
	PositionTitle  *string `json:"position_title,omitempty"`
	SectionID      *string `json:"section_id,omitempty"`
	SectionName    *string `json:"section_name,omitempty"`
	DepartmentID   *string `json:"department_id,omitempty"`
	DepartmentName *string `json:"department_name,omitempty"`
	HireDate       *string `json:"hire_date,omitempty"`
	HasAvatar      bool    `json:"has_avatar"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type ListEmployeeResponse struct {
	TotalCount int64              `json:"total_count"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
	Showing    string             `json:"showing"`
	Employees  []EmployeeResponse `json:"employees"`
}
