package section

import (
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

// SectionResponse represents the response structure for a section.
type SectionResponse struct {
	ID             string  `json:"id"`
	DepartmentID   string  `json:"department_id"`
	DepartmentName string  `json:"department_name,omitempty"`
	Name           string  `json:"name"`
	Code           string  `json:"code"`
	HeadID         *string `json:"head_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// CreateSectionRequest represents the request structure for creating a section.
type CreateSectionRequest struct {
	DepartmentID string  `json:"department_id" validate:"required,uuid"`
	Name         string  `json:"name" validate:"required,max=100"`
	Code         string  `json:"code" validate:"required,max=20"`
	HeadID       *string `json:"head_id,omitempty" validate:"omitempty,uuid"`
}

func (r *CreateSectionRequest) Validate() error {
	return validator.Struct(r)
}

// UpdateSectionRequest represents the request structure for updating a section.
type UpdateSectionRequest struct {
	ID           string  `json:"-" validate:"required"`
	DepartmentID *string `json:"department_id,omitempty" validate:"omitempty,uuid"`
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Code         *string `json:"code,omitempty" validate:"omitempty,min=1,max=20"`
	HeadID       *string `json:"head_id,omitempty" validate:"omitempty,uuid"`
}

func (r *UpdateSectionRequest) Validate() error {
	return validator.Struct(r)
}

type SectionFilter struct {
	DepartmentID *string `json:"department_id,omitempty"`
}
