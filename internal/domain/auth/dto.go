package auth

import (
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	var errs validator.ValidationErrors
	switch {
	case validator.IsEmpty(r.Email):
		errs = append(errs, validator.ValidationError{Field: "email", Message: "email is required"})
	case !validator.IsValidEmail(r.Email):
		errs = append(errs, validator.ValidationError{Field: "email", Message: "email must be a valid email address"})
	}
	if validator.IsEmpty(r.Password) {
		errs = append(errs, validator.ValidationError{Field: "password", Message: "password is required"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r *RefreshTokenRequest) Validate() error {
	if validator.IsEmpty(r.RefreshToken) {
		return validator.ValidationErrors{{Field: "refresh_token", Message: "refresh_token is required"}}
	}
	return nil
}

// SessionTrackingRequest is stored next to each refresh token.
type SessionTrackingRequest struct {
	UserAgent string
	IPAddress string
}

// Principal tells the client which workflow screens to show without decoding the token.
type Principal struct {
	UserID       string   `json:"user_id"`
	EmployeeID   *string  `json:"employee_id"`
	Role         string   `json:"role"`
	SectionID    *string  `json:"section_id"`
	DepartmentID *string  `json:"department_id"`
	Permissions  []string `json:"permissions"`
}

func NewPrincipal(u user.User) Principal {
	perms := user.RolePermissions[u.Role]
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	return Principal{
		UserID:       u.ID,
		EmployeeID:   u.EmployeeID,
		Role:         string(u.Role),
		SectionID:    u.SectionID,
		DepartmentID: u.DepartmentID,
		Permissions:  names,
	}
}

type TokenResponse struct {
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresIn  int64     `json:"access_token_expires_in"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresIn int64     `json:"refresh_token_expires_in"`
	Principal             Principal `json:"principal"`
}

type AccessTokenResponse struct {
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresIn int64     `json:"access_token_expires_in"`
	Principal            Principal `json:"principal"`
}
