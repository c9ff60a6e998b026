package user

import "errors"

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrUserEmailExists         = errors.New("email already registered")
	ErrInvalidOAuthProvider    = errors.New("invalid oauth provider")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrForbiddenStage          = errors.New("not authorized to act at this approval stage")
	ErrNotOwner                = errors.New("only the owning employee may perform this action")
	ErrEmployeeProfileRequired = errors.New("an employee profile is required for this action")
)
