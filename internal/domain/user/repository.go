package user

import "context"

// UserRepository holds login accounts. Organisational data lives on the employee.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, newUser User) (User, error)

	// LinkGoogleAccount attaches googleID to the existing account registered under email.
	LinkGoogleAccount(ctx context.Context, googleID string, email string) (User, error)
	// UpdateRole keeps the account role in step with the employee's workflow role.
	UpdateRole(ctx context.Context, userID string, role Role) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
