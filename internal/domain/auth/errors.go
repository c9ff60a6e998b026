package auth

import "errors"

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrRefreshTokenRevoked = errors.New("refresh token has been revoked")
	// ErrAccountRemoved is returned when a refresh token outlives its user.
	ErrAccountRemoved     = errors.New("account no longer exists")
	ErrAccountNotProvided = errors.New("no account is registered for this google email")
)
