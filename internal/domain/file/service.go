package file

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

type FileService interface {
	// UploadAvatar replaces the caller's own avatar.
	UploadAvatar(ctx context.Context, actor user.Actor, req UploadRequest) (URLResponse, error)
	GetAvatarURL(ctx context.Context, actor user.Actor, employeeID string) (URLResponse, error)

	// UploadEvidence attaches a supporting document to a kpi value the caller owns.
	UploadEvidence(ctx context.Context, actor user.Actor, valueID string, req UploadRequest) (URLResponse, error)
	GetEvidenceURL(ctx context.Context, actor user.Actor, valueID string) (URLResponse, error)
}
