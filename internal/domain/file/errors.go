package file

import "errors"

var (
	ErrInvalidFileType  = errors.New("file type is not allowed")
	ErrFileTooLarge     = errors.New("file exceeds the maximum upload size")
	ErrFileRequired     = errors.New("file is required")
	ErrAvatarNotFound   = errors.New("employee has no avatar")
	ErrEvidenceNotFound = errors.New("kpi value has no evidence attached")
)
