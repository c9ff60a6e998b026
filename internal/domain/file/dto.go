package file

import (
	"io"
	"path/filepath"
	"strings"
)

// MaxUploadSize caps every multipart upload.
const MaxUploadSize = 5 << 20

type UploadRequest struct {
	File     io.Reader
	Filename string
	Size     int64
}

func (r UploadRequest) Ext() string {
	return strings.ToLower(filepath.Ext(r.Filename))
}

func (r UploadRequest) Validate() error {
	if r.File == nil || r.Filename == "" {
		return ErrFileRequired
	}
	if r.Size > MaxUploadSize {
		return ErrFileTooLarge
	}
	return nil
}

type URLResponse struct {
	Path      string `json:"path"`
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}
