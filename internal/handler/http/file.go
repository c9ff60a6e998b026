package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/file"
	"github.com/cmlabs-hris/kpi-backend-go/internal/handler/http/response"
)

type FileHandler interface {
	UploadAvatar(w http.ResponseWriter, r *http.Request)
	GetAvatar(w http.ResponseWriter, r *http.Request)
	UploadEvidence(w http.ResponseWriter, r *http.Request)
	GetEvidence(w http.ResponseWriter, r *http.Request)
}

type fileHandlerImpl struct {
	fileService file.FileService
}

func NewFileHandler(fileService file.FileService) FileHandler {
	return &fileHandlerImpl{
		fileService: fileService,
	}
}

// uploadFrom reads the "file" part of a multipart body. The caller closes it.
func uploadFrom(w http.ResponseWriter, r *http.Request) (file.UploadRequest, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, file.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(file.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.HandleError(w, file.ErrFileTooLarge)
			return file.UploadRequest{}, nil, false
		}
		slog.Error("Failed to parse multipart form", "error", err)
		response.BadRequest(w, "Failed to parse form data", nil)
		return file.UploadRequest{}, nil, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			response.HandleError(w, file.ErrFileRequired)
			return file.UploadRequest{}, nil, false
		}
		slog.Error("Failed to get file from form", "error", err)
		response.BadRequest(w, "Invalid file upload", nil)
		return file.UploadRequest{}, nil, false
	}

	req := file.UploadRequest{File: f, Filename: header.Filename, Size: header.Size}
	return req, func() { f.Close() }, true
}

// UploadAvatar handles PUT /employees/me/avatar
func (h *fileHandlerImpl) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, done, ok := uploadFrom(w, r)
	if !ok {
		return
	}
	defer done()

	result, err := h.fileService.UploadAvatar(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Avatar updated", result)
}

// GetAvatar handles GET /employees/{id}/avatar
func (h *fileHandlerImpl) GetAvatar(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.fileService.GetAvatarURL(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// UploadEvidence handles POST /kpi-values/{id}/evidence
func (h *fileHandlerImpl) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, done, ok := uploadFrom(w, r)
	if !ok {
		return
	}
	defer done()

	result, err := h.fileService.UploadEvidence(r.Context(), actor, id, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Evidence attached", result)
}

// GetEvidence handles GET /kpi-values/{id}/evidence
func (h *fileHandlerImpl) GetEvidence(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.fileService.GetEvidenceURL(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
