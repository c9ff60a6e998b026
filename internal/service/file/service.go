package file

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"path"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/file"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/storage"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const (
	avatarMaxSide  = 512
	avatarQuality  = 85
	evidenceMaxImg = 300 * 1024
	evidenceMinImg = 50 * 1024
	urlExpiry      = 15 * time.Minute
)

var evidenceTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type FileServiceImpl struct {
	tx           database.Transactor
	storage      storage.FileStorage
	employeeRepo employee.EmployeeRepository
	valueRepo    kpi.ValueRepository
}

func NewFileService(
	tx database.Transactor,
	storage storage.FileStorage,
	employeeRepo employee.EmployeeRepository,
	valueRepo kpi.ValueRepository,
) file.FileService {
	return &FileServiceImpl{
		tx:           tx,
		storage:      storage,
		employeeRepo: employeeRepo,
		valueRepo:    valueRepo,
	}
}

// UploadAvatar stores the image as a JPEG no larger than avatarMaxSide on either side.
func (s *FileServiceImpl) UploadAvatar(ctx context.Context, actor user.Actor, req file.UploadRequest) (file.URLResponse, error) {
	if actor.EmployeeID == "" {
		return file.URLResponse{}, user.ErrEmployeeProfileRequired
	}
	if err := req.Validate(); err != nil {
		return file.URLResponse{}, err
	}
	if ext := req.Ext(); ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return file.URLResponse{}, file.ErrInvalidFileType
	}

	emp, err := s.employeeRepo.GetByID(ctx, actor.EmployeeID)
	if err != nil {
		return file.URLResponse{}, err
	}

	buffer, err := readLimited(req.File)
	if err != nil {
		return file.URLResponse{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(buffer))
	if err != nil {
		return file.URLResponse{}, file.ErrInvalidFileType
	}
	img = fitWithin(img, avatarMaxSide)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: avatarQuality}); err != nil {
		return file.URLResponse{}, fmt.Errorf("failed to encode avatar: %w", err)
	}

	key := path.Join("avatars", emp.ID, uuid.New().String()+".jpg")
	stored, err := s.storage.Upload(ctx, &out, int64(out.Len()), key, "image/jpeg")
	if err != nil {
		return file.URLResponse{}, fmt.Errorf("failed to upload avatar: %w", err)
	}
	if err := s.employeeRepo.UpdateAvatar(ctx, emp.ID, stored); err != nil {
		s.discard(ctx, stored)
		return file.URLResponse{}, err
	}
	if emp.AvatarPath != nil {
		s.discard(ctx, *emp.AvatarPath)
	}
	return s.url(ctx, stored)
}

func (s *FileServiceImpl) GetAvatarURL(ctx context.Context, actor user.Actor, employeeID string) (file.URLResponse, error) {
	emp, err := s.employeeRepo.GetByID(ctx, employeeID)
	if err != nil {
		return file.URLResponse{}, err
	}
	if emp.AvatarPath == nil {
		return file.URLResponse{}, file.ErrAvatarNotFound
	}
	return s.url(ctx, *emp.AvatarPath)
}

// UploadEvidence accepts documents and images. Images are recompressed to JPEG.
func (s *FileServiceImpl) UploadEvidence(ctx context.Context, actor user.Actor, valueID string, req file.UploadRequest) (file.URLResponse, error) {
	if err := req.Validate(); err != nil {
		return file.URLResponse{}, err
	}
	ext := req.Ext()
	contentType, ok := evidenceTypes[ext]
	if !ok {
		return file.URLResponse{}, file.ErrInvalidFileType
	}

	v, err := s.valueRepo.GetByID(ctx, valueID)
	if err != nil {
		return file.URLResponse{}, err
	}
	if err := checkEvidenceOwner(actor, v); err != nil {
		return file.URLResponse{}, err
	}

	buffer, err := readLimited(req.File)
	if err != nil {
		return file.URLResponse{}, err
	}
	if contentType == "image/jpeg" || contentType == "image/png" {
		buffer, err = compressImage(buffer, evidenceMaxImg, evidenceMinImg)
		if err != nil {
			return file.URLResponse{}, file.ErrInvalidFileType
		}
		ext, contentType = ".jpg", "image/jpeg"
	}

	key := path.Join("evidence", v.EmployeeID, v.ID, uuid.New().String()+ext)
	stored, err := s.storage.Upload(ctx, bytes.NewReader(buffer), int64(len(buffer)), key, contentType)
	if err != nil {
		return file.URLResponse{}, fmt.Errorf("failed to upload evidence: %w", err)
	}

	var previous *string
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.valueRepo.GetByIDForUpdate(txCtx, valueID)
		if err != nil {
			return err
		}
		// status may have moved on while the file was uploading
		if err := checkEvidenceOwner(actor, locked); err != nil {
			return err
		}
		previous = locked.EvidencePath
		return s.valueRepo.UpdateEvidence(txCtx, valueID, stored)
	})
	if err != nil {
		s.discard(ctx, stored)
		return file.URLResponse{}, err
	}
	if previous != nil {
		s.discard(ctx, *previous)
	}
	return s.url(ctx, stored)
}

func (s *FileServiceImpl) GetEvidenceURL(ctx context.Context, actor user.Actor, valueID string) (file.URLResponse, error) {
	v, err := s.valueRepo.GetByID(ctx, valueID)
	if err != nil {
		return file.URLResponse{}, err
	}
	owner := user.Owner{EmployeeID: v.EmployeeID, SectionID: v.SectionID, DepartmentID: v.DepartmentID}
	if !user.CanView(actor, owner) {
		return file.URLResponse{}, user.ErrInsufficientPermissions
	}
	if v.EvidencePath == nil {
		return file.URLResponse{}, file.ErrEvidenceNotFound
	}
	return s.url(ctx, *v.EvidencePath)
}

func checkEvidenceOwner(actor user.Actor, v kpi.Value) error {
	if v.EmployeeID != actor.EmployeeID {
		return user.ErrNotOwner
	}
	if !v.EvidenceEditable() {
		return kpi.ErrEvidenceLocked
	}
	return nil
}

func (s *FileServiceImpl) url(ctx context.Context, key string) (file.URLResponse, error) {
	u, err := s.storage.GetURL(ctx, key, urlExpiry)
	if err != nil {
		return file.URLResponse{}, fmt.Errorf("failed to build file url: %w", err)
	}
	return file.URLResponse{Path: key, URL: u, ExpiresIn: int64(urlExpiry.Seconds())}, nil
}

// discard removes a file that is no longer referenced. Failures only leave an orphan behind.
func (s *FileServiceImpl) discard(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete stale file", "path", key, "error", err)
	}
}

func readLimited(r io.Reader) ([]byte, error) {
	buffer, err := io.ReadAll(io.LimitReader(r, file.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(buffer) > file.MaxUploadSize {
		return nil, file.ErrFileTooLarge
	}
	return buffer, nil
}

// fitWithin scales img down so neither side exceeds maxSide.
func fitWithin(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	if w >= h {
		h = int(math.Round(float64(h) * float64(maxSide) / float64(w)))
		w = maxSide
	} else {
		w = int(math.Round(float64(w) * float64(maxSide) / float64(h)))
		h = maxSide
	}
	return resizeImage(img, max(w, 1), max(h, 1))
}

// compressImage re-encodes buffer as JPEG, lowering quality and then resolution
// until it fits under maxSize. Buffers already inside [minSize, maxSize] are
// still re-encoded so PNGs come out as JPEG.
func compressImage(buffer []byte, maxSize, minSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(buffer))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var compressed []byte
	for quality := 85; quality >= 50; quality -= 5 {
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		compressed = buf.Bytes()
		if len(compressed) <= maxSize {
			return compressed, nil
		}
	}

	// Still too large: shrink towards the middle of the range.
	target := (maxSize + minSize) / 2
	ratio := math.Sqrt(float64(target) / float64(len(compressed)))
	b := img.Bounds()
	resized := resizeImage(img, max(int(float64(b.Dx())*ratio), 1), max(int(float64(b.Dy())*ratio), 1))

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: 70}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

func resizeImage(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
