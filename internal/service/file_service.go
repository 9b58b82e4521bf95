package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"path/filepath"
	"strings"

	"nexify/internal/models"
	"nexify/internal/observability"
	"nexify/internal/repository"
	"nexify/internal/storage"

	"github.com/google/uuid"
)

const (
	DefaultUploadMaxSizeMB = 10
	uploadPrefixLength     = 15
	uploadPrefixAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// UploadInput is one file received from a client.
type UploadInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// FileService validates uploads, stores them and records File rows.
type FileService struct {
	files         repository.FileRepository
	users         repository.UserRepository
	store         storage.FileStorage
	allowed       map[string]bool
	maxUploadSize int64
}

// NewFileService returns a new FileService. allowedExtensions are compared
// case-insensitively without the leading dot.
func NewFileService(
	files repository.FileRepository,
	users repository.UserRepository,
	store storage.FileStorage,
	allowedExtensions []string,
	maxUploadSizeMB int,
) *FileService {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = true
		}
	}
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultUploadMaxSizeMB
	}
	return &FileService{
		files:         files,
		users:         users,
		store:         store,
		allowed:       allowed,
		maxUploadSize: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// CheckUpload rejects disallowed extensions, empty files and oversized files.
// It performs no writes.
func (s *FileService) CheckUpload(in UploadInput) error {
	ext := models.FileExtension(in.Filename)
	if !s.allowed[ext] {
		return models.ErrFileExtensionNotAllowed(ext)
	}
	if len(in.Content) == 0 {
		return models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSize {
		return models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSize/(1024*1024)))
	}
	return nil
}

// Store saves the bytes under <username>/<random15>_<filename> and returns
// an unsaved File record pointing at them.
func (s *FileService) Store(ctx context.Context, uploader *models.User, in UploadInput) (*models.File, error) {
	if err := s.CheckUpload(in); err != nil {
		return nil, err
	}

	prefix, err := randomString(uploadPrefixLength)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	name := filepath.Base(filepath.Clean("/" + in.Filename))
	key := uploader.Username + "/" + prefix + "_" + name

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(in.Content)
	}

	url, err := s.store.Save(ctx, key, bytes.NewReader(in.Content), contentType)
	if err != nil {
		observability.GlobalLogger.ErrorContext(ctx, "file storage save failed", "key", key, "error", err)
		return nil, models.NewInternalError(err)
	}

	meta, err := json.Marshal(map[string]interface{}{
		"name":         name,
		"size":         len(in.Content),
		"content_type": contentType,
		"path":         key,
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return models.NewFile(uploader.ID, url, string(meta)), nil
}

// Upload stores a standalone file for uploaderID.
func (s *FileService) Upload(ctx context.Context, uploaderID uuid.UUID, in UploadInput) (*models.File, error) {
	if err := s.CheckUpload(in); err != nil {
		return nil, err
	}
	uploader, err := s.users.GetByID(ctx, uploaderID)
	if err != nil {
		return nil, err
	}
	file, err := s.Store(ctx, uploader, in)
	if err != nil {
		return nil, err
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(uploadPrefixAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = uploadPrefixAlphabet[idx.Int64()]
	}
	return string(out), nil
}
