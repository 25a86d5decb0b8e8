package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ArtifactStore keeps rendered report PDFs. Files are namespaced by clinic so
// that one clinic can never open another clinic's artifact by name.
type ArtifactStore interface {
	// Save writes data under filename, replacing any previous content
	Save(ctx context.Context, clinicID uuid.UUID, filename string, data []byte) error
	// Open returns the artifact; a missing file is a not-found domain error
	Open(ctx context.Context, clinicID uuid.UUID, filename string) (io.ReadCloser, error)
	// Delete removes the artifact; a missing file is not an error
	Delete(ctx context.Context, clinicID uuid.UUID, filename string) error
}

// StoredArtifact describes one artifact found in a store
type StoredArtifact struct {
	ClinicID   uuid.UUID
	Filename   string
	Size       int64
	ModifiedAt time.Time
}

// ArtifactLister is implemented by stores that can enumerate their content.
// Entries that do not look like {clinic_id}/{name}.pdf are skipped.
type ArtifactLister interface {
	List(ctx context.Context) ([]StoredArtifact, error)
}

// ValidateArtifactName accepts plain "*.pdf" base names only.
func ValidateArtifactName(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || containsDotDot(filename) ||
		strings.ContainsAny(filename, `/\`) || !strings.HasSuffix(filename, ".pdf") {
		return shared.NewValidationError("invalid report file name")
	}
	return nil
}

// ArtifactKey is the storage key of an artifact: {clinic_id}/{filename}.
func ArtifactKey(clinicID uuid.UUID, filename string) string {
	return clinicID.String() + "/" + filename
}

// ParseArtifactKey splits a storage key produced by ArtifactKey.
func ParseArtifactKey(key string) (uuid.UUID, string, bool) {
	rawClinic, filename, ok := strings.Cut(key, "/")
	if !ok {
		return uuid.Nil, "", false
	}
	clinicID, err := uuid.Parse(rawClinic)
	if err != nil || clinicID == uuid.Nil {
		return uuid.Nil, "", false
	}
	if ValidateArtifactName(filename) != nil {
		return uuid.Nil, "", false
	}
	return clinicID, filename, true
}

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the root directory for PDF storage
	// Default: reports
	BasePath string
	// Logger for operations
	Logger *zap.Logger
}

// FileSystemStorage stores PDFs on the local file system under
// {base}/{clinic_id}/{filename}.
type FileSystemStorage struct {
	basePath string
	logger   *zap.Logger
}

// NewFileSystemStorage creates a new file system based PDF storage
func NewFileSystemStorage(config *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config == nil {
		config = &FileSystemStorageConfig{}
	}
	basePath := config.BasePath
	if basePath == "" {
		basePath = "reports"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, shared.NewStoreError(fmt.Sprintf("create storage directory %s", basePath), err)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemStorage{basePath: basePath, logger: logger}, nil
}

// Save writes the PDF, creating the clinic directory on first use.
func (s *FileSystemStorage) Save(ctx context.Context, clinicID uuid.UUID, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return shared.NewStoreError("save artifact", err)
	}
	if len(data) == 0 {
		return shared.NewValidationError("PDF data is empty")
	}
	fullPath, err := s.resolve(clinicID, filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return shared.NewStoreError("create clinic directory", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return shared.NewStoreError("write artifact", err)
	}
	s.logger.Info("PDF stored",
		zap.String("path", fullPath),
		zap.Int("size", len(data)))
	return nil
}

// Open opens the PDF for reading.
func (s *FileSystemStorage) Open(ctx context.Context, clinicID uuid.UUID, filename string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.NewStoreError("open artifact", err)
	}
	fullPath, err := s.resolve(clinicID, filename)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, shared.NewNotFoundError("report file")
		}
		return nil, shared.NewStoreError("open artifact", err)
	}
	return file, nil
}

// Delete removes a PDF file
func (s *FileSystemStorage) Delete(ctx context.Context, clinicID uuid.UUID, filename string) error {
	if err := ctx.Err(); err != nil {
		return shared.NewStoreError("delete artifact", err)
	}
	fullPath, err := s.resolve(clinicID, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // Already deleted, not an error
		}
		return shared.NewStoreError("delete artifact", err)
	}
	s.logger.Info("PDF deleted", zap.String("path", fullPath))
	return nil
}

// List walks {base}/{clinic_id}/*.pdf.
func (s *FileSystemStorage) List(ctx context.Context) ([]StoredArtifact, error) {
	clinics, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, shared.NewStoreError("list clinic directories", err)
	}
	var out []StoredArtifact
	for _, dir := range clinics {
		if err := ctx.Err(); err != nil {
			return nil, shared.NewStoreError("list artifacts", err)
		}
		if !dir.IsDir() {
			continue
		}
		clinicID, err := uuid.Parse(dir.Name())
		if err != nil || clinicID == uuid.Nil {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.basePath, dir.Name()))
		if err != nil {
			return nil, shared.NewStoreError("list artifacts", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || ValidateArtifactName(entry.Name()) != nil {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				// removed between ReadDir and Info
				continue
			}
			out = append(out, StoredArtifact{
				ClinicID:   clinicID,
				Filename:   entry.Name(),
				Size:       info.Size(),
				ModifiedAt: info.ModTime(),
			})
		}
	}
	return out, nil
}

// resolve maps (clinic, filename) to an absolute path and verifies it stays
// under the base directory.
func (s *FileSystemStorage) resolve(clinicID uuid.UUID, filename string) (string, error) {
	if clinicID == uuid.Nil {
		return "", shared.NewValidationError("clinic is required")
	}
	if err := ValidateArtifactName(filename); err != nil {
		s.logger.Warn("blocked potentially malicious path", zap.String("filename", filename))
		return "", err
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", shared.NewStoreError("resolve base path", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.basePath, clinicID.String(), filename))
	if err != nil {
		return "", shared.NewStoreError("resolve file path", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked",
			zap.String("absPath", absPath),
			zap.String("absBase", absBase))
		return "", shared.NewValidationError("invalid report file name")
	}
	return absPath, nil
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	return slices.Contains(parts, "..")
}

// Ensure FileSystemStorage implements ArtifactStore
var (
	_ ArtifactStore  = (*FileSystemStorage)(nil)
	_ ArtifactLister = (*FileSystemStorage)(nil)
)
