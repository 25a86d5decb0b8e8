package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/printing"
)

// Ensure MemoryArtifactStore implements printing.ArtifactStore
var (
	_ printing.ArtifactStore  = (*MemoryArtifactStore)(nil)
	_ printing.ArtifactLister = (*MemoryArtifactStore)(nil)
)

// MemoryArtifactStore keeps artifacts in process memory. It is meant for
// tests and local runs where nothing should touch the disk.
type MemoryArtifactStore struct {
	mu    sync.RWMutex
	files map[string]memoryObject
	now   func() time.Time
}

type memoryObject struct {
	data     []byte
	modified time.Time
}

// NewMemoryArtifactStore creates an empty store.
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{files: make(map[string]memoryObject), now: time.Now}
}

// WithClock replaces the clock used to stamp saved artifacts.
func (s *MemoryArtifactStore) WithClock(now func() time.Time) *MemoryArtifactStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Save stores a copy of data.
func (s *MemoryArtifactStore) Save(_ context.Context, clinicID uuid.UUID, filename string, data []byte) error {
	if len(data) == 0 {
		return shared.NewValidationError("PDF data is empty")
	}
	key, err := memoryKey(clinicID, filename)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = memoryObject{data: bytes.Clone(data), modified: s.now()}
	return nil
}

// Open returns a reader over the stored bytes.
func (s *MemoryArtifactStore) Open(_ context.Context, clinicID uuid.UUID, filename string) (io.ReadCloser, error) {
	key, err := memoryKey(clinicID, filename)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.files[key]
	if !ok {
		return nil, shared.NewNotFoundError("report file")
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes the artifact if present.
func (s *MemoryArtifactStore) Delete(_ context.Context, clinicID uuid.UUID, filename string) error {
	key, err := memoryKey(clinicID, filename)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

// List returns every stored artifact in no particular order.
func (s *MemoryArtifactStore) List(ctx context.Context) ([]printing.StoredArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.NewStoreError("list artifacts", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]printing.StoredArtifact, 0, len(s.files))
	for key, obj := range s.files {
		clinicID, filename, ok := printing.ParseArtifactKey(key)
		if !ok {
			continue
		}
		out = append(out, printing.StoredArtifact{
			ClinicID:   clinicID,
			Filename:   filename,
			Size:       int64(len(obj.data)),
			ModifiedAt: obj.modified,
		})
	}
	return out, nil
}

// Has reports whether the artifact exists.
func (s *MemoryArtifactStore) Has(clinicID uuid.UUID, filename string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[printing.ArtifactKey(clinicID, filename)]
	return ok
}

// Len returns the number of stored artifacts.
func (s *MemoryArtifactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func memoryKey(clinicID uuid.UUID, filename string) (string, error) {
	if clinicID == uuid.Nil {
		return "", shared.NewValidationError("clinic is required")
	}
	if err := printing.ValidateArtifactName(filename); err != nil {
		return "", err
	}
	return printing.ArtifactKey(clinicID, filename), nil
}
