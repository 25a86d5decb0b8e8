package printing

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*FileSystemStorage, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewFileSystemStorage(&FileSystemStorageConfig{BasePath: dir})
	require.NoError(t, err)
	return storage, dir
}

func TestNewFileSystemStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	storage, err := NewFileSystemStorage(&FileSystemStorageConfig{BasePath: dir})
	require.NoError(t, err)
	assert.Equal(t, dir, storage.basePath)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileSystemStorage_SaveOpenDelete(t *testing.T) {
	storage, dir := newTestStorage(t)
	ctx := context.Background()
	clinicID := uuid.New()
	name := "Jane_Doe_UH001_xray_2026-10-19T09-30-00.pdf"

	require.NoError(t, storage.Save(ctx, clinicID, name, samplePDF))
	_, err := os.Stat(filepath.Join(dir, clinicID.String(), name))
	require.NoError(t, err)

	rc, err := storage.Open(ctx, clinicID, name)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, samplePDF, data)

	require.NoError(t, storage.Delete(ctx, clinicID, name))
	_, err = storage.Open(ctx, clinicID, name)
	assert.True(t, shared.IsNotFound(err))

	// deleting twice is fine
	assert.NoError(t, storage.Delete(ctx, clinicID, name))
}

func TestFileSystemStorage_ClinicIsolation(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	require.NoError(t, storage.Save(ctx, owner, "a.pdf", samplePDF))

	_, err := storage.Open(ctx, other, "a.pdf")
	assert.True(t, shared.IsNotFound(err))
}

func TestFileSystemStorage_RejectsBadNames(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()
	clinicID := uuid.New()

	for _, name := range []string{"", "../secret.pdf", "a/b.pdf", `..\x.pdf`, "notes.txt", "..", "/etc/passwd"} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, storage.Save(ctx, clinicID, name, samplePDF), shared.ErrInvalidInput)
			_, err := storage.Open(ctx, clinicID, name)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
			assert.ErrorIs(t, storage.Delete(ctx, clinicID, name), shared.ErrInvalidInput)
		})
	}
}

func TestFileSystemStorage_Validation(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	assert.ErrorIs(t, storage.Save(ctx, uuid.Nil, "a.pdf", samplePDF), shared.ErrInvalidInput)
	assert.ErrorIs(t, storage.Save(ctx, uuid.New(), "a.pdf", nil), shared.ErrInvalidInput)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := storage.Save(cancelled, uuid.New(), "a.pdf", samplePDF)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArtifactKey(t *testing.T) {
	id := uuid.MustParse("7b1d8f7e-3a52-4c1e-9f41-2a6e0d4d1c11")
	assert.Equal(t, "7b1d8f7e-3a52-4c1e-9f41-2a6e0d4d1c11/r.pdf", ArtifactKey(id, "r.pdf"))
}

func TestParseArtifactKey(t *testing.T) {
	id := uuid.MustParse("7b1d8f7e-3a52-4c1e-9f41-2a6e0d4d1c11")

	clinicID, name, ok := ParseArtifactKey(ArtifactKey(id, "r.pdf"))
	require.True(t, ok)
	assert.Equal(t, id, clinicID)
	assert.Equal(t, "r.pdf", name)

	for _, key := range []string{
		"r.pdf",
		"not-a-uuid/r.pdf",
		uuid.Nil.String() + "/r.pdf",
		id.String() + "/notes.txt",
		id.String() + "/nested/r.pdf",
	} {
		_, _, ok := ParseArtifactKey(key)
		assert.False(t, ok, key)
	}
}

func TestFileSystemStorage_List(t *testing.T) {
	storage, dir := newTestStorage(t)
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, storage.Save(ctx, first, "a.pdf", samplePDF))
	require.NoError(t, storage.Save(ctx, first, "b.pdf", samplePDF))
	require.NoError(t, storage.Save(ctx, second, "c.pdf", samplePDF))
	require.NoError(t, os.WriteFile(filepath.Join(dir, first.String(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lost+found"), 0o755))

	artifacts, err := storage.List(ctx)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	byName := map[string]StoredArtifact{}
	for _, a := range artifacts {
		byName[a.Filename] = a
	}
	assert.Equal(t, first, byName["a.pdf"].ClinicID)
	assert.Equal(t, second, byName["c.pdf"].ClinicID)
	assert.Equal(t, int64(len(samplePDF)), byName["b.pdf"].Size)
	assert.False(t, byName["b.pdf"].ModifiedAt.IsZero())
}
