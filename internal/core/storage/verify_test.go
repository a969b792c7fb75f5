package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCleanStore(t *testing.T) {
	s := newTestStore(t, nil)
	for i := 0; i < 5; i++ {
		_, err := s.CreateEntity("e")
		require.NoError(t, err)
	}
	_, err := s.Blobs().Put(KindTexture, []byte("tex"))
	require.NoError(t, err)

	report, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report.Problems)
	assert.Equal(t, 5, report.Records)
	assert.Equal(t, 5, report.Metadata)
	assert.Equal(t, 1, report.Blobs)
}

func TestVerifyFindsProblems(t *testing.T) {
	s := newTestStore(t, nil)

	orphanRecord, err := s.CreateEntity("noMeta")
	require.NoError(t, err)
	require.NoError(t, os.Remove(s.Paths().MetadataPath(orphanRecord.ID())))

	orphanMeta, err := s.CreateEntity("noRecord")
	require.NoError(t, err)
	require.NoError(t, os.Remove(s.Paths().RecordPath(orphanMeta.ID())))

	corrupt, err := s.CreateEntity("corrupt")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Paths().RecordPath(corrupt.ID()), []byte{1, 2, 3}, 0o644))
	require.NoError(t, os.WriteFile(s.Paths().MetadataPath(corrupt.ID()), []byte("{"), 0o644))

	src, err := s.CreateEntity("copied")
	require.NoError(t, err)
	data, err := os.ReadFile(s.Paths().RecordPath(src.ID()))
	require.NoError(t, err)
	other := uuid.New()
	require.NoError(t, os.WriteFile(s.Paths().RecordPath(other), data, 0o644))
	require.NoError(t, os.WriteFile(s.Paths().MetadataPath(other), []byte(`{}`), 0o644))

	k, err := s.Blobs().Put(KindMesh, []byte("mesh"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Paths().CacheRoot(), k.String()), []byte("changed"), 0o644))

	report, err := s.Verify(context.Background())
	require.NoError(t, err)

	kinds := make(map[ProblemKind][]string)
	for _, p := range report.Problems {
		kinds[p.Kind] = append(kinds[p.Kind], p.Path)
	}
	assert.Equal(t, []string{orphanRecord.ID().String() + RecordExt}, kinds[ProblemOrphanRecord])
	assert.Equal(t, []string{orphanMeta.ID().String() + MetadataExt}, kinds[ProblemOrphanMetadata])
	assert.Equal(t, []string{corrupt.ID().String() + RecordExt}, kinds[ProblemCorruptRecord])
	assert.Equal(t, []string{corrupt.ID().String() + MetadataExt}, kinds[ProblemCorruptMetadata])
	assert.Equal(t, []string{other.String() + RecordExt}, kinds[ProblemIDMismatch])
	assert.Equal(t, []string{"cache/" + k.String()}, kinds[ProblemCorruptBlob])
	assert.False(t, report.OK())
}

func TestVerifyHonoursCancellation(t *testing.T) {
	s := newTestStore(t, nil)
	_, err := s.CreateEntity("e")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Verify(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
