package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/enginedb/internal/core/models"
	"github.com/zeusync/enginedb/internal/core/observability/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStore(t *testing.T, mutate func(*Config), opts ...Option) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WorkDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewStore(cfg, opts...)
	require.NoError(t, err)
	return s
}

func observedLogger() (log.Log, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return log.Wrap(zap.New(core), log.LevelDebug), logs
}

func TestCreateListDeleteScenario(t *testing.T) {
	s := newTestStore(t, nil)

	created, err := s.CreateEntity("Player")
	require.NoError(t, err)

	list, err := s.ListEntities()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Player", list[0].Name)
	assert.Equal(t, created.ID(), list[0].ID())
	assert.Equal(t, models.Tags{}, list[0].Tags)
	assert.Empty(t, list[0].Behaviours())

	require.NoError(t, s.DeleteEntity(created.ID()))

	list, err = s.ListEntities()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateWritesRecordAndEmptyMetadata(t *testing.T) {
	s := newTestStore(t, nil)
	e, err := s.CreateEntity("Crate")
	require.NoError(t, err)

	rec, err := os.ReadFile(s.Paths().RecordPath(e.ID()))
	require.NoError(t, err)
	assert.Len(t, rec, models.RecordSize)

	meta, err := os.ReadFile(s.Paths().MetadataPath(e.ID()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"scripts":[],"fields":{}}`, string(meta))

	assert.Equal(t, filepath.Join(s.Paths().HiddenRoot, e.ID().String()+".sEntity"), s.Paths().RecordPath(e.ID()))
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t, nil)
	e, err := s.CreateEntity("Temp")
	require.NoError(t, err)

	require.NoError(t, s.DeleteEntity(e.ID()))
	require.NoError(t, s.DeleteEntity(e.ID()))

	assert.NoFileExists(t, s.Paths().RecordPath(e.ID()))
	assert.NoFileExists(t, s.Paths().MetadataPath(e.ID()))

	// never existed
	assert.NoError(t, s.DeleteEntity(uuid.New()))
}

func TestCreateEntityIDsAreDistinct(t *testing.T) {
	s := newTestStore(t, nil)
	seen := make(map[uuid.UUID]struct{})
	for i := 0; i < 50; i++ {
		e, err := s.CreateEntity("e")
		require.NoError(t, err)
		seen[e.ID()] = struct{}{}
	}
	assert.Len(t, seen, 50)

	list, err := s.ListEntities()
	require.NoError(t, err)
	assert.Len(t, list, 50)
}

func TestListedIDsAreRegistered(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewStore(Config{WorkDir: dir})
	require.NoError(t, err)
	e, err := writer.CreateEntity("Saved")
	require.NoError(t, err)

	alloc := models.NewIDAllocator()
	reader, err := NewStore(Config{WorkDir: dir}, WithIDAllocator(alloc))
	require.NoError(t, err)
	require.False(t, alloc.Contains(e.ID()))

	_, err = reader.ListEntities()
	require.NoError(t, err)
	assert.True(t, alloc.Contains(e.ID()))
}

func TestRefreshFiresAfterMutations(t *testing.T) {
	s := newTestStore(t, nil)
	count := 0
	sub, err := s.OnRefresh(func() { count++ })
	require.NoError(t, err)

	e, err := s.CreateEntity("A")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.Metadata().SetField(e.ID(), "speed", 2))
	assert.Equal(t, 2, count)

	require.NoError(t, s.Metadata().AddScript(e.ID(), models.ScriptRef{Name: "Rotator", Path: "Rotator.go"}))
	assert.Equal(t, 3, count)

	// rejected mutation does not notify
	err = s.Metadata().AddScript(e.ID(), models.ScriptRef{Name: "Rotator", Path: "Rotator.go"})
	require.ErrorIs(t, err, ErrScriptAttached)
	assert.Equal(t, 3, count)

	require.NoError(t, s.DeleteEntity(e.ID()))
	assert.Equal(t, 4, count)

	// reads do not notify
	_, err = s.ListEntities()
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.NoError(t, sub.Cancel())
	_, err = s.CreateEntity("B")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRefreshSubscriberMayCallBackIntoStore(t *testing.T) {
	s := newTestStore(t, nil)
	var seen []int
	_, err := s.OnRefresh(func() {
		list, err := s.ListEntities()
		require.NoError(t, err)
		seen = append(seen, len(list))
	})
	require.NoError(t, err)

	_, err = s.CreateEntity("A")
	require.NoError(t, err)
	_, err = s.CreateEntity("B")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestListEntitiesAbortsOnCorruptRecord(t *testing.T) {
	s := newTestStore(t, nil)
	_, err := s.CreateEntity("Good")
	require.NoError(t, err)
	bad := filepath.Join(s.Paths().HiddenRoot, uuid.New().String()+RecordExt)
	require.NoError(t, os.WriteFile(bad, []byte("short"), 0o644))

	_, err = s.ListEntities()
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestListEntitiesSkipsCorruptRecordWhenConfigured(t *testing.T) {
	logger, logs := observedLogger()
	s := newTestStore(t, func(c *Config) { c.ListPolicy = SkipCorrupt }, WithLogger(logger))
	good, err := s.CreateEntity("Good")
	require.NoError(t, err)
	bad := filepath.Join(s.Paths().HiddenRoot, uuid.New().String()+RecordExt)
	require.NoError(t, os.WriteFile(bad, make([]byte, models.RecordSize+1), 0o644))

	list, err := s.ListEntities()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, good.ID(), list[0].ID())
	assert.Equal(t, 1, logs.FilterMessage("skipping unreadable entity record").Len())
}

func TestEntitiesSequenceStopsEarly(t *testing.T) {
	s := newTestStore(t, nil)
	for i := 0; i < 3; i++ {
		_, err := s.CreateEntity("e")
		require.NoError(t, err)
	}
	n := 0
	for e, err := range s.Entities() {
		require.NoError(t, err)
		require.NotNil(t, e)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestSaveAndLoadEntity(t *testing.T) {
	s := newTestStore(t, nil)
	e, err := s.CreateEntity("Old")
	require.NoError(t, err)

	e.Name = "New"
	e.Tags = models.Tags{models.TagEnemy, models.TagNone, models.TagNone, models.TagTrigger}
	require.NoError(t, s.SaveEntity(e))

	got, err := s.LoadEntity(e.ID())
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, e.Tags, got.Tags)

	_, err = s.LoadEntity(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	ghost := models.RestoreEntity("ghost", uuid.New(), models.Tags{}, nil)
	assert.ErrorIs(t, s.SaveEntity(ghost), ErrNotFound)
}

func TestLongNameIsTruncatedWithWarning(t *testing.T) {
	logger, logs := observedLogger()
	s := newTestStore(t, nil, WithLogger(logger))

	e, err := s.CreateEntity("ThisNameIsWayTooLongToFit")
	require.NoError(t, err)
	assert.Equal(t, "ThisNameIsWayTooLongToFit", e.Name, "in-memory name is untouched")

	got, err := s.LoadEntity(e.ID())
	require.NoError(t, err)
	assert.Equal(t, "ThisNameIsWa", got.Name)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "ThisNameIsWa", warnings[0].ContextMap()["stored"])
}

func TestListScripts(t *testing.T) {
	s := newTestStore(t, nil)
	root := s.Paths().VisibleRoot
	write := func(rel string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("package scripts\n"), 0o644))
	}
	write("Player.go")
	write("sub/Enemy.go")
	write("readme.txt")
	write(".cache/Ignored.go")

	scripts, err := s.ListScripts()
	require.NoError(t, err)
	assert.Equal(t, []models.ScriptRef{
		{Name: "Player", Path: "Player.go"},
		{Name: "Enemy", Path: "sub/Enemy.go"},
	}, scripts)
}

func TestNewStoreResolvesRoots(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Config{WorkDir: dir, AssetsDir: "content", HiddenDir: ".db"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "content"), s.Paths().VisibleRoot)
	assert.Equal(t, filepath.Join(dir, ".db"), s.Paths().HiddenRoot)
	assert.DirExists(t, s.Paths().CacheRoot())

	_, err = NewStore(Config{WorkDir: dir, AssetsDir: "same", HiddenDir: "same"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore(Config{WorkDir: dir, ListPolicy: "retry"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
