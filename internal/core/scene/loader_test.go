package scene

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/enginedb/internal/core/models"
	"github.com/zeusync/enginedb/internal/core/observability/log"
	"github.com/zeusync/enginedb/internal/core/rehydrate"
	"github.com/zeusync/enginedb/internal/core/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type spinner struct{ Speed int64 }

func (s *spinner) BehaviourName() string { return "Spinner" }

func (s *spinner) ApplyField(name string, value any) bool {
	if v, ok := value.(int64); ok && name == "speed" {
		s.Speed = v
		return true
	}
	return false
}

func newFixture(t *testing.T, policy storage.ListPolicy) (*storage.Store, *Loader, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := log.Wrap(zap.New(core), log.LevelDebug)

	cfg := storage.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	cfg.ListPolicy = policy
	store, err := storage.NewStore(cfg, storage.WithLogger(logger))
	require.NoError(t, err)

	reg := rehydrate.NewTypeRegistry()
	reg.MustRegister("Spinner", func() models.Behaviour { return &spinner{Speed: 1} })
	return store, NewLoader(store, rehydrate.New(reg, rehydrate.WithLogger(logger))), logs
}

func TestLoadRehydratesBehaviours(t *testing.T) {
	store, loader, _ := newFixture(t, storage.AbortOnCorrupt)

	e, err := store.CreateEntity("Wheel")
	require.NoError(t, err)
	require.NoError(t, store.Metadata().AddScript(e.ID(), models.ScriptRef{Name: "Spinner", Path: "Spinner.go"}))
	require.NoError(t, store.Metadata().SetField(e.ID(), "speed", 12))
	_, err = store.CreateEntity("Plain")
	require.NoError(t, err)

	entities, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, entities, 2)

	byName := map[string]*models.Entity{}
	for _, ent := range entities {
		byName[ent.Name] = ent
	}
	b, ok := byName["Wheel"].Behaviour("Spinner")
	require.True(t, ok)
	assert.Equal(t, int64(12), b.(*spinner).Speed)
	assert.Empty(t, byName["Plain"].Behaviours())
}

func TestLoadWithoutMetadataWarns(t *testing.T) {
	store, loader, logs := newFixture(t, storage.AbortOnCorrupt)
	e, err := store.CreateEntity("Bare")
	require.NoError(t, err)
	require.NoError(t, os.Remove(store.Paths().MetadataPath(e.ID())))

	entities, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Empty(t, entities[0].Behaviours())
	assert.Equal(t, 1, logs.FilterMessage("entity has no metadata document").Len())
}

func TestLoadCorruptMetadata(t *testing.T) {
	store, loader, _ := newFixture(t, storage.AbortOnCorrupt)
	e, err := store.CreateEntity("Broken")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Paths().MetadataPath(e.ID()), []byte("{"), 0o644))

	_, err = loader.Load()
	assert.ErrorIs(t, err, storage.ErrCorruptMetadata)

	store, loader, logs := newFixture(t, storage.SkipCorrupt)
	e, err = store.CreateEntity("Broken")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Paths().MetadataPath(e.ID()), []byte("{"), 0o644))

	entities, err := loader.Load()
	require.NoError(t, err)
	assert.Len(t, entities, 1)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestWatchReloadsOnRefresh(t *testing.T) {
	store, loader, _ := newFixture(t, storage.AbortOnCorrupt)

	var counts []int
	sub, err := loader.Watch(func(entities []*models.Entity, err error) {
		require.NoError(t, err)
		counts = append(counts, len(entities))
	})
	require.NoError(t, err)

	_, err = store.CreateEntity("A")
	require.NoError(t, err)
	_, err = store.CreateEntity("B")
	require.NoError(t, err)
	require.NoError(t, sub.Cancel())
	_, err = store.CreateEntity("C")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, counts)
}
