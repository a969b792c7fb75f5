package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/enginedb/internal/config"
	"github.com/zeusync/enginedb/internal/core/events/bus"
	"github.com/zeusync/enginedb/internal/core/models"
	"github.com/zeusync/enginedb/internal/core/observability/log"
	"github.com/zeusync/enginedb/internal/core/rehydrate"
	"github.com/zeusync/enginedb/internal/core/scene"
	"github.com/zeusync/enginedb/internal/core/storage"
	"github.com/zeusync/enginedb/internal/server"
)

// App is the fully wired object graph used by the command line tools.
type App struct {
	Logger log.Log
	Store  *storage.Store
	Loader *scene.Loader
	Server *server.Server
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideEventBus,
	ProvideIDAllocator,
	ProvideStore,
	ProvideRehydrator,
	ProvideLoader,
	ProvideServer,
	wire.Struct(new(App), "*"),
)

// ProvideLogger builds the process logger; the cleanup flushes it.
func ProvideLogger(cfg config.Config) (log.Log, func(), error) {
	l, err := log.New(cfg.LogOptions())
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Sync() }, nil
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideIDAllocator() *models.IDAllocator {
	return models.NewIDAllocator()
}

func ProvideStore(cfg config.Config, logger log.Log, b bus.EventBus, ids *models.IDAllocator) (*storage.Store, error) {
	return storage.NewStore(cfg.StorageConfig(),
		storage.WithLogger(logger),
		storage.WithEventBus(b),
		storage.WithIDAllocator(ids),
	)
}

func ProvideRehydrator(reg rehydrate.Registry, logger log.Log) *rehydrate.Rehydrator {
	return rehydrate.New(reg, rehydrate.WithLogger(logger))
}

func ProvideLoader(store *storage.Store, rh *rehydrate.Rehydrator) *scene.Loader {
	return scene.NewLoader(store, rh)
}

func ProvideServer(cfg config.Config, store *storage.Store, logger log.Log) *server.Server {
	return server.NewServer(store, server.Config{
		ListenAddr: cfg.ServerAddr(),
		MaxClients: cfg.Server.MaxClients,
	}, logger)
}
