package scene

import (
	"errors"
	"fmt"

	"github.com/zeusync/enginedb/internal/core/events/bus"
	"github.com/zeusync/enginedb/internal/core/models"
	"github.com/zeusync/enginedb/internal/core/observability/log"
	"github.com/zeusync/enginedb/internal/core/rehydrate"
	"github.com/zeusync/enginedb/internal/core/storage"
)

type Option func(*Loader)

func WithLogger(l log.Log) Option {
	return func(ld *Loader) { ld.logger = l }
}

// Loader builds the live entity set: list records, decode them, read each
// metadata document and rehydrate behaviours from it.
type Loader struct {
	store      *storage.Store
	rehydrator *rehydrate.Rehydrator
	logger     log.Log
}

func NewLoader(store *storage.Store, rh *rehydrate.Rehydrator, opts ...Option) *Loader {
	ld := &Loader{store: store, rehydrator: rh}
	for _, opt := range opts {
		opt(ld)
	}
	if ld.logger == nil {
		ld.logger = store.Logger()
	}
	ld.logger = ld.logger.Named("scene")
	return ld
}

// Load returns every stored entity with its behaviours attached. An entity
// without a metadata document loads with no behaviours. A corrupt document
// fails the load unless the store is configured to skip corrupt entries.
func (ld *Loader) Load() ([]*models.Entity, error) {
	entities, err := ld.store.ListEntities()
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}

	skip := ld.store.Config().ListPolicy == storage.SkipCorrupt
	for _, e := range entities {
		doc, err := ld.store.Metadata().Load(e.ID())
		switch {
		case errors.Is(err, storage.ErrNotFound):
			ld.logger.Warn("entity has no metadata document", log.Stringer("id", e.ID()))
			continue
		case errors.Is(err, storage.ErrCorruptMetadata) && skip:
			ld.logger.Warn("skipping behaviours of entity with corrupt metadata",
				log.Stringer("id", e.ID()),
				log.Error(err),
			)
			continue
		case err != nil:
			return nil, fmt.Errorf("load scene: entity %s: %w", e.ID(), err)
		}

		ld.rehydrator.Rehydrate(e, doc.Scripts, doc.Fields)
	}

	ld.logger.Debug("scene loaded", log.Int("entities", len(entities)))
	return entities, nil
}

// Watch reloads the scene after every store refresh and hands the result
// to fn. Cancel the returned subscription to stop.
func (ld *Loader) Watch(fn func([]*models.Entity, error)) (bus.Subscription, error) {
	return ld.store.OnRefresh(func() {
		fn(ld.Load())
	})
}
