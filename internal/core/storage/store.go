package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zeusync/enginedb/internal/core/events/bus"
	"github.com/zeusync/enginedb/internal/core/models"
	"github.com/zeusync/enginedb/internal/core/observability/log"
)

// EventRefresh is published on the store's bus after every mutation. The
// event data is the name of the operation; OnRefresh hides it.
const EventRefresh = "storage.refresh"

// Store is the directory-backed entity store. It owns a visible root with
// user-authored scripts and a hidden root with entity records, metadata
// documents and the blob cache.
//
// Calls are serialized by an internal mutex. Nothing guards against other
// processes editing the same directories.
type Store struct {
	mu     sync.Mutex
	cfg    Config
	paths  Paths
	ids    *models.IDAllocator
	bus    bus.EventBus
	logger log.Log

	meta  *MetadataStore
	blobs *BlobCache
}

type Option func(*Store)

func WithLogger(l log.Log) Option {
	return func(s *Store) { s.logger = l }
}

func WithEventBus(b bus.EventBus) Option {
	return func(s *Store) { s.bus = b }
}

// WithIDAllocator shares an id set between stores or with other callers.
func WithIDAllocator(a *models.IDAllocator) Option {
	return func(s *Store) { s.ids = a }
}

// NewStore resolves the roots once and creates them when missing.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	paths, err := resolvePaths(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{cfg: cfg, paths: paths}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewNop()
	}
	if s.bus == nil {
		s.bus = bus.New()
	}
	if s.ids == nil {
		s.ids = models.NewIDAllocator()
	}

	for _, dir := range []string{paths.VisibleRoot, paths.HiddenRoot, paths.CacheRoot()} {
		if err = os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	s.meta = &MetadataStore{store: s}
	s.blobs = &BlobCache{dir: paths.CacheRoot(), onChange: s.refresh}

	s.logger.Debug("store opened",
		log.String("visible_root", paths.VisibleRoot),
		log.String("hidden_root", paths.HiddenRoot))
	return s, nil
}

func (s *Store) Paths() Paths                   { return s.paths }
func (s *Store) Config() Config                 { return s.cfg }
func (s *Store) IDs() *models.IDAllocator       { return s.ids }
func (s *Store) Metadata() *MetadataStore       { return s.meta }
func (s *Store) Blobs() *BlobCache              { return s.blobs }
func (s *Store) EventBus() bus.EventBus         { return s.bus }
func (s *Store) Logger() log.Log                { return s.logger }
func (s *Store) recordPath(id uuid.UUID) string { return s.paths.RecordPath(id) }

// CreateEntity mints an id, writes the record and an empty metadata document,
// then fires a refresh. A failed write is returned as is; a record written
// before a failed metadata write is not rolled back.
func (s *Store) CreateEntity(name string) (*models.Entity, error) {
	e, err := models.NewEntity(name, s.ids)
	if err != nil {
		return nil, fmt.Errorf("mint entity id: %w", err)
	}
	s.warnIfTruncated(e)

	s.mu.Lock()
	err = s.createLocked(e)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Debug("entity created", log.Stringer("id", e.ID()), log.String("name", e.Name))
	s.refresh("create")
	return e, nil
}

func (s *Store) createLocked(e *models.Entity) error {
	if err := writeFileAtomic(s.recordPath(e.ID()), models.MarshalEntity(e)); err != nil {
		return fmt.Errorf("write entity record: %w", err)
	}
	if err := s.meta.writeLocked(s.paths.MetadataPath(e.ID()), NewDocument()); err != nil {
		return fmt.Errorf("write entity metadata: %w", err)
	}
	return nil
}

// SaveEntity rewrites the record of an existing entity, e.g. after a rename
// or tag change. Behaviours are not part of the record.
func (s *Store) SaveEntity(e *models.Entity) error {
	s.warnIfTruncated(e)

	s.mu.Lock()
	path := s.recordPath(e.ID())
	exists, err := fileExists(path)
	if err == nil && !exists {
		err = fmt.Errorf("entity %s: %w", e.ID(), ErrNotFound)
	}
	if err == nil {
		err = writeFileAtomic(path, models.MarshalEntity(e))
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.refresh("save")
	return nil
}

// LoadEntity reads a single record and registers its id.
func (s *Store) LoadEntity(id uuid.UUID) (*models.Entity, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.recordPath(id))
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.decode(filepath.Base(s.recordPath(id)), data)
}

// DeleteEntity removes the record and every metadata document the metadata
// store would resolve for id, legacy names included. Missing files are not
// an error, so deleting twice is fine.
func (s *Store) DeleteEntity(id uuid.UUID) error {
	s.mu.Lock()
	err := removeIfExists(s.recordPath(id))
	if err == nil {
		err = s.meta.removeAllLocked(id)
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("delete entity %s: %w", id, err)
	}

	s.logger.Debug("entity deleted", log.Stringer("id", id))
	s.refresh("delete")
	return nil
}

// Entities yields every record in the hidden root in file name order.
// A record that cannot be read or decoded is yielded as (nil, err) and the
// caller decides whether to continue. Each range rescans the directory.
func (s *Store) Entities() iter.Seq2[*models.Entity, error] {
	return func(yield func(*models.Entity, error) bool) {
		names, err := s.recordNames()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, name := range names {
			s.mu.Lock()
			data, err := os.ReadFile(filepath.Join(s.paths.HiddenRoot, name))
			s.mu.Unlock()
			if errors.Is(err, fs.ErrNotExist) {
				// deleted since the directory was read
				continue
			}
			if err != nil {
				if !yield(nil, fmt.Errorf("read %s: %w", name, err)) {
					return
				}
				continue
			}
			e, err := s.decode(name, data)
			if !yield(e, err) {
				return
			}
		}
	}
}

// ListEntities collects Entities according to the configured ListPolicy.
func (s *Store) ListEntities() ([]*models.Entity, error) {
	var out []*models.Entity
	for e, err := range s.Entities() {
		if err != nil {
			if s.cfg.ListPolicy == SkipCorrupt && !errors.Is(err, errListing) {
				s.logger.Warn("skipping unreadable entity record", log.Error(err))
				continue
			}
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ListScripts walks the visible root for files ending in the script suffix.
// Hidden directories are not descended into.
func (s *Store) ListScripts() ([]models.ScriptRef, error) {
	var out []models.ScriptRef
	root := s.paths.VisibleRoot
	suffix := s.cfg.ScriptSuffix
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), suffix) || d.Name() == suffix {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, models.ScriptRef{
			Name: strings.TrimSuffix(d.Name(), suffix),
			Path: filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	return out, nil
}

// OnRefresh subscribes fn to the store's refresh signal.
func (s *Store) OnRefresh(fn func()) (bus.Subscription, error) {
	if fn == nil {
		return nil, bus.ErrNilHandler
	}
	return s.bus.Subscribe(EventRefresh, func(bus.Event) error {
		fn()
		return nil
	})
}

// refresh publishes outside the store lock so subscribers may call back in.
// Subscriber failures do not undo the mutation that triggered them.
func (s *Store) refresh(op string) {
	if err := s.bus.Publish(bus.NewEvent(EventRefresh, "storage", op)); err != nil {
		s.logger.Warn("refresh subscriber failed", log.String("op", op), log.Error(err))
	}
}

var errListing = errors.New("list hidden root")

func (s *Store) recordNames() ([]string, error) {
	s.mu.Lock()
	entries, err := os.ReadDir(s.paths.HiddenRoot)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errListing, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), RecordExt) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (s *Store) decode(name string, data []byte) (*models.Entity, error) {
	var r models.Record
	if err := r.Deserialize(data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return models.RestoreEntity(r.Name(), r.ID, r.Tags, s.ids), nil
}

func (s *Store) warnIfTruncated(e *models.Entity) {
	if models.NameFits(e.Name) {
		return
	}
	s.logger.Warn("entity name exceeds record capacity and will be truncated",
		log.Stringer("id", e.ID()),
		log.String("name", e.Name),
		log.String("stored", models.StoredName(e.Name)),
		log.Int("max_bytes", models.MaxNameBytes))
}
