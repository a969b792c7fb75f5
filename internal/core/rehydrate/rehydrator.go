package rehydrate

import (
	"sort"

	"github.com/zeusync/enginedb/internal/core/models"
	"github.com/zeusync/enginedb/internal/core/observability/log"
)

// Result reports what happened to each referenced script. Unapplied lists
// persisted fields that no attached behaviour accepted.
type Result struct {
	Attached   []string
	Unresolved []string
	Unapplied  []string
}

type Option func(*Rehydrator)

func WithLogger(l log.Log) Option {
	return func(r *Rehydrator) { r.logger = l }
}

// Rehydrator turns the script references of a metadata document into live
// behaviours on an entity.
type Rehydrator struct {
	registry Registry
	logger   log.Log
}

func New(registry Registry, opts ...Option) *Rehydrator {
	r := &Rehydrator{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewNop()
	}
	r.logger = r.logger.Named("rehydrate")
	return r
}

// Rehydrate attaches one behaviour per resolvable script, in document
// order, and offers every persisted field to each attached behaviour that
// implements models.FieldApplier. Scripts already present on the entity
// are left alone. Identity, name and tags are never touched.
func (r *Rehydrator) Rehydrate(e *models.Entity, scripts []models.ScriptRef, fields map[string]any) Result {
	var res Result
	applied := make(map[string]bool, len(fields))

	// stable field order keeps applier side effects deterministic
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, ref := range scripts {
		if e.HasBehaviour(ref.Name) {
			continue
		}
		factory, ok := r.registry.Resolve(ref.Name)
		if !ok {
			r.logger.Warn("unresolved script reference",
				log.Stringer("entity", e.ID()),
				log.String("script", ref.Name),
				log.String("path", ref.Path),
			)
			res.Unresolved = append(res.Unresolved, ref.Name)
			continue
		}

		b := factory()
		if fa, ok := b.(models.FieldApplier); ok {
			for _, name := range names {
				if fa.ApplyField(name, fields[name]) {
					applied[name] = true
				}
			}
		}
		e.AddBehaviour(b)
		res.Attached = append(res.Attached, ref.Name)
	}

	for _, name := range names {
		if !applied[name] {
			res.Unapplied = append(res.Unapplied, name)
		}
	}
	if len(res.Unapplied) > 0 {
		r.logger.Debug("persisted fields not applied",
			log.Stringer("entity", e.ID()),
			log.Strings("fields", res.Unapplied),
		)
	}
	return res
}
