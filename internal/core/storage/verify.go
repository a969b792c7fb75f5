package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zeusync/enginedb/internal/core/models"
	"golang.org/x/sync/errgroup"
)

type ProblemKind string

const (
	ProblemOrphanRecord    ProblemKind = "orphan_record"
	ProblemOrphanMetadata  ProblemKind = "orphan_metadata"
	ProblemCorruptRecord   ProblemKind = "corrupt_record"
	ProblemIDMismatch      ProblemKind = "id_mismatch"
	ProblemCorruptMetadata ProblemKind = "corrupt_metadata"
	ProblemCorruptBlob     ProblemKind = "corrupt_blob"
)

// Problem is one inconsistency found by Verify. Path is relative to the
// hidden root.
type Problem struct {
	Kind ProblemKind
	Path string
	Err  error
}

func (p Problem) String() string {
	if p.Err != nil {
		return fmt.Sprintf("%s %s: %v", p.Kind, p.Path, p.Err)
	}
	return fmt.Sprintf("%s %s", p.Kind, p.Path)
}

type VerifyReport struct {
	Records  int
	Metadata int
	Blobs    int
	Problems []Problem
}

func (r VerifyReport) OK() bool { return len(r.Problems) == 0 }

// Verify checks the hidden root for records without metadata (and the
// reverse), undecodable records, records whose file name disagrees with
// their id, unparsable metadata and blobs that no longer match their key.
// Files are checked concurrently; the returned error is only set for I/O
// failures or cancellation, never for problems found.
func (s *Store) Verify(ctx context.Context) (VerifyReport, error) {
	var report VerifyReport

	s.mu.Lock()
	entries, err := os.ReadDir(s.paths.HiddenRoot)
	s.mu.Unlock()
	if err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}
	blobs, err := s.blobs.Keys()
	if err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}

	records := make(map[string]struct{})
	metadata := make(map[string]struct{})
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, RecordExt):
			records[strings.TrimSuffix(name, RecordExt)] = struct{}{}
		case strings.HasSuffix(name, MetadataExt):
			metadata[strings.TrimSuffix(name, MetadataExt)] = struct{}{}
		}
	}
	report.Records, report.Metadata, report.Blobs = len(records), len(metadata), len(blobs)

	var mu sync.Mutex
	add := func(p Problem) {
		mu.Lock()
		report.Problems = append(report.Problems, p)
		mu.Unlock()
	}

	for stem := range records {
		if _, ok := metadata[stem]; !ok {
			add(Problem{Kind: ProblemOrphanRecord, Path: stem + RecordExt})
		}
	}
	for stem := range metadata {
		if _, ok := records[stem]; !ok {
			add(Problem{Kind: ProblemOrphanMetadata, Path: stem + MetadataExt})
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.VerifyWorkers)

	for stem := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if p, bad := s.checkRecord(stem); bad {
				add(p)
			}
			return nil
		})
	}
	for stem := range metadata {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if p, bad := s.checkMetadata(stem); bad {
				add(p)
			}
			return nil
		})
	}
	for _, k := range blobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.blobs.Get(k); err != nil {
				add(Problem{Kind: ProblemCorruptBlob, Path: filepath.ToSlash(filepath.Join(cacheDir, k.String())), Err: err})
			}
			return nil
		})
	}

	if err = g.Wait(); err != nil {
		return report, err
	}

	sort.Slice(report.Problems, func(i, j int) bool {
		a, b := report.Problems[i], report.Problems[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Kind < b.Kind
	})
	return report, nil
}

func (s *Store) checkRecord(stem string) (Problem, bool) {
	name := stem + RecordExt
	data, err := os.ReadFile(filepath.Join(s.paths.HiddenRoot, name))
	if err != nil {
		return Problem{Kind: ProblemCorruptRecord, Path: name, Err: err}, true
	}
	var r models.Record
	if err = r.Deserialize(data); err != nil {
		return Problem{Kind: ProblemCorruptRecord, Path: name, Err: err}, true
	}
	if id, err := uuid.Parse(stem); err != nil || id != r.ID {
		return Problem{Kind: ProblemIDMismatch, Path: name, Err: fmt.Errorf("record id is %s", r.ID)}, true
	}
	return Problem{}, false
}

func (s *Store) checkMetadata(stem string) (Problem, bool) {
	name := stem + MetadataExt
	data, err := os.ReadFile(filepath.Join(s.paths.HiddenRoot, name))
	if err == nil {
		_, err = parseDocument(data)
	}
	if err != nil {
		return Problem{Kind: ProblemCorruptMetadata, Path: name, Err: err}, true
	}
	return Problem{}, false
}
