package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// On-disk naming.
const (
	RecordExt   = ".sEntity"
	MetadataExt = ".eMeta"
	cacheDir    = "cache"

	filePerm = 0o644
	dirPerm  = 0o755
)

// ListPolicy decides what ListEntities does with a record it cannot decode.
type ListPolicy string

const (
	// AbortOnCorrupt stops the listing at the first bad record.
	AbortOnCorrupt ListPolicy = "abort"
	// SkipCorrupt logs the bad record and keeps going.
	SkipCorrupt ListPolicy = "skip"
)

// Config describes where the store lives. Relative directories are resolved
// against WorkDir, or the process working directory when WorkDir is empty.
type Config struct {
	WorkDir      string
	AssetsDir    string
	HiddenDir    string
	ScriptSuffix string
	ListPolicy   ListPolicy
	// VerifyWorkers bounds the concurrent file checks in Verify.
	VerifyWorkers int
}

func DefaultConfig() Config {
	return Config{
		AssetsDir:     "Assets",
		HiddenDir:     ".enginedb",
		ScriptSuffix:  ".go",
		ListPolicy:    AbortOnCorrupt,
		VerifyWorkers: 8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AssetsDir == "" {
		c.AssetsDir = d.AssetsDir
	}
	if c.HiddenDir == "" {
		c.HiddenDir = d.HiddenDir
	}
	if c.ScriptSuffix == "" {
		c.ScriptSuffix = d.ScriptSuffix
	}
	if c.ListPolicy == "" {
		c.ListPolicy = d.ListPolicy
	}
	if c.VerifyWorkers <= 0 {
		c.VerifyWorkers = d.VerifyWorkers
	}
	return c
}

func (c Config) Validate() error {
	switch c.ListPolicy {
	case AbortOnCorrupt, SkipCorrupt, "":
	default:
		return fmt.Errorf("%w: list policy %q", ErrInvalidConfig, c.ListPolicy)
	}
	return nil
}

// Paths are the resolved, absolute store roots. They do not change after
// the store is opened.
type Paths struct {
	VisibleRoot string
	HiddenRoot  string
}

func resolvePaths(c Config) (Paths, error) {
	base := c.WorkDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Paths{}, fmt.Errorf("resolve working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve working directory: %w", err)
	}
	join := func(dir string) string {
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(base, dir)
	}
	p := Paths{VisibleRoot: join(c.AssetsDir), HiddenRoot: join(c.HiddenDir)}
	if p.VisibleRoot == p.HiddenRoot {
		return Paths{}, fmt.Errorf("%w: assets and hidden roots are both %s", ErrInvalidConfig, p.VisibleRoot)
	}
	return p, nil
}

func (p Paths) RecordPath(id uuid.UUID) string {
	return filepath.Join(p.HiddenRoot, id.String()+RecordExt)
}

func (p Paths) MetadataPath(id uuid.UUID) string {
	return filepath.Join(p.HiddenRoot, id.String()+MetadataExt)
}

func (p Paths) CacheRoot() string {
	return filepath.Join(p.HiddenRoot, cacheDir)
}
