package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// BlobKind names the asset family of a cached blob. It doubles as the file
// extension in the cache directory.
type BlobKind string

const (
	KindTexture BlobKind = "texture"
	KindMesh    BlobKind = "mesh"
)

func (k BlobKind) valid() bool {
	return k == KindTexture || k == KindMesh
}

// BlobKey addresses a blob by the xxhash64 of its content.
type BlobKey struct {
	Hash uint64
	Kind BlobKind
}

func (k BlobKey) String() string {
	return fmt.Sprintf("%016x.%s", k.Hash, k.Kind)
}

// ParseBlobKey parses the String form of a key.
func ParseBlobKey(s string) (BlobKey, error) {
	hash, kind, ok := strings.Cut(s, ".")
	if !ok || len(hash) != 16 {
		return BlobKey{}, fmt.Errorf("%w: %q", ErrInvalidBlobKey, s)
	}
	h, err := strconv.ParseUint(hash, 16, 64)
	if err != nil {
		return BlobKey{}, fmt.Errorf("%w: %q", ErrInvalidBlobKey, s)
	}
	k := BlobKey{Hash: h, Kind: BlobKind(kind)}
	if !k.Kind.valid() {
		return BlobKey{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return k, nil
}

// BlobCache is a content-addressed store for texture and mesh payloads under
// the hidden root. Identical content is stored once.
type BlobCache struct {
	mu       sync.Mutex
	dir      string
	onChange func(op string)
}

func (c *BlobCache) path(k BlobKey) string {
	return filepath.Join(c.dir, k.String())
}

// Put stores data and returns its key. Storing content that is already
// cached is a no-op and does not fire a refresh.
func (c *BlobCache) Put(kind BlobKind, data []byte) (BlobKey, error) {
	if !kind.valid() {
		return BlobKey{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	k := BlobKey{Hash: xxhash.Sum64(data), Kind: kind}

	c.mu.Lock()
	exists, err := fileExists(c.path(k))
	if err == nil && !exists {
		err = writeFileAtomic(c.path(k), data)
	}
	c.mu.Unlock()
	if err != nil {
		return BlobKey{}, fmt.Errorf("put blob %s: %w", k, err)
	}
	if !exists {
		c.changed("put_blob")
	}
	return k, nil
}

// Get returns the content of k after checking it still hashes to k.
func (c *BlobCache) Get(k BlobKey) ([]byte, error) {
	c.mu.Lock()
	data, err := os.ReadFile(c.path(k))
	c.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", k, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if xxhash.Sum64(data) != k.Hash {
		return nil, fmt.Errorf("blob %s: %w", k, ErrCorruptBlob)
	}
	return data, nil
}

func (c *BlobCache) Has(k BlobKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fileExists(c.path(k))
}

// Delete removes k. Deleting a missing blob is not an error.
func (c *BlobCache) Delete(k BlobKey) error {
	c.mu.Lock()
	err := removeIfExists(c.path(k))
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.changed("delete_blob")
	return nil
}

// Keys lists cached blobs sorted by their string form. Files that do not
// parse as keys are ignored.
func (c *BlobCache) Keys() ([]BlobKey, error) {
	c.mu.Lock()
	entries, err := os.ReadDir(c.dir)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	keys := make([]BlobKey, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		k, err := ParseBlobKey(entry.Name())
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func (c *BlobCache) changed(op string) {
	if c.onChange != nil {
		c.onChange(op)
	}
}
