package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zeusync/enginedb/internal/core/models"
	"github.com/zeusync/enginedb/pkg/generic"
)

// Document is the per-entity metadata side file: attached scripts and the
// inspector-edited field values of their behaviours.
type Document struct {
	Scripts []models.ScriptRef `json:"scripts"`
	Fields  map[string]any     `json:"fields"`
}

func NewDocument() *Document {
	return &Document{
		Scripts: []models.ScriptRef{},
		Fields:  map[string]any{},
	}
}

// HasScript reports whether a script with the given name is attached.
func (d *Document) HasScript(name string) bool {
	return slices.ContainsFunc(d.Scripts, func(r models.ScriptRef) bool { return r.Name == name })
}

// MetadataStore gives read-modify-write access to metadata documents. Every
// mutation rewrites the whole document and fires the store refresh.
type MetadataStore struct {
	store *Store
}

// Load returns the document of id.
func (m *MetadataStore) Load(id uuid.UUID) (*Document, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	path, err := m.locateLocked(id)
	if err != nil {
		return nil, err
	}
	return m.readLocked(path)
}

// GetField returns the stored value of name. A missing field is reported
// through ok, not as an error. Integral numbers come back as int64, other
// numbers as float64.
func (m *MetadataStore) GetField(id uuid.UUID, name string) (value any, ok bool, err error) {
	doc, err := m.Load(id)
	if err != nil {
		return nil, false, err
	}
	value, ok = doc.Fields[name]
	return value, ok, nil
}

// SetField replaces any previous value of name. Values must be a bool, a
// string or a finite number.
func (m *MetadataStore) SetField(id uuid.UUID, name string, value any) error {
	v, err := normalizeValue(value)
	if err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	return m.mutate(id, "set_field", func(doc *Document) error {
		delete(doc.Fields, name)
		doc.Fields[name] = v
		return nil
	})
}

// RemoveField deletes name and reports whether it was present.
func (m *MetadataStore) RemoveField(id uuid.UUID, name string) (bool, error) {
	var removed bool
	err := m.mutate(id, "remove_field", func(doc *Document) error {
		_, removed = doc.Fields[name]
		delete(doc.Fields, name)
		return nil
	})
	return removed, err
}

// AddScript attaches ref. A script with the same name is rejected with
// ErrScriptAttached and the document is left untouched.
func (m *MetadataStore) AddScript(id uuid.UUID, ref models.ScriptRef) error {
	return m.mutate(id, "add_script", func(doc *Document) error {
		if doc.HasScript(ref.Name) {
			return fmt.Errorf("%w: %s", ErrScriptAttached, ref.Name)
		}
		doc.Scripts = append(doc.Scripts, ref)
		return nil
	})
}

// RemoveScript detaches every script named name and reports whether any was
// attached.
func (m *MetadataStore) RemoveScript(id uuid.UUID, name string) (bool, error) {
	var removed bool
	err := m.mutate(id, "remove_script", func(doc *Document) error {
		n := len(doc.Scripts)
		doc.Scripts = slices.DeleteFunc(doc.Scripts, func(r models.ScriptRef) bool { return r.Name == name })
		removed = len(doc.Scripts) != n
		return nil
	})
	return removed, err
}

func (m *MetadataStore) mutate(id uuid.UUID, op string, fn func(*Document) error) error {
	m.store.mu.Lock()
	err := func() error {
		path, err := m.locateLocked(id)
		if err != nil {
			return err
		}
		doc, err := m.readLocked(path)
		if err != nil {
			return err
		}
		if err = fn(doc); err != nil {
			return err
		}
		return m.writeLocked(path, doc)
	}()
	m.store.mu.Unlock()
	if err != nil {
		return err
	}
	m.store.refresh(op)
	return nil
}

// locateLocked finds the document of id. The canonical name is tried first;
// otherwise any metadata file whose name contains the id is accepted.
func (m *MetadataStore) locateLocked(id uuid.UUID) (string, error) {
	direct := m.store.paths.MetadataPath(id)
	exists, err := fileExists(direct)
	if err != nil {
		return "", err
	}
	if exists {
		return direct, nil
	}

	entries, err := os.ReadDir(m.store.paths.HiddenRoot)
	if err != nil {
		return "", err
	}
	key := id.String()
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasSuffix(name, MetadataExt) && strings.Contains(name, key) {
			return filepath.Join(m.store.paths.HiddenRoot, name), nil
		}
	}
	return "", fmt.Errorf("metadata for %s: %w", id, ErrNotFound)
}

// removeAllLocked deletes the canonical document of id and any legacy-named
// document locateLocked would fall back to.
func (m *MetadataStore) removeAllLocked(id uuid.UUID) error {
	if err := removeIfExists(m.store.paths.MetadataPath(id)); err != nil {
		return err
	}
	entries, err := os.ReadDir(m.store.paths.HiddenRoot)
	if err != nil {
		return err
	}
	key := id.String()
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasSuffix(name, MetadataExt) && strings.Contains(name, key) {
			errs = append(errs, removeIfExists(filepath.Join(m.store.paths.HiddenRoot, name)))
		}
	}
	return errors.Join(errs...)
}

func (m *MetadataStore) readLocked(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, filepath.Base(path), err)
	}
	return doc, nil
}

// documents are small; oversized buffers are not worth keeping around
const maxPooledDocBuffer = 64 << 10

var docBuffers = generic.NewPool(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) bool {
		b.Reset()
		return b.Cap() <= maxPooledDocBuffer
	},
)

func (m *MetadataStore) writeLocked(path string, doc *Document) error {
	buf := docBuffers.Get()
	defer docBuffers.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

// MarshalJSON writes float fields with a fraction or exponent so they read
// back as float64 rather than int64.
func (d Document) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		if f, ok := v.(float64); ok {
			v = jsonFloat(f)
		}
		fields[k] = v
	}
	return json.Marshal(struct {
		Scripts []models.ScriptRef `json:"scripts"`
		Fields  map[string]any     `json:"fields"`
	}{d.Scripts, fields})
}

type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, v)
	}
	format := byte('f')
	if abs := math.Abs(v); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b := strconv.AppendFloat(nil, v, format, -1, 64)
	if !bytes.ContainsAny(b, ".e") {
		b = append(b, '.', '0')
	}
	return b, nil
}

func parseDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Scripts == nil {
		doc.Scripts = []models.ScriptRef{}
	}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	for k, v := range doc.Fields {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		doc.Fields[k] = nv
	}
	return &doc, nil
}

// normalizeValue maps accepted field values onto bool, string, int64 or float64.
func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case bool, string, int64:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		return uintValue(uint64(x))
	case uint64:
		return uintValue(x)
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case json.Number:
		// a fraction or exponent marks a float even when the value is integral
		if !strings.ContainsAny(x.String(), ".eE") {
			if i, err := x.Int64(); err == nil {
				return i, nil
			}
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, x)
		}
		return floatValue(f)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func uintValue(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
	}
	return int64(u), nil
}

func floatValue(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	return f, nil
}
