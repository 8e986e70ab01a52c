// Package dcache persists computed layouts on disk so repeated runs over
// the same declaration set skip the layout pass. Entries are keyed by a
// digest of the declaration source plus the target triple; a stale entry
// is never invalidated, it is simply unreachable under the new digest.
package dcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"coregraph/internal/layout"
	"coregraph/internal/types"
)

// Schema version - increment when the Payload format changes.
const schemaVersion uint16 = 1

// Digest identifies one declaration set + target combination.
type Digest [sha256.Size]byte

// SetDigest hashes the raw declaration source together with the target
// triple, so the same file laid out for two targets caches separately.
func SetDigest(doc []byte, target string) Digest {
	h := sha256.New()
	h.Write(doc)
	h.Write([]byte{0})
	h.Write([]byte(target))
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Cache is a disk cache of layout payloads. Thread-safe.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Open initializes the cache at the standard XDG location for app.
func Open(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenAt(filepath.Join(base, app))
}

// OpenAt initializes the cache at an explicit directory.
func OpenAt(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "layouts", key.String()+".mp")
}

// Payload stores every layout computed for one declaration set.
type Payload struct {
	Schema  uint16
	Target  string
	Layouts []Entry
}

// Entry records the layout of one type.
type Entry struct {
	Type   uint32 // types.TypeID
	Size   int
	Align  int
	Fields []Field
	Flex   bool
}

// Field mirrors layout.FieldLayout.
type Field struct {
	ByteOffset int
	Size       int
	Align      int
	BitOffset  int
	BitWidth   int
}

// Put serializes and writes a payload, atomically replacing any prior entry.
func (c *Cache) Put(key Digest, payload *Payload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads a payload. A missing entry or one written under a different
// schema version reports a plain miss, not an error.
func (c *Cache) Get(key Digest) (*Payload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload Payload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != schemaVersion {
		return nil, false, nil
	}
	return &payload, true, nil
}

// DropAll removes every cached payload.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "layouts"))
}

// Snapshot captures the layout of every declaration from the engine.
// Declarations without a layout (forward tags, function types) are skipped.
func Snapshot(eng *layout.Engine, decls []types.TypeID, target string) *Payload {
	payload := &Payload{Schema: schemaVersion, Target: target}
	for _, id := range decls {
		tl, err := eng.LayoutOf(id)
		if err != nil {
			continue
		}
		e := Entry{
			Type:  uint32(id),
			Size:  tl.Size,
			Align: tl.Align,
			Flex:  tl.Flexible,
		}
		e.Fields = make([]Field, len(tl.Fields))
		for i, fl := range tl.Fields {
			e.Fields[i] = Field{
				ByteOffset: fl.ByteOffset,
				Size:       fl.Size,
				Align:      fl.Align,
				BitOffset:  fl.BitOffset,
				BitWidth:   fl.BitWidth,
			}
		}
		payload.Layouts = append(payload.Layouts, e)
	}
	return payload
}

// Lookup finds the cached layout of one type.
func (p *Payload) Lookup(id types.TypeID) (layout.TypeLayout, bool) {
	if p == nil {
		return layout.TypeLayout{}, false
	}
	for _, e := range p.Layouts {
		if e.Type != uint32(id) {
			continue
		}
		tl := layout.TypeLayout{
			Size:     e.Size,
			Align:    e.Align,
			Flexible: e.Flex,
		}
		tl.Fields = make([]layout.FieldLayout, len(e.Fields))
		for i, f := range e.Fields {
			tl.Fields[i] = layout.FieldLayout{
				ByteOffset: f.ByteOffset,
				Size:       f.Size,
				Align:      f.Align,
				BitOffset:  f.BitOffset,
				BitWidth:   f.BitWidth,
			}
		}
		return tl, true
	}
	return layout.TypeLayout{}, false
}
