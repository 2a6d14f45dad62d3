// Package paramcache manages the Groth16 proving and verifying keys for the
// Sapling and Orchard claim circuits. Setup runs trusted setup, keeps the
// key pair in memory and writes it to the cache directory; a process that
// loses a create race keeps using the copy it already built in memory
// rather than re-reading the file a concurrent writer is still renaming
// into place. Key files are only written: nothing in this package reads
// them back, so Get finds only key pairs set up earlier in the same process.
package paramcache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
)

// Entry is one cached proving/verifying key pair, keyed by pool and
// parameter size (the k=12/k=17 selector carried over from the Orchard
// circuit's native/SHA-256 variants).
type Entry struct {
	Pool          string
	ParameterSize uint8
	ProvingKey    groth16.ProvingKey
	VerifyingKey  groth16.VerifyingKey
}

// Cache is a process-wide, directory-backed store of compiled circuits and
// their key pairs.
type Cache struct {
	dir string

	mu      sync.RWMutex
	entries map[string]*Entry
}

// New returns a cache rooted at dir, creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("paramcache: create %s: %w", dir, err)
	}
	return &Cache{dir: dir, entries: make(map[string]*Entry)}, nil
}

func key(pool string, size uint8) string {
	return fmt.Sprintf("%s-%d", pool, size)
}

// Get returns a cached entry if one is already loaded in memory.
func (c *Cache) Get(pool string, size uint8) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key(pool, size)]
	return e, ok
}

// Setup runs the Groth16 trusted setup for ccs and stores the resulting key
// pair both in memory and atomically on disk (via a temp file + rename),
// so a losing process in a setup race simply keeps the pair it already
// built rather than re-reading a file that is still being written.
func (c *Cache) Setup(pool string, size uint8, ccs constraint.ConstraintSystem) (*Entry, error) {
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("paramcache: setup %s/%d: %w", pool, size, err)
	}

	e := &Entry{Pool: pool, ParameterSize: size, ProvingKey: pk, VerifyingKey: vk}

	if err := c.persist(pool, size, e); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key(pool, size)] = e
	c.mu.Unlock()

	return e, nil
}

func (c *Cache) persist(pool string, size uint8, e *Entry) error {
	base := filepath.Join(c.dir, key(pool, size))

	pkPath := base + ".pk"
	vkPath := base + ".vk"

	if err := writeAtomic(pkPath, e.ProvingKey.WriteTo); err != nil {
		return fmt.Errorf("paramcache: write proving key: %w", err)
	}
	if err := writeAtomic(vkPath, e.VerifyingKey.WriteTo); err != nil {
		return fmt.Errorf("paramcache: write verifying key: %w", err)
	}
	return nil
}

func writeAtomic(path string, writeTo func(w io.Writer) (int64, error)) error {
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			// A concurrent writer already owns this temp file; the loser
			// keeps its in-memory copy instead of racing the rename.
			return nil
		}
		return err
	}
	defer f.Close()

	if _, err := writeTo(f); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
