package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const fileExt = ".json"

// FileStore persists one JSON document per key in a directory. Writes go to
// a temp file first and are renamed into place, so readers never observe a
// half-written entry and concurrent writers to one key resolve last-write-wins.
type FileStore struct {
	dir   string
	ttl   time.Duration
	clock Clock
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, ttl time.Duration, clock Clock) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache: file store needs a directory")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, ttl: ttl, clock: clock}, nil
}

// path maps a key to a file name. Keys contain ':' which is not portable, so
// the file name is the hex digest of the key.
func (c *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+fileExt)
}

func (c *FileStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, false, fmt.Errorf("context error: %w", err)
	}

	p := c.path(key)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("file cache read failed: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// a corrupt document can never become valid; drop it
		_ = os.Remove(p)
		return Entry{}, false, fmt.Errorf("file cache decode failed: %w", err)
	}

	if e.Expired(c.clock.now(), c.ttl) {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Entry{}, false, fmt.Errorf("file cache evict failed: %w", err)
		}
		return Entry{}, false, nil
	}

	return e, true, nil
}

func (c *FileStore) Put(ctx context.Context, key string, payload string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	data, err := json.MarshalIndent(Entry{Key: key, Payload: payload, CreatedAt: c.clock.now()}, "", "  ")
	if err != nil {
		return fmt.Errorf("file cache encode failed: %w", err)
	}

	tmp := filepath.Join(c.dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("file cache write failed: %w", err)
	}
	if err := os.Rename(tmp, c.path(key)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("file cache rename failed: %w", err)
	}
	return nil
}

func (c *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file cache delete failed: %w", err)
	}
	return nil
}

func (c *FileStore) Clear(_ context.Context) (int, error) {
	files, err := c.entries()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, f := range files {
		if err := os.Remove(filepath.Join(c.dir, f.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return deleted, fmt.Errorf("file cache clear failed: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

func (c *FileStore) Stats(_ context.Context) (Stats, error) {
	st := Stats{Backend: "file", TTL: c.ttl.String()}

	files, err := c.entries()
	if err != nil {
		return st, err
	}
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(c.dir, f.Name()))
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		collectStats(&st, e, int64(len(data)))
	}
	return st, nil
}

func (c *FileStore) entries() ([]fs.DirEntry, error) {
	all, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("file cache list failed: %w", err)
	}
	out := all[:0]
	for _, f := range all {
		if f.Type().IsRegular() && strings.HasSuffix(f.Name(), fileExt) && !strings.HasPrefix(f.Name(), ".") {
			out = append(out, f)
		}
	}
	return out, nil
}
