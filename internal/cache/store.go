package cache

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidKey is returned for an empty key.
var ErrInvalidKey = errors.New("cache: empty key")

// Entry is an immutable cached artifact. A newer Put for the same key
// supersedes it; nothing mutates it in place.
type Entry struct {
	Key       string    `json:"key,omitempty"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the entry is older than ttl at now.
func (e Entry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) > ttl
}

// Stats summarizes what a backend currently holds. Expired entries that have
// not been looked up yet are still counted.
type Stats struct {
	Backend    string    `json:"backend"`
	Entries    int       `json:"totalEntries"`
	TotalBytes int64     `json:"totalSizeBytes"`
	Oldest     time.Time `json:"oldest,omitempty"`
	Newest     time.Time `json:"newest,omitempty"`
	TTL        string    `json:"ttl"`
}

// Store is a content-addressed key/value store with lazy TTL expiry.
//
// Get treats an entry older than the TTL as absent and removes it. Put is
// safe for concurrent use; racing writers to one key resolve last-write-wins.
// Errors are reported so callers can log them, but callers are expected to
// degrade (miss / skip caching) rather than fail.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, payload string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

// Clock returns the current time. Tests inject a fixed clock to exercise
// expiry boundaries.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

func collectStats(st *Stats, e Entry, size int64) {
	st.Entries++
	st.TotalBytes += size
	if st.Oldest.IsZero() || e.CreatedAt.Before(st.Oldest) {
		st.Oldest = e.CreatedAt
	}
	if e.CreatedAt.After(st.Newest) {
		st.Newest = e.CreatedAt
	}
}
