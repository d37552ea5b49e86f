package loader

import (
	"os"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/table"
)

// Policy decides whether a cached table may still be served.
type Policy interface {
	Valid(path string, e *Entry) bool
}

// Entry is one cached load.
type Entry struct {
	Table       *table.Table
	Diagnostics Diagnostics
	ModTime     time.Time
	Size        int64
}

// KeepForever serves every entry until it is replaced by a forced reload.
// It never touches the filesystem.
type KeepForever struct{}

func (KeepForever) Valid(string, *Entry) bool { return true }

// InvalidateOnModTime drops entries whose file changed size or mtime.
type InvalidateOnModTime struct{}

func (InvalidateOnModTime) Valid(path string, e *Entry) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().Equal(e.ModTime) && info.Size() == e.Size
}

// Cache maps absolute paths to loaded tables. It grows for the life of the
// process; entries are only overwritten, never evicted.
type Cache struct {
	policy  Policy
	entries map[string]*Entry
}

// NewCache returns an empty cache; a nil policy means KeepForever.
func NewCache(p Policy) *Cache {
	if p == nil {
		p = KeepForever{}
	}
	return &Cache{policy: p, entries: map[string]*Entry{}}
}

// Get returns the entry for key if present and still valid under the policy.
func (c *Cache) Get(key string) (*Entry, bool) {
	e, ok := c.entries[key]
	if !ok || !c.policy.Valid(key, e) {
		return nil, false
	}
	return e, true
}

// Put stores or replaces the entry for key, stamping the file's size and mtime.
func (c *Cache) Put(key string, e *Entry) {
	if info, err := os.Stat(key); err == nil {
		e.ModTime = info.ModTime()
		e.Size = info.Size()
	}
	c.entries[key] = e
}

func (c *Cache) Len() int { return len(c.entries) }
