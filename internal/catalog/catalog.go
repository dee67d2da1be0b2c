// Package catalog holds the taxonomy trees currently being served, one per
// dialect.
package catalog

import (
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/taxindex/internal/taxonomy"
)

// Entry is a loaded taxonomy plus where it came from.
type Entry struct {
	Tree        *taxonomy.Tree `json:"-"`
	Dialect     string         `json:"dialect"`
	Source      string         `json:"source"`
	ContentHash string         `json:"content_hash"`
	LoadedAt    time.Time      `json:"loaded_at"`
	Nodes       int            `json:"nodes"`
	Organisms   int            `json:"organisms"`
}

// NewEntry describes tree as loaded from source now.
func NewEntry(tree *taxonomy.Tree, source, contentHash string) Entry {
	return Entry{
		Tree:        tree,
		Dialect:     tree.Dialect().String(),
		Source:      source,
		ContentHash: contentHash,
		LoadedAt:    time.Now(),
		Nodes:       tree.Len(),
		Organisms:   len(tree.Codes()),
	}
}

// Catalog is a thread-safe registry of loaded trees. Trees are swapped whole
// and never mutated, so readers may keep using a tree after it is replaced.
type Catalog struct {
	mu      sync.RWMutex
	entries map[taxonomy.Dialect]Entry
}

func New() *Catalog {
	return &Catalog{entries: make(map[taxonomy.Dialect]Entry)}
}

// Get returns the entry for dialect.
func (c *Catalog) Get(d taxonomy.Dialect) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[d]
	return e, ok
}

// Tree is Get reduced to the tree.
func (c *Catalog) Tree(d taxonomy.Dialect) (*taxonomy.Tree, bool) {
	e, ok := c.Get(d)
	if !ok {
		return nil, false
	}
	return e.Tree, true
}

// Has reports whether the loaded tree for d was built from content with this
// hash.
func (c *Catalog) Has(d taxonomy.Dialect, contentHash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[d]
	return ok && e.ContentHash == contentHash
}

// Put installs e under its tree's dialect. It returns false and keeps the
// current entry when the content hash is unchanged.
func (c *Catalog) Put(e Entry) bool {
	d := e.Tree.Dialect()

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[d]; ok && cur.ContentHash == e.ContentHash {
		return false
	}
	c.entries[d] = e
	return true
}

// List returns all entries ordered by dialect.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dialect < out[j].Dialect })
	return out
}
