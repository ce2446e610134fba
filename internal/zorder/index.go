package zorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/artpar/layertree/internal/interfaces"
	"gopkg.in/yaml.v3"
)

// Common errors.
var (
	ErrNotFound  = errors.New("layer not in z-order")
	ErrDuplicate = errors.New("layer already in z-order")
	ErrSelfMove  = errors.New("cannot move a layer relative to itself")
)

// Entry is one layer in the z-order. ZIndex is derived from position by Update.
type Entry struct {
	ID     string `yaml:"id"`
	ZType  string `yaml:"ztype"`
	ZIndex int    `yaml:"zindex"`
}

// Index is the global draw order of layers, top-most first: position 0 is
// drawn last. Entries are partitioned by z-type; a new layer lands at the top
// of its partition, and partitions follow the configured priority.
type Index struct {
	mu       sync.RWMutex
	entries  []Entry
	priority []string
	gateway  interfaces.Gateway
	key      string
}

// Option configures an Index.
type Option func(*Index)

// WithZTypes sets the partition priority, top-most type first.
func WithZTypes(types ...string) Option {
	return func(ix *Index) {
		ix.priority = append([]string(nil), types...)
	}
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(ix *Index) {
		ix.key = key
	}
}

// New creates an empty index persisted through gw.
func New(gw interfaces.Gateway, opts ...Option) *Index {
	ix := &Index{
		gateway: gw,
		key:     interfaces.KeyZOrder,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// IDs returns layer ids top-most first.
func (ix *Index) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := make([]string, len(ix.entries))
	for i, e := range ix.entries {
		ids[i] = e.ID
	}
	return ids
}

// Entries returns a copy of the entries top-most first.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]Entry(nil), ix.entries...)
}

// Position returns the index of id, or -1.
func (ix *Index) Position(id string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.find(id)
}

// ZType returns the z-type tag of id.
func (ix *Index) ZType(id string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	i := ix.find(id)
	if i < 0 {
		return "", false
	}
	return ix.entries[i].ZType, true
}

// Add inserts id at the top of its z-type partition.
func (ix *Index) Add(id, zType string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.find(id) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}

	rank := ix.rank(zType)
	at := len(ix.entries)
	for i, e := range ix.entries {
		if ix.rank(e.ZType) >= rank {
			at = i
			break
		}
	}
	ix.insert(at, Entry{ID: id, ZType: zType})
	ix.renumber()
	return nil
}

// Remove drops id from the index.
func (ix *Index) Remove(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	i := ix.find(id)
	if i < 0 {
		return false
	}
	ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
	ix.renumber()
	return true
}

// Move removes id from its position and reinserts it immediately before
// (above) or after (below) targetID.
func (ix *Index) Move(id, targetID string, before bool) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if id == targetID {
		return fmt.Errorf("%w: %s", ErrSelfMove, id)
	}
	from := ix.find(id)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if ix.find(targetID) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, targetID)
	}

	e := ix.entries[from]
	ix.entries = append(ix.entries[:from], ix.entries[from+1:]...)

	at := ix.find(targetID)
	if !before {
		at++
	}
	ix.insert(at, e)
	return nil
}

// Update recomputes every ZIndex from position. The top-most entry gets the
// highest value and the bottom one gets 0.
func (ix *Index) Update() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.renumber()
}

// Snapshot captures the current order for Restore.
func (ix *Index) Snapshot() []Entry {
	return ix.Entries()
}

// Restore replaces the order with a snapshot.
func (ix *Index) Restore(snap []Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = append([]Entry(nil), snap...)
}

type document struct {
	ZTypes  []string `yaml:"ztypes,omitempty"`
	Entries []Entry  `yaml:"entries"`
}

// Save persists the index through the gateway.
func (ix *Index) Save(ctx context.Context) error {
	ix.mu.RLock()
	doc := document{ZTypes: ix.priority, Entries: ix.entries}
	content, err := yaml.Marshal(doc)
	ix.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal z-order: %w", err)
	}

	if err := ix.gateway.Save(ctx, ix.key, content); err != nil {
		return fmt.Errorf("failed to save z-order: %w", err)
	}
	return nil
}

// Load replaces the index with the persisted one. A missing document leaves
// the index empty.
func (ix *Index) Load(ctx context.Context) error {
	content, err := ix.gateway.Load(ctx, ix.key)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load z-order: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal z-order: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	seen := make(map[string]bool, len(doc.Entries))
	ix.entries = ix.entries[:0]
	for _, e := range doc.Entries {
		if e.ID == "" || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		ix.entries = append(ix.entries, e)
	}
	if len(ix.priority) == 0 {
		ix.priority = doc.ZTypes
	}
	ix.renumber()
	return nil
}

// Internal helpers

func (ix *Index) find(id string) int {
	for i, e := range ix.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (ix *Index) insert(at int, e Entry) {
	ix.entries = append(ix.entries, Entry{})
	copy(ix.entries[at+1:], ix.entries[at:])
	ix.entries[at] = e
}

// rank orders z-types; unknown types sort below every configured one.
func (ix *Index) rank(zType string) int {
	for i, t := range ix.priority {
		if t == zType {
			return i
		}
	}
	return len(ix.priority)
}

func (ix *Index) renumber() {
	n := len(ix.entries)
	for i := range ix.entries {
		ix.entries[i].ZIndex = n - 1 - i
	}
}
