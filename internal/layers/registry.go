package layers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/artpar/layertree/internal/interfaces"
	"gopkg.in/yaml.v3"
)

// Common errors.
var (
	ErrNotFound  = errors.New("layer not found")
	ErrDuplicate = errors.New("layer already registered")
	ErrInvalid   = errors.New("invalid layer descriptor")
)

// Descriptor describes a map layer. A descriptor with members is a group: it
// shows as one row but stands for several underlying layers in the z-order.
type Descriptor struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name,omitempty"`
	ZType   string   `yaml:"ztype,omitempty"`
	Members []string `yaml:"members,omitempty"`
}

// IsGroup reports whether the descriptor is backed by member layers.
func (d Descriptor) IsGroup() bool { return len(d.Members) > 0 }

// ZOrderIDs returns the ids this descriptor occupies in the z-order.
func (d Descriptor) ZOrderIDs() []string {
	if d.IsGroup() {
		return append([]string(nil), d.Members...)
	}
	return []string{d.ID}
}

// Validate checks ids and member uniqueness.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	seen := make(map[string]bool, len(d.Members))
	for _, m := range d.Members {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: %s has an empty member", ErrInvalid, d.ID)
		}
		if m == d.ID {
			return fmt.Errorf("%w: %s lists itself as a member", ErrInvalid, d.ID)
		}
		if seen[m] {
			return fmt.Errorf("%w: %s lists %s twice", ErrInvalid, d.ID, m)
		}
		seen[m] = true
	}
	return nil
}

func (d Descriptor) clone() Descriptor {
	d.Members = append([]string(nil), d.Members...)
	return d
}

// Registry holds the layers currently on the map, in insertion order.
type Registry struct {
	mu      sync.RWMutex
	layers  map[string]Descriptor
	order   []string
	gateway interfaces.Gateway
}

// NewRegistry creates an empty registry persisted through gw.
func NewRegistry(gw interfaces.Gateway) *Registry {
	return &Registry{
		layers:  make(map[string]Descriptor),
		gateway: gw,
	}
}

// Add registers a descriptor.
func (r *Registry) Add(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.layers[d.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.ID)
	}
	r.layers[d.ID] = d.clone()
	r.order = append(r.order, d.ID)
	return nil
}

// Remove unregisters a descriptor and returns it.
func (r *Registry) Remove(id string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.layers[id]
	if !ok {
		return Descriptor{}, false
	}
	delete(r.layers, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return d, true
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.layers[id]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// List returns all descriptors in insertion order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.layers[id].clone())
	}
	return out
}

// Len returns the number of registered layers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ZOrderIDs expands tree ids into z-order ids, keeping order. Unknown ids
// are passed through unchanged.
func (r *Registry) ZOrderIDs(ids []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, id := range ids {
		if d, ok := r.layers[id]; ok {
			out = append(out, d.ZOrderIDs()...)
			continue
		}
		out = append(out, id)
	}
	return out
}

type document struct {
	Layers []Descriptor `yaml:"layers"`
}

// Save persists the registry.
func (r *Registry) Save(ctx context.Context) error {
	content, err := yaml.Marshal(document{Layers: r.List()})
	if err != nil {
		return fmt.Errorf("failed to marshal layers: %w", err)
	}
	if err := r.gateway.Save(ctx, interfaces.KeyLayers, content); err != nil {
		return fmt.Errorf("failed to save layers: %w", err)
	}
	return nil
}

// Load replaces the registry with the persisted one. Invalid or duplicate
// descriptors are skipped.
func (r *Registry) Load(ctx context.Context) error {
	content, err := r.gateway.Load(ctx, interfaces.KeyLayers)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load layers: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal layers: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.layers = make(map[string]Descriptor, len(doc.Layers))
	r.order = r.order[:0]
	for _, d := range doc.Layers {
		if d.Validate() != nil {
			continue
		}
		if _, dup := r.layers[d.ID]; dup {
			continue
		}
		r.layers[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return nil
}
