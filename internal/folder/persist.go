package folder

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/layertree/internal/interfaces"
	"gopkg.in/yaml.v3"
)

// Storage format types

type document struct {
	Root    []string   `yaml:"root"`
	Entries []itemData `yaml:"entries,omitempty"`
}

type itemData struct {
	ID        string   `yaml:"id"`
	Kind      ItemKind `yaml:"kind"`
	Name      string   `yaml:"name,omitempty"`
	Collapsed bool     `yaml:"collapsed,omitempty"`
	Children  []string `yaml:"children,omitempty"`
}

// Persist writes the tree through the gateway.
func (h *Hierarchy) Persist(ctx context.Context) error {
	h.mu.RLock()
	doc := document{Root: h.root}
	h.walk(h.root, func(e *entry) {
		doc.Entries = append(doc.Entries, itemData{
			ID:        e.id,
			Kind:      e.kind,
			Name:      e.name,
			Collapsed: e.collapsed,
			Children:  e.children,
		})
	})
	content, err := yaml.Marshal(doc)
	h.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal folders: %w", err)
	}

	if err := h.gateway.Save(ctx, h.key, content); err != nil {
		return fmt.Errorf("failed to persist folders: %w", err)
	}
	return nil
}

// Load replaces the tree with the persisted one. Parents are rebuilt from the
// children lists; an id listed twice keeps its first position, and entries
// no list reaches are appended to the root.
func (h *Hierarchy) Load(ctx context.Context) error {
	content, err := h.gateway.Load(ctx, h.key)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load folders: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal folders: %w", err)
	}

	byID := make(map[string]itemData, len(doc.Entries))
	var order []string
	for _, d := range doc.Entries {
		if d.ID == "" {
			continue
		}
		if _, dup := byID[d.ID]; dup {
			continue
		}
		if d.Kind != KindFolder {
			d.Kind = KindLayer
		}
		byID[d.ID] = d
		order = append(order, d.ID)
	}

	entries := make(map[string]*entry, len(byID))
	var attach func(parent string, ids []string) []string
	attach = func(parent string, ids []string) []string {
		var out []string
		for _, id := range ids {
			d, ok := byID[id]
			if !ok {
				continue
			}
			if _, placed := entries[id]; placed {
				continue
			}
			e := &entry{
				id:        id,
				kind:      d.Kind,
				name:      d.Name,
				parent:    parent,
				collapsed: d.Collapsed,
			}
			entries[id] = e
			if e.kind == KindFolder {
				e.children = attach(id, d.Children)
			}
			out = append(out, id)
		}
		return out
	}

	root := attach("", doc.Root)
	for _, id := range order {
		if _, placed := entries[id]; !placed {
			root = append(root, attach("", []string{id})...)
		}
	}

	h.mu.Lock()
	h.entries = entries
	h.root = root
	h.mu.Unlock()
	return nil
}
