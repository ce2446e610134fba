package folder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/artpar/layertree/internal/interfaces"
	"github.com/google/uuid"
)

// Common errors.
var (
	ErrNotFound  = errors.New("folder entry not found")
	ErrNotFolder = errors.New("entry is not a folder")
	ErrDuplicate = errors.New("entry already exists")
	ErrCycle     = errors.New("move would place a folder inside itself")
	ErrSelfMove  = errors.New("cannot move an entry relative to itself")
)

// ItemKind distinguishes folders from the layer entries they contain.
type ItemKind string

const (
	KindFolder ItemKind = "folder"
	KindLayer  ItemKind = "layer"
)

// Item is a read-only view of a hierarchy entry.
type Item struct {
	ID        string
	Kind      ItemKind
	Name      string
	ParentID  string
	Collapsed bool
	Children  []string
}

// IsFolder reports whether the item is a folder.
func (i Item) IsFolder() bool { return i.Kind == KindFolder }

// Spec describes a folder to create or edit.
type Spec struct {
	ID        string
	Children  []string
	Name      string
	ParentID  string
	Collapsed bool
}

// EventType identifies a structural change.
type EventType int

const (
	EventCreated EventType = iota
	EventUpdated
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is sent to listeners after a folder is created, edited or removed.
type Event struct {
	Type EventType
	ID   string
}

type entry struct {
	id        string
	kind      ItemKind
	name      string
	parent    string
	collapsed bool
	children  []string
}

// Hierarchy is the folder containment tree. Entries live in an arena keyed by
// id; parent is a plain id, and every id is listed under exactly one parent
// or at the root.
type Hierarchy struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	root      []string
	gateway   interfaces.Gateway
	key       string
	listeners []func(Event)
	newID     func() string
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(h *Hierarchy) {
		h.key = key
	}
}

// WithIDGenerator sets how ids are minted for specs without one.
func WithIDGenerator(fn func() string) Option {
	return func(h *Hierarchy) {
		h.newID = fn
	}
}

// New creates an empty hierarchy persisted through gw.
func New(gw interfaces.Gateway, opts ...Option) *Hierarchy {
	h := &Hierarchy{
		entries: make(map[string]*entry),
		gateway: gw,
		key:     interfaces.KeyFolders,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnChange registers a listener for structural changes.
func (h *Hierarchy) OnChange(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Contains reports whether id is in the hierarchy.
func (h *Hierarchy) Contains(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.entries[id]
	return ok
}

// Get returns the entry for id.
func (h *Hierarchy) Get(id string) (Item, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.entries[id]
	if !ok {
		return Item{}, false
	}
	return e.item(), true
}

// ParentOf returns the parent folder id of id ("" at root).
func (h *Hierarchy) ParentOf(id string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.entries[id]
	if !ok {
		return "", false
	}
	return e.parent, true
}

// RootIDs returns the top-level ids in order.
func (h *Hierarchy) RootIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.root...)
}

// Children returns the ordered children of a folder, or the root ids for "".
func (h *Hierarchy) Children(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if id == "" {
		return append([]string(nil), h.root...)
	}
	if e, ok := h.entries[id]; ok {
		return append([]string(nil), e.children...)
	}
	return nil
}

// Folders returns every folder in tree order.
func (h *Hierarchy) Folders() []Item {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Item
	h.walk(h.root, func(e *entry) {
		if e.kind == KindFolder {
			out = append(out, e.item())
		}
	})
	return out
}

// DescendantLayers returns every layer id under id in tree order. For a
// layer id it returns the id itself.
func (h *Hierarchy) DescendantLayers(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.entries[id]
	if !ok {
		return nil
	}
	if e.kind == KindLayer {
		return []string{id}
	}

	var out []string
	h.walk(e.children, func(c *entry) {
		if c.kind == KindLayer {
			out = append(out, c.id)
		}
	})
	return out
}

// AddLayer registers a layer at the top of parentID ("" for root).
func (h *Hierarchy) AddLayer(id, parentID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	if err := h.checkFolder(parentID); err != nil {
		return err
	}

	h.entries[id] = &entry{id: id, kind: KindLayer, parent: parentID}
	h.setList(parentID, insertAt(h.list(parentID), 0, id))
	return nil
}

// RemoveLayer drops a layer entry.
func (h *Hierarchy) RemoveLayer(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.entries[id]
	if !ok || e.kind != KindLayer {
		return false
	}
	h.detach(id)
	delete(h.entries, id)
	return true
}

// CreateOrEditFolder creates the folder described by spec, or edits it in
// place when the id already exists. It returns the folder id.
func (h *Hierarchy) CreateOrEditFolder(spec Spec) (string, error) {
	h.mu.Lock()

	var (
		ev  Event
		err error
	)
	if spec.ID == "" {
		spec.ID = h.newID()
	}
	if e, ok := h.entries[spec.ID]; ok {
		if e.kind != KindFolder {
			h.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrNotFolder, spec.ID)
		}
		err = h.edit(e, spec)
		ev = Event{Type: EventUpdated, ID: spec.ID}
	} else {
		err = h.create(spec)
		ev = Event{Type: EventCreated, ID: spec.ID}
	}
	listeners := h.listeners
	h.mu.Unlock()

	if err != nil {
		return "", err
	}
	notify(listeners, ev)
	return spec.ID, nil
}

// RemoveFolder deletes a folder and promotes its children to the folder's
// former parent, at the folder's former position, in order.
func (h *Hierarchy) RemoveFolder(id string) error {
	h.mu.Lock()

	e, ok := h.entries[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.kind != KindFolder {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFolder, id)
	}

	siblings := h.list(e.parent)
	at := indexOf(siblings, id)
	promoted := e.children
	for _, c := range promoted {
		h.entries[c].parent = e.parent
	}

	next := make([]string, 0, len(siblings)-1+len(promoted))
	next = append(next, siblings[:at]...)
	next = append(next, promoted...)
	next = append(next, siblings[at+1:]...)
	h.setList(e.parent, next)
	delete(h.entries, id)

	listeners := h.listeners
	h.mu.Unlock()

	notify(listeners, Event{Type: EventRemoved, ID: id})
	return nil
}

// RemoveFolderTree deletes a folder with everything under it and returns the
// removed layer ids.
func (h *Hierarchy) RemoveFolderTree(id string) ([]string, error) {
	h.mu.Lock()

	e, ok := h.entries[id]
	if !ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.kind != KindFolder {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFolder, id)
	}

	var removed []string
	var doomed []string
	h.walk(e.children, func(c *entry) {
		doomed = append(doomed, c.id)
		if c.kind == KindLayer {
			removed = append(removed, c.id)
		}
	})
	h.detach(id)
	delete(h.entries, id)
	for _, d := range doomed {
		delete(h.entries, d)
	}

	listeners := h.listeners
	h.mu.Unlock()

	notify(listeners, Event{Type: EventRemoved, ID: id})
	return removed, nil
}

// Move relocates id to sit immediately before (or after) targetID among
// targetID's siblings. id may be a layer or a folder.
func (h *Hierarchy) Move(id, targetID string, after bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id == targetID {
		return fmt.Errorf("%w: %s", ErrSelfMove, id)
	}
	if _, ok := h.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	target, ok := h.entries[targetID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, targetID)
	}
	if h.isAncestor(id, targetID) {
		return fmt.Errorf("%w: %s into %s", ErrCycle, id, targetID)
	}

	h.detach(id)
	parent := target.parent
	siblings := h.list(parent)
	at := indexOf(siblings, targetID)
	if after {
		at++
	}
	h.setList(parent, insertAt(siblings, at, id))
	h.entries[id].parent = parent
	return nil
}

// MoveInto places id inside folderID at index. A negative or out of range
// index appends.
func (h *Hierarchy) MoveInto(id, folderID string, index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := h.checkFolder(folderID); err != nil {
		return err
	}
	if id == folderID || h.isAncestor(id, folderID) {
		return fmt.Errorf("%w: %s into %s", ErrCycle, id, folderID)
	}

	h.detach(id)
	list := h.list(folderID)
	if index < 0 || index > len(list) {
		index = len(list)
	}
	h.setList(folderID, insertAt(list, index, id))
	h.entries[id].parent = folderID
	return nil
}

// Snapshot is an opaque copy of the hierarchy state.
type Snapshot struct {
	entries map[string]entry
	root    []string
}

// Snapshot captures the current tree for Restore.
func (h *Hierarchy) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap := Snapshot{
		entries: make(map[string]entry, len(h.entries)),
		root:    append([]string(nil), h.root...),
	}
	for id, e := range h.entries {
		c := *e
		c.children = append([]string(nil), e.children...)
		snap.entries[id] = c
	}
	return snap
}

// Restore replaces the tree with a snapshot.
func (h *Hierarchy) Restore(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = make(map[string]*entry, len(snap.entries))
	for id, e := range snap.entries {
		c := e
		c.children = append([]string(nil), e.children...)
		h.entries[id] = &c
	}
	h.root = append([]string(nil), snap.root...)
}

// Internal helpers

func (h *Hierarchy) create(spec Spec) error {
	if err := h.checkFolder(spec.ParentID); err != nil {
		return err
	}
	children, err := h.adoptable(spec.ID, spec.ParentID, spec.Children)
	if err != nil {
		return err
	}

	// The new folder takes the place of its first child when that child
	// already sits under the same parent; otherwise it goes on top.
	at := 0
	if len(children) > 0 && h.entries[children[0]].parent == spec.ParentID {
		at = indexOf(h.list(spec.ParentID), children[0])
	}

	f := &entry{
		id:        spec.ID,
		kind:      KindFolder,
		name:      spec.Name,
		parent:    spec.ParentID,
		collapsed: spec.Collapsed,
	}
	h.entries[spec.ID] = f
	h.setList(spec.ParentID, insertAt(h.list(spec.ParentID), at, spec.ID))

	for _, c := range children {
		h.detach(c)
		h.entries[c].parent = spec.ID
		f.children = append(f.children, c)
	}
	return nil
}

func (h *Hierarchy) edit(f *entry, spec Spec) error {
	children, err := h.adoptable(f.id, f.parent, spec.Children)
	if err != nil {
		return err
	}

	keep := make(map[string]bool, len(children))
	for _, c := range children {
		keep[c] = true
	}

	// Dropped children move up to the folder's parent, right after it.
	var dropped []string
	for _, c := range f.children {
		if !keep[c] {
			dropped = append(dropped, c)
		}
	}
	for _, c := range children {
		if h.entries[c].parent != f.id {
			h.detach(c)
		}
	}
	if len(dropped) > 0 {
		siblings := h.list(f.parent)
		at := indexOf(siblings, f.id) + 1
		next := make([]string, 0, len(siblings)+len(dropped))
		next = append(next, siblings[:at]...)
		next = append(next, dropped...)
		next = append(next, siblings[at:]...)
		h.setList(f.parent, next)
		for _, c := range dropped {
			h.entries[c].parent = f.parent
		}
	}

	for _, c := range children {
		h.entries[c].parent = f.id
	}
	f.children = children
	f.name = spec.Name
	f.collapsed = spec.Collapsed
	return nil
}

// adoptable validates the children a folder should own and removes
// duplicates. A child may not be the folder itself or one of its ancestors.
func (h *Hierarchy) adoptable(folderID, parentID string, ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := h.entries[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if id == folderID || id == parentID || h.isAncestor(id, parentID) {
			return nil, fmt.Errorf("%w: %s into %s", ErrCycle, id, folderID)
		}
		out = append(out, id)
	}
	return out, nil
}

func (h *Hierarchy) checkFolder(id string) error {
	if id == "" {
		return nil
	}
	e, ok := h.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.kind != KindFolder {
		return fmt.Errorf("%w: %s", ErrNotFolder, id)
	}
	return nil
}

// isAncestor reports whether ancestor appears on the parent chain of id.
func (h *Hierarchy) isAncestor(ancestor, id string) bool {
	for id != "" {
		e, ok := h.entries[id]
		if !ok {
			return false
		}
		if e.parent == ancestor {
			return true
		}
		id = e.parent
	}
	return false
}

func (h *Hierarchy) list(parentID string) []string {
	if parentID == "" {
		return h.root
	}
	return h.entries[parentID].children
}

func (h *Hierarchy) setList(parentID string, ids []string) {
	if parentID == "" {
		h.root = ids
		return
	}
	h.entries[parentID].children = ids
}

func (h *Hierarchy) detach(id string) {
	e := h.entries[id]
	list := h.list(e.parent)
	if i := indexOf(list, id); i >= 0 {
		h.setList(e.parent, append(list[:i:i], list[i+1:]...))
	}
}

func (h *Hierarchy) walk(ids []string, fn func(*entry)) {
	for _, id := range ids {
		e, ok := h.entries[id]
		if !ok {
			continue
		}
		fn(e)
		if e.kind == KindFolder {
			h.walk(e.children, fn)
		}
	}
}

func (e *entry) item() Item {
	return Item{
		ID:        e.id,
		Kind:      e.kind,
		Name:      e.name,
		ParentID:  e.parent,
		Collapsed: e.collapsed,
		Children:  append([]string(nil), e.children...),
	}
}

func notify(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func insertAt(ids []string, at int, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:at]...)
	out = append(out, id)
	return append(out, ids[at:]...)
}
