// Package overlay keeps the dialogs opened over the board for one session.
package overlay

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when no overlay exists for the id.
var ErrNotFound = errors.New("overlay not found")

// Entry is an overlay mounted in the registry. A closed entry stays mounted
// until it is exited.
type Entry[V any] struct {
	ID      string `json:"id"`
	View    V      `json:"view"`
	Visible bool   `json:"visible"`
	seq     uint64
}

// Registry maps overlay ids to mounted views. It is scoped to the session
// that owns it, which must call ExitAll when it is disposed.
type Registry[V any] struct {
	onExit func(id string, view V)

	mu      sync.Mutex
	seq     uint64
	entries map[string]Entry[V]
}

// New constructs an empty registry. The onExit function, when not nil, is
// called for every entry that is unmounted.
func New[V any](onExit func(id string, view V)) *Registry[V] {
	return &Registry[V]{
		onExit:  onExit,
		entries: make(map[string]Entry[V]),
	}
}

// Open mounts and shows the view under the id. An overlay already open under
// the same id is replaced.
func (r *Registry[V]) Open(id string, view V) {
	r.mu.Lock()

	old, exists := r.entries[id]

	r.seq++
	r.entries[id] = Entry[V]{ID: id, View: view, Visible: true, seq: r.seq}

	r.mu.Unlock()

	if exists && r.onExit != nil {
		r.onExit(old.ID, old.View)
	}
}

// Close hides the overlay but keeps it mounted.
func (r *Registry[V]) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return ErrNotFound
	}

	e.Visible = false
	r.entries[id] = e

	return nil
}

// Exit unmounts the overlay.
func (r *Registry[V]) Exit(id string) error {
	r.mu.Lock()

	e, exists := r.entries[id]
	if !exists {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.entries, id)

	r.mu.Unlock()

	if r.onExit != nil {
		r.onExit(e.ID, e.View)
	}

	return nil
}

// ExitAll unmounts every overlay.
func (r *Registry[V]) ExitAll() {
	r.mu.Lock()

	entries := r.sorted()
	r.entries = make(map[string]Entry[V])

	r.mu.Unlock()

	if r.onExit == nil {
		return
	}

	for _, e := range entries {
		r.onExit(e.ID, e.View)
	}
}

// Get returns the overlay mounted under the id.
func (r *Registry[V]) Get(id string) (Entry[V], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	return e, exists
}

// Entries returns the mounted overlays in the order they were opened.
func (r *Registry[V]) Entries() []Entry[V] {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sorted()
}

// sorted must be called with the lock held.
func (r *Registry[V]) sorted() []Entry[V] {
	entries := make([]Entry[V], 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	return entries
}
