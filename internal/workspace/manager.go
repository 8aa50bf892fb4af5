package workspace

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown workspace ids
var ErrNotFound = errors.New("workspace not found")

// Manager owns the live workspaces
type Manager struct {
	loader CandleLoader
	engine Engine
	opts   Options

	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

// NewManager creates a manager that builds workspaces with opts
func NewManager(loader CandleLoader, engine Engine, opts Options) *Manager {
	return &Manager{
		loader:     loader,
		engine:     engine,
		opts:       opts,
		workspaces: make(map[string]*Workspace),
	}
}

// Create adds a new empty workspace
func (m *Manager) Create() *Workspace {
	w := New(m.loader, m.engine, m.opts)
	m.mu.Lock()
	m.workspaces[w.ID] = w
	m.mu.Unlock()
	return w
}

// Get returns the workspace with id
func (m *Manager) Get(id string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workspaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	return w, nil
}

// Delete closes and removes the workspace with id
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	w, ok := m.workspaces[id]
	delete(m.workspaces, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	w.Close()
	return nil
}

// List returns the workspaces, newest first
func (m *Manager) List() []*Workspace {
	m.mu.RLock()
	out := make([]*Workspace, 0, len(m.workspaces))
	for _, w := range m.workspaces {
		out = append(out, w)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live workspaces
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}

// Sweep closes workspaces idle for longer than maxIdle and returns how many went
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var stale []*Workspace

	m.mu.Lock()
	for id, w := range m.workspaces {
		if w.UpdatedAt().Before(cutoff) {
			stale = append(stale, w)
			delete(m.workspaces, id)
		}
	}
	m.mu.Unlock()

	for _, w := range stale {
		w.Close()
	}
	if len(stale) > 0 {
		log.Printf("[WORKSPACE] swept %d idle workspaces", len(stale))
	}
	return len(stale)
}

// CloseAll stops every workspace, used on shutdown
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.workspaces {
		w.Close()
		delete(m.workspaces, id)
	}
}
