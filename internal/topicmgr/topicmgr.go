// Package topicmgr is a small registry of the event topics the runner
// publishes. Registering every topic up front gives one place to detect
// duplicate names and lets the CLI enumerate the full event surface.
package topicmgr

import (
	"fmt"
	"sort"
	"sync"
)

// Topic describes one event channel on the bus.
type Topic struct {
	// Name is the unique dotted identifier, e.g. "runner.install.progress".
	Name string
	// Stage is the pipeline stage that owns the topic (provision, deps,
	// install, run) or "registry" for script bookkeeping events.
	Stage string
	// Description is human-readable documentation shown by `scripthub topics`.
	Description string
}

// Manager holds the set of registered topics.
type Manager struct {
	mu     sync.RWMutex
	topics map[string]Topic
}

// NewManager creates an empty topic manager.
func NewManager() *Manager {
	return &Manager{topics: make(map[string]Topic)}
}

var defaultManager = NewManager()

// Default returns the process-wide manager. Topics are defined at package
// init time, so a single shared registry keeps definitions in one place.
func Default() *Manager {
	return defaultManager
}

// Register adds a topic. Registering the same name twice is a configuration
// error and is rejected.
func (m *Manager) Register(t Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Name == "" {
		return fmt.Errorf("topic name cannot be empty")
	}
	if _, exists := m.topics[t.Name]; exists {
		return fmt.Errorf("topic already registered: %s", t.Name)
	}
	m.topics[t.Name] = t
	return nil
}

// MustRegister registers a topic and panics on error. Topics are defined at
// package level, so a failure here is a startup configuration bug.
func (m *Manager) MustRegister(t Topic) Topic {
	if err := m.Register(t); err != nil {
		panic("topicmgr: " + err.Error())
	}
	return t
}

// Get retrieves a registered topic by name.
func (m *Manager) Get(name string) (Topic, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.topics[name]
	return t, ok
}

// List returns all registered topics sorted by name.
func (m *Manager) List() []Topic {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Topic, 0, len(m.topics))
	for _, t := range m.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
