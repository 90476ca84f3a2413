// Package cache stores serialized compiled modules keyed by module identity.
package cache

import (
	"fmt"
	"sync"
)

// ModuleID is the resolved, project-relative path of a module.
type ModuleID = string

// Cache maps module ids to serialized module artifacts.
type Cache interface {
	// Get returns the stored artifact for id.
	Get(id ModuleID) ([]byte, bool)
	// Insert stores data under id and returns the value it replaced.
	Insert(id ModuleID, data []byte) ([]byte, bool)
}

// Cache modes accepted by New.
const (
	ModeNone   = "none"
	ModeMemory = "memory"
	ModeDisk   = "disk"
)

// New builds a cache for the configured mode. dir is only used by ModeDisk.
func New(mode, dir string) (Cache, error) {
	switch mode {
	case ModeNone:
		return None{}, nil
	case ModeMemory, "":
		return NewMemory(), nil
	case ModeDisk:
		return NewDisk(dir)
	default:
		return nil, fmt.Errorf("unknown cache mode %q", mode)
	}
}

// None never stores anything.
type None struct{}

// Get always misses.
func (None) Get(ModuleID) ([]byte, bool) { return nil, false }

// Insert discards data.
func (None) Insert(ModuleID, []byte) ([]byte, bool) { return nil, false }

// Memory keeps artifacts in a map for the lifetime of its owner.
type Memory struct {
	mu      sync.RWMutex
	entries map[ModuleID][]byte
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[ModuleID][]byte)}
}

// Get implements Cache.
func (m *Memory) Get(id ModuleID) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entries[id]
	return data, ok
}

// Insert implements Cache.
func (m *Memory) Insert(id ModuleID, data []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.entries[id]
	m.entries[id] = data
	return prev, ok
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reset drops every entry.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[ModuleID][]byte)
}
