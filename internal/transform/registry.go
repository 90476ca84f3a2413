package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Source is the input of a transform.
type Source struct {
	Path string
	Code []byte
}

// Transform converts one source dialect into CommonJS script source.
// Implementations may keep mutable state between calls; the registry
// serializes access through Shared.
type Transform interface {
	Transpile(ctx context.Context, src Source) ([]byte, error)
}

// KeyKind tells names and extensions apart.
type KeyKind uint8

const (
	KeyName KeyKind = iota + 1
	KeyExtension
)

// Key identifies a registration.
type Key struct {
	Kind  KeyKind
	Value string
}

// Name builds a name key.
func Name(name string) Key {
	return Key{Kind: KeyName, Value: name}
}

// Extension builds an extension key. A leading dot is ignored.
func Extension(ext string) Key {
	return Key{Kind: KeyExtension, Value: strings.TrimPrefix(ext, ".")}
}

func (k Key) String() string {
	if k.Kind == KeyExtension {
		return "." + k.Value
	}
	return k.Value
}

// Shared is a transform instance that may be registered under several keys.
// Calls through Shared are serialized.
type Shared struct {
	mu    sync.Mutex
	name  string
	inner Transform
}

// NewShared wraps t for registration.
func NewShared(name string, t Transform) *Shared {
	return &Shared{name: name, inner: t}
}

// Name returns the name the transform was created with.
func (s *Shared) Name() string {
	return s.name
}

// Transpile runs the wrapped transform while holding the instance lock.
func (s *Shared) Transpile(ctx context.Context, src Source) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.inner.Transpile(ctx, src)
}

// Registry maps names and extensions to shared transforms.
type Registry struct {
	mu      sync.RWMutex
	entries map[Key]*Shared
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]*Shared)}
}

// Register stores s under key, replacing any previous registration.
func (r *Registry) Register(key Key, s *Shared) error {
	if key.Value == "" && key.Kind == KeyExtension {
		return fmt.Errorf("transform %q: empty extension", s.Name())
	}
	if key.Kind != KeyName && key.Kind != KeyExtension {
		return fmt.Errorf("transform %q: invalid key kind %d", s.Name(), key.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = s
	return nil
}

// RegisterAll registers one shared instance of t under name and every
// extension in exts.
func (r *Registry) RegisterAll(name string, exts []string, t Transform) (*Shared, error) {
	s := NewShared(name, t)
	for _, ext := range exts {
		if err := r.Register(Extension(ext), s); err != nil {
			return nil, err
		}
	}
	if err := r.Register(Name(name), s); err != nil {
		return nil, err
	}
	return s, nil
}

// ByName looks a transform up by its registered name.
func (r *Registry) ByName(name string) (*Shared, bool) {
	return r.lookup(Name(name))
}

// ByExtension looks a transform up by file extension.
func (r *Registry) ByExtension(ext string) (*Shared, bool) {
	return r.lookup(Extension(ext))
}

func (r *Registry) lookup(key Key) (*Shared, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.entries[key]
	return s, ok
}

// Keys returns all registered keys, names first, sorted.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	keys := make([]Key, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Value < keys[j].Value
	})
	return keys
}
