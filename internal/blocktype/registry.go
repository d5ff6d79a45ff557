package blocktype

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"resumekit/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Type Registry — the process-wide table of block type descriptors
// ─────────────────────────────────────────────────────────────

// Registry maps block types to their descriptors. It is an explicit instance
// injected into the services, not package-level state: construct it once at
// startup, register everything, then confirm with AllRegistered before
// serving composition operations.
//
// Safe for concurrent reads. Registration overwrites an existing entry (the
// descriptor override file depends on that), but never silently: every
// overwrite is logged at warn level.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[domain.BlockType]Descriptor
	log         zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		descriptors: make(map[domain.BlockType]Descriptor),
		log:         log,
	}
}

// NewBuiltinRegistry creates a registry pre-loaded with every built-in type.
func NewBuiltinRegistry(log zerolog.Logger) *Registry {
	r := NewRegistry(log)
	for _, d := range Builtin() {
		r.Register(d)
	}
	return r
}

// Register stores a descriptor, replacing any previous one for the same type.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, exists := r.descriptors[d.Type]; exists {
		r.log.Warn().
			Str("type", string(d.Type)).
			Str("previous", prev.DisplayName).
			Str("replacement", d.DisplayName).
			Msg("block type re-registered, descriptor overwritten")
	}
	r.descriptors[d.Type] = d
}

// Get returns the descriptor for a type.
func (r *Registry) Get(t domain.BlockType) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[t]
	return d, ok
}

// Has reports whether a type is registered.
func (r *Registry) Has(t domain.BlockType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptors[t]
	return ok
}

// List returns the registered types, sorted for stable output.
func (r *Registry) List() []domain.BlockType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.BlockType, 0, len(r.descriptors))
	for t := range r.descriptors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// AllRegistered confirms every required type has a descriptor. A missing
// type is a fatal configuration error at startup, not a per-operation one.
func (r *Registry) AllRegistered(required []domain.BlockType) (bool, []domain.BlockType) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []domain.BlockType
	for _, t := range required {
		if _, ok := r.descriptors[t]; !ok {
			missing = append(missing, t)
		}
	}
	return len(missing) == 0, missing
}
