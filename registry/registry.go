// Package registry maps definition file kinds onto statically registered constructors
package registry

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/agnivade/levenshtein"
)

// ErrUnknownKind is returned by Lookup for a kind nobody registered
var ErrUnknownKind = errors.New("unknown kind")

// Registry holds named factories of one component family. It is safe for concurrent use.
type Registry[F any] struct {
	family string

	mu        sync.RWMutex
	factories map[string]F
}

// New creates an empty registry; family names the component in error messages
func New[F any](family string) *Registry[F] {
	return &Registry[F]{family: family, factories: make(map[string]F)}
}

// Register adds a factory, panicking on duplicates since registration happens in init
func (r *Registry[F]) Register(kind string, factory F) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; ok {
		panic(fmt.Sprintf("%s kind %q registered twice", r.family, kind))
	}
	r.factories[kind] = factory
}

// Lookup returns the factory for kind. An unknown kind yields ErrUnknownKind with the
// closest registered kind as a suggestion.
func (r *Registry[F]) Lookup(kind string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[kind]; ok {
		return f, nil
	}
	var zero F
	if kind == "" {
		return zero, fmt.Errorf("%s: missing kind, one of %v: %w", r.family, r.kinds(), ErrUnknownKind)
	}
	if s := r.suggest(kind); s != "" {
		return zero, fmt.Errorf("%s %q, did you mean %q?: %w", r.family, kind, s, ErrUnknownKind)
	}
	return zero, fmt.Errorf("%s %q, one of %v: %w", r.family, kind, r.kinds(), ErrUnknownKind)
}

// Kinds lists the registered kinds in sorted order
func (r *Registry[F]) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kinds()
}

func (r *Registry[F]) kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func (r *Registry[F]) suggest(kind string) string {
	best, score := "", math.MaxInt
	for _, k := range r.kinds() {
		if d := levenshtein.ComputeDistance(kind, k); d < score {
			best, score = k, d
		}
	}
	if score > len(kind)/2+1 {
		return ""
	}
	return best
}
