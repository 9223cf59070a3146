// Package dedup holds the run-wide registry of accepted attribute sets.
//
// Every worker of a run shares one Registry. Registration is a single
// critical section: the membership test and the insert happen under the same
// lock, so two workers that sample the same set concurrently cannot both
// accept it.
package dedup

import (
	"sync"

	"github.com/teranos/traitmint/trait"
)

// Registry is a concurrency-safe set of attribute-set fingerprints.
type Registry struct {
	mu   sync.Mutex
	seen map[trait.Fingerprint]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{seen: make(map[trait.Fingerprint]struct{})}
}

// Seed returns a registry pre-populated with sets, e.g. the artifacts of a
// previous run that a new run must not repeat.
func Seed(sets []trait.AttributeSet) *Registry {
	r := New()
	for _, s := range sets {
		r.seen[s.Fingerprint()] = struct{}{}
	}
	return r
}

// RegisterIfNew records set and reports true if no equal set was registered
// before. A false return means the caller must discard the sample.
func (r *Registry) RegisterIfNew(set trait.AttributeSet) bool {
	return r.RegisterFingerprint(set.Fingerprint())
}

// RegisterFingerprint is RegisterIfNew for a precomputed fingerprint.
func (r *Registry) RegisterFingerprint(fp trait.Fingerprint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[fp]; dup {
		return false
	}
	r.seen[fp] = struct{}{}
	return true
}

// Contains reports whether set has been registered.
func (r *Registry) Contains(set trait.AttributeSet) bool {
	fp := set.Fingerprint()
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[fp]
	return ok
}

// Len returns the number of registered sets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
