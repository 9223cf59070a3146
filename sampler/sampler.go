// Package sampler draws attribute sets from a distribution table.
//
// Every draw uses explicit inverse-CDF sampling: take k uniform in [0,1),
// walk the cumulative ratios in the table's fixed value order, and select
// the first value whose cumulative sum exceeds k. When k lands exactly on a
// boundary the later value wins. The group is drawn the same way, once per
// attribute set, before any property is sampled.
package sampler

import (
	"math/rand/v2"

	"github.com/teranos/traitmint/distribution"
	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/trait"
)

// Rand is the randomness a Sampler needs. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a PCG generator. A zero seed draws one from the runtime's
// seeded source; stream separates generators that share a seed (one per worker).
func NewRand(seed, stream uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, stream))
}

// Sampler draws from one distribution table. A Sampler is not safe for
// concurrent use; give each worker its own.
type Sampler struct {
	table     *distribution.Table
	rng       Rand
	groups    []string
	groupsCum []float64
}

// New creates a Sampler over table using rng.
func New(table *distribution.Table, rng Rand) *Sampler {
	s := &Sampler{table: table, rng: rng}
	cum := 0.0
	for _, g := range table.Groups() {
		cum += g.Weight
		s.groups = append(s.groups, g.Name)
		s.groupsCum = append(s.groupsCum, cum)
	}
	return s
}

// Sample draws a group, then one value per property of that group.
func (s *Sampler) Sample() (trait.AttributeSet, error) {
	return s.SampleGroup(s.ChooseGroup())
}

// ChooseGroup draws a group by its configured weight.
func (s *Sampler) ChooseGroup() string {
	return s.groups[Pick(s.groupsCum, s.rng.Float64())]
}

// SampleGroup draws one value per property, in canonical order, for group.
func (s *Sampler) SampleGroup(group string) (trait.AttributeSet, error) {
	props := s.table.Properties()
	set := trait.AttributeSet{Group: group, Attrs: make([]trait.Attribute, len(props))}
	for i, p := range props {
		d, ok := s.table.Dist(group, p)
		if !ok {
			return trait.AttributeSet{}, errors.NewCatalogGapError("group %q has no values for property %q", group, p)
		}
		set.Attrs[i] = trait.Attribute{Property: p, Value: d.Values[Pick(d.Cumulative, s.rng.Float64())]}
	}
	return set, nil
}

// Pick returns the first index whose cumulative sum strictly exceeds k.
// If rounding leaves the final cumulative sum at or below k, the last index
// that carries probability mass is returned instead.
func Pick(cumulative []float64, k float64) int {
	for i, c := range cumulative {
		if c > k {
			return i
		}
	}
	for i := len(cumulative) - 1; i > 0; i-- {
		if cumulative[i] > cumulative[i-1] {
			return i
		}
	}
	return 0
}
