// Package distribution normalizes raw catalog weights into per-group,
// per-property probability distributions.
//
// Normalization is two-level. Within a (group, property) pair each value's
// ratio is raw_weight / sum(raw_weight over the pair). The group itself
// carries an occurrence weight; group weights sum to 1 and scale only the
// choice of group, never the per-property ratios.
//
// A Table is computed once from the catalog and is read-only afterwards, so
// it is safe to share between workers. Cumulative sums used by inverse-CDF
// sampling are precomputed here rather than per draw.
package distribution

import (
	"math"
	"sort"

	"github.com/teranos/traitmint/catalog"
	"github.com/teranos/traitmint/errors"
)

// WeightTolerance bounds how far group weights may drift from summing to 1.
const WeightTolerance = 1e-6

// GroupWeight is the configured occurrence probability of a group.
type GroupWeight struct {
	Name   string  `mapstructure:"name" json:"name" toml:"name" yaml:"name"`
	Weight float64 `mapstructure:"weight" json:"weight" toml:"weight" yaml:"weight"`
}

// Entry is one normalized (group, property, value, ratio) row.
type Entry struct {
	Group    string
	Property string
	Value    string
	Ratio    float64
}

// PropertyDist is the distribution of one (group, property) pair in
// sampling order: ratios ascending, ties kept in catalog order.
type PropertyDist struct {
	Values     []string
	Ratios     []float64
	Cumulative []float64
}

// NonZero counts values that can actually be drawn.
func (d *PropertyDist) NonZero() int {
	n := 0
	for _, r := range d.Ratios {
		if r > 0 {
			n++
		}
	}
	return n
}

type pairKey struct {
	group    string
	property string
}

// Table is the immutable distribution table of one run.
type Table struct {
	properties []string
	groups     []GroupWeight
	dists      map[pairKey]*PropertyDist
}

// Build normalizes rows. properties is the canonical property order;
// groups is the configured group order with weights.
func Build(rows []catalog.Row, properties []string, groups []GroupWeight) (*Table, error) {
	if len(groups) == 0 {
		return nil, errors.NewConfigurationError("no groups configured")
	}
	if len(properties) == 0 {
		return nil, errors.NewConfigurationError("catalog declares no properties")
	}

	known := make(map[string]bool, len(groups))
	sum := 0.0
	for _, g := range groups {
		if g.Weight < 0 {
			return nil, errors.NewConfigurationError("group %q has negative weight %v", g.Name, g.Weight)
		}
		if known[g.Name] {
			return nil, errors.NewConfigurationError("group %q configured more than once", g.Name)
		}
		known[g.Name] = true
		sum += g.Weight
	}
	if math.Abs(sum-1) > WeightTolerance {
		return nil, errors.NewConfigurationError("group weights sum to %v, want 1", sum)
	}

	declared := make(map[string]bool, len(properties))
	for _, p := range properties {
		declared[p] = true
	}

	type acc struct {
		values  []string
		weights []float64
		total   float64
	}
	pairs := make(map[pairKey]*acc)
	var order []pairKey
	for _, r := range rows {
		if !known[r.Group] {
			return nil, errors.NewConfigurationError("catalog group %q has no configured weight", r.Group)
		}
		if !declared[r.Property] {
			return nil, errors.NewConfigurationError("catalog property %q is not declared", r.Property)
		}
		if r.RawWeight < 0 || math.IsNaN(r.RawWeight) || math.IsInf(r.RawWeight, 0) {
			return nil, errors.NewConfigurationError("%s has invalid raw weight %v", r.Key(), r.RawWeight)
		}
		k := pairKey{r.Group, r.Property}
		a, ok := pairs[k]
		if !ok {
			a = &acc{}
			pairs[k] = a
			order = append(order, k)
		}
		a.values = append(a.values, r.Value)
		a.weights = append(a.weights, r.RawWeight)
		a.total += r.RawWeight
	}

	t := &Table{
		properties: append([]string(nil), properties...),
		groups:     append([]GroupWeight(nil), groups...),
		dists:      make(map[pairKey]*PropertyDist, len(pairs)),
	}
	for _, k := range order {
		a := pairs[k]
		if a.total <= 0 {
			return nil, errors.NewConfigurationError("group %q property %q has zero total weight", k.group, k.property)
		}
		t.dists[k] = normalize(a.values, a.weights, a.total)
	}
	return t, nil
}

// normalize divides by total, sorts ascending by ratio (stable), and
// precomputes the cumulative sums.
func normalize(values []string, weights []float64, total float64) *PropertyDist {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return weights[idx[i]] < weights[idx[j]]
	})

	d := &PropertyDist{
		Values:     make([]string, len(values)),
		Ratios:     make([]float64, len(values)),
		Cumulative: make([]float64, len(values)),
	}
	cum := 0.0
	for pos, i := range idx {
		ratio := weights[i] / total
		cum += ratio
		d.Values[pos] = values[i]
		d.Ratios[pos] = ratio
		d.Cumulative[pos] = cum
	}
	return d
}

// Properties returns the canonical property order.
func (t *Table) Properties() []string {
	return t.properties
}

// Groups returns the configured groups in order.
func (t *Table) Groups() []GroupWeight {
	return t.groups
}

// Dist returns the distribution of a (group, property) pair.
// The second result is false when the catalog has no values for the pair.
func (t *Table) Dist(group, property string) (*PropertyDist, bool) {
	d, ok := t.dists[pairKey{group, property}]
	if !ok || len(d.Values) == 0 {
		return nil, false
	}
	return d, true
}

// Entries lists every normalized entry, grouped by group then canonical property.
func (t *Table) Entries() []Entry {
	var out []Entry
	for _, g := range t.groups {
		for _, p := range t.properties {
			d, ok := t.Dist(g.Name, p)
			if !ok {
				continue
			}
			for i, v := range d.Values {
				out = append(out, Entry{Group: g.Name, Property: p, Value: v, Ratio: d.Ratios[i]})
			}
		}
	}
	return out
}

// CheckCoverage verifies that every selectable group (weight > 0) has at
// least one drawable value for every property.
func (t *Table) CheckCoverage() error {
	for _, g := range t.groups {
		if g.Weight <= 0 {
			continue
		}
		for _, p := range t.properties {
			d, ok := t.Dist(g.Name, p)
			if !ok || d.NonZero() == 0 {
				return errors.NewCatalogGapError("group %q has no values for property %q", g.Name, p)
			}
		}
	}
	return nil
}

// Capacity is the number of distinct attribute sets the table can produce:
// for each selectable group, the product over properties of the count of
// non-zero-probability values, summed across groups. Saturates at math.MaxInt.
func (t *Table) Capacity() int {
	total := 0
	for _, g := range t.groups {
		if g.Weight <= 0 {
			continue
		}
		product := 1
		for _, p := range t.properties {
			n := 0
			if d, ok := t.Dist(g.Name, p); ok {
				n = d.NonZero()
			}
			product = saturatingMul(product, n)
		}
		total = saturatingAdd(total, product)
	}
	return total
}

// MinRatio returns the smallest non-zero ratio among selectable groups,
// or 0 when no value can be drawn.
func (t *Table) MinRatio() float64 {
	min := 0.0
	for _, g := range t.groups {
		if g.Weight <= 0 {
			continue
		}
		for _, p := range t.properties {
			d, ok := t.Dist(g.Name, p)
			if !ok {
				continue
			}
			for _, r := range d.Ratios {
				if r > 0 && (min == 0 || r < min) {
					min = r
				}
			}
		}
	}
	return min
}

// Expected returns the overall probability of value for property:
// the group-weighted sum of its per-group ratios.
func (t *Table) Expected(property, value string) float64 {
	p := 0.0
	for _, g := range t.groups {
		d, ok := t.Dist(g.Name, property)
		if !ok {
			continue
		}
		for i, v := range d.Values {
			if v == value {
				p += g.Weight * d.Ratios[i]
			}
		}
	}
	return p
}

func saturatingMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}

func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
