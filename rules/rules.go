// Package rules validates and rewrites sampled attribute sets against a
// declared table of compatibility rules.
//
// A rule fires when the attribute set holds trigger_value for
// trigger_property. FORBID rejects the whole set if it contains any target
// pair. FORCE overwrites the target property with the target value, picking
// one target at random when several are listed. NOOP rules are kept for
// table bookkeeping and never fire.
//
// Rules run once each, in table order, and later rules observe the rewrites
// of earlier ones. The table is not required to be confluent; its order is
// part of its meaning.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/trait"
)

// Kind is the effect of a rule. Values match the kind codes of rule tables.
type Kind int

const (
	Forbid Kind = -1
	Noop   Kind = 0
	Force  Kind = 1
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Forbid:
		return "forbid"
	case Noop:
		return "noop"
	case Force:
		return "force"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts a kind code (-1, 0, 1) or name (forbid, noop, force).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "-1", "forbid":
		return Forbid, nil
	case "0", "noop":
		return Noop, nil
	case "1", "force":
		return Force, nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		// tables exported by spreadsheet tools write 1.0 / -1.0
		switch f {
		case -1:
			return Forbid, nil
		case 0:
			return Noop, nil
		case 1:
			return Force, nil
		}
	}
	return 0, errors.NewConfigurationError("unknown rule kind %q (want -1/0/1 or forbid/noop/force)", s)
}

// Target is one (property, value) pair a rule forbids or forces.
type Target struct {
	Property string
	Value    string
}

// Rule is one row of the rule table.
type Rule struct {
	TriggerProperty string
	TriggerValue    string
	Kind            Kind
	Targets         []Target
}

func (r Rule) String() string {
	return fmt.Sprintf("%s=%s %s", r.TriggerProperty, r.TriggerValue, r.Kind)
}

// Chooser picks a uniform index in [0, n). *rand.Rand satisfies it.
type Chooser interface {
	IntN(n int) int
}

// Table is a validated, ordered rule table. It is read-only after
// construction and safe to share between workers.
type Table struct {
	rules []Rule
}

type ruleKey struct {
	property string
	value    string
	kind     Kind
}

// NewTable validates rules and keeps their order. Two rules may not share
// (trigger_property, trigger_value, kind); FORBID and FORCE rules need at
// least one target.
func NewTable(rules []Rule) (*Table, error) {
	seen := make(map[ruleKey]int, len(rules))
	for i, r := range rules {
		if r.TriggerProperty == "" || r.TriggerValue == "" {
			return nil, errors.NewConfigurationError("rule %d: trigger property and value are required", i+1)
		}
		if r.Kind != Forbid && r.Kind != Noop && r.Kind != Force {
			return nil, errors.NewConfigurationError("rule %d: invalid kind %d", i+1, int(r.Kind))
		}
		k := ruleKey{r.TriggerProperty, r.TriggerValue, r.Kind}
		if prev, dup := seen[k]; dup {
			return nil, errors.NewConfigurationError("rule %d duplicates rule %d (%s)", i+1, prev, r)
		}
		seen[k] = i + 1
		if r.Kind != Noop && len(r.Targets) == 0 {
			return nil, errors.NewConfigurationError("rule %d (%s) has no targets", i+1, r)
		}
		for _, tg := range r.Targets {
			if tg.Property == "" || tg.Value == "" {
				return nil, errors.NewConfigurationError("rule %d (%s) has an empty target", i+1, r)
			}
		}
	}
	return &Table{rules: append([]Rule(nil), rules...)}, nil
}

// Empty is a table with no rules.
func Empty() *Table {
	return &Table{}
}

// Rules returns the rules in table order.
func (t *Table) Rules() []Rule {
	return t.rules
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// Check validates the table against a catalog: every property a rule names
// must be declared, and every FORCE target must have an asset in each of
// groups that offers the rule's trigger value. groups are the groups that can
// be sampled; a nil hasAsset skips the asset checks.
func (t *Table) Check(properties, groups []string, hasAsset func(group, property, value string) bool) error {
	declared := make(map[string]bool, len(properties))
	for _, p := range properties {
		declared[p] = true
	}
	for i, r := range t.rules {
		if !declared[r.TriggerProperty] {
			return errors.NewConfigurationError("rule %d (%s): unknown trigger property %q", i+1, r, r.TriggerProperty)
		}
		for _, tg := range r.Targets {
			if !declared[tg.Property] {
				return errors.NewConfigurationError("rule %d (%s): unknown target property %q", i+1, r, tg.Property)
			}
		}
		if r.Kind != Force || hasAsset == nil {
			continue
		}
		for _, tg := range r.Targets {
			offered := false
			for _, g := range groups {
				if !hasAsset(g, tg.Property, tg.Value) {
					if hasAsset(g, r.TriggerProperty, r.TriggerValue) {
						return errors.NewConfigurationError(
							"rule %d (%s): group %q offers %s=%s but has no asset for forced value %s=%s",
							i+1, r, g, r.TriggerProperty, r.TriggerValue, tg.Property, tg.Value)
					}
					continue
				}
				offered = true
			}
			if !offered {
				return errors.NewConfigurationError("rule %d (%s): forced value %s=%s has no asset", i+1, r, tg.Property, tg.Value)
			}
		}
	}
	return nil
}

// Apply evaluates every rule in order against a copy of set.
// It returns the possibly rewritten set and true, or false as soon as a
// FORBID rule rejects the set. The input is never modified.
func (t *Table) Apply(set trait.AttributeSet, rng Chooser) (trait.AttributeSet, bool) {
	out := set.Clone()
	for _, r := range t.rules {
		if r.Kind == Noop {
			continue
		}
		current, ok := out.Get(r.TriggerProperty)
		if !ok || current != r.TriggerValue {
			continue
		}

		switch r.Kind {
		case Forbid:
			for _, tg := range r.Targets {
				if out.Has(tg.Property, tg.Value) {
					return trait.AttributeSet{}, false
				}
			}
		case Force:
			tg := r.Targets[0]
			if len(r.Targets) > 1 {
				tg = r.Targets[rng.IntN(len(r.Targets))]
			}
			// only the first slot of the target property is rewritten
			for i := range out.Attrs {
				if out.Attrs[i].Property == tg.Property {
					out.Attrs[i].Value = tg.Value
					break
				}
			}
		}
	}
	return out, true
}
