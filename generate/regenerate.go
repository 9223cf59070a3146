package generate

import (
	"context"
	"strings"

	"github.com/teranos/traitmint/catalog"
	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/ledger"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/progress"
	"github.com/teranos/traitmint/trait"
)

// Regenerate re-composes the rows of an attribute table into the output
// directory. Row i gets index StartID+i regardless of the index it carried
// before, and the attribute table is rewritten to match. Sampling, rules and
// deduplication do not run: the rows are rendered exactly as given.
//
// Attribute tables do not record groups, so each row is rendered from the
// first of groups that holds every one of its values.
func (c *Coordinator) Regenerate(ctx context.Context, cat *catalog.Catalog, groups []string, properties []string, rows []trait.Artifact) (*Result, error) {
	if len(rows) == 0 {
		return nil, errors.NewConfigurationError("attribute table has no rows")
	}
	if len(groups) == 0 {
		groups = cat.Groups
	}
	if err := checkProperties(cat.Properties, properties); err != nil {
		return nil, err
	}

	sets := make([]trait.AttributeSet, len(rows))
	for i, row := range rows {
		set, err := resolveSet(cat, groups, properties, row.Set)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		sets[i] = set
	}

	if err := CheckOutputDir(c.cfg.OutputDir); err != nil {
		return nil, err
	}

	counters := &progress.Counters{}
	return c.run(ctx, ledger.KindRegenerate, len(sets), properties, counters, func(ctx context.Context, worker int, r Range) ([]trait.Artifact, error) {
		log := logger.LoggerFromContext(ctx, c.logger).With(logger.FieldWorker, worker)
		log.Debugw("Worker started", logger.FieldRange, []int{r.Start, r.End})

		out := make([]trait.Artifact, 0, r.Len())
		for slot := r.Start; slot < r.End; slot++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			counters.Attempt()
			art, err := c.deps.Composer.Compose(slot+c.cfg.StartID, sets[slot])
			if err != nil {
				return nil, err
			}
			out = append(out, art)
			c.reportAccepted(counters.Accept(), len(sets), counters)
		}
		return out, nil
	})
}

// checkProperties requires the table columns to be the catalog's properties
// in canonical order, since that order is the layering order.
func checkProperties(want, got []string) error {
	if len(want) != len(got) {
		return errors.NewConfigurationError("attribute table has properties [%s], catalog has [%s]",
			strings.Join(got, ", "), strings.Join(want, ", "))
	}
	for i := range want {
		if want[i] != got[i] {
			return errors.NewConfigurationError("attribute table column %d is %q, catalog expects %q", i+2, got[i], want[i])
		}
	}
	return nil
}

// resolveSet validates every value of set against the catalog and assigns
// the first group offering all of them.
func resolveSet(cat *catalog.Catalog, groups []string, properties []string, set trait.AttributeSet) (trait.AttributeSet, error) {
	values := set.Values()
	for i, v := range values {
		if !cat.HasValue(properties[i], v) {
			return trait.AttributeSet{}, errors.NewConfigurationError("value %q of %s is not in the catalog", v, properties[i])
		}
	}
	for _, g := range groups {
		complete := true
		for i, v := range values {
			if _, ok := cat.AssetPath(trait.Value{Group: g, Property: properties[i], Value: v}); !ok {
				complete = false
				break
			}
		}
		if complete {
			return trait.NewAttributeSet(g, properties, values), nil
		}
	}
	return trait.AttributeSet{}, errors.NewConfigurationError("no group offers all of %s", strings.Join(values, ", "))
}
