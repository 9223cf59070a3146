package table

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/trait"
)

// CheckOptions configures Check.
type CheckOptions struct {
	Properties []string
	// Columns restricts duplicate detection to these properties; empty means all.
	Columns    []string
	StartID    int
	Extensions []string
	// AttrTable is the file name of the rebuilt table inside the directory.
	AttrTable string
	// DryRun reports what would change without touching any file.
	DryRun bool
}

// Report summarizes a Check.
type Report struct {
	Artifacts []trait.Artifact
	Removed   []string
	Renamed   int
	Skipped   []string
	// Observed maps property → value → share of artifacts.
	Observed map[string]map[string]float64
}

// Check rescans dir, deletes artifacts whose trait tuple (restricted to
// Columns) repeats an earlier one, renumbers the rest contiguously from
// StartID in index order, and rewrites the attribute table.
func Check(dir string, opts CheckOptions, log *zap.SugaredLogger) (*Report, error) {
	log = logger.OrNop(log)

	cols, err := columnIndexes(opts.Properties, opts.Columns)
	if err != nil {
		return nil, err
	}
	artifacts, skipped, err := Rescan(dir, opts.Properties, opts.Extensions)
	if err != nil {
		return nil, err
	}
	report := &Report{Skipped: skipped}

	seen := make(map[string]bool, len(artifacts))
	kept := artifacts[:0]
	for _, a := range artifacts {
		key := tupleKey(a.Set, cols)
		if seen[key] {
			report.Removed = append(report.Removed, a.Path)
			continue
		}
		seen[key] = true
		kept = append(kept, a)
	}

	if !opts.DryRun {
		for _, p := range report.Removed {
			if err := os.Remove(p); err != nil {
				return nil, errors.Wrapf(err, "failed to remove duplicate %s", p)
			}
			log.Infow("Removed duplicate artifact", logger.FieldPath, p)
		}
	}

	renamed, err := renumber(dir, kept, opts.StartID, opts.DryRun)
	if err != nil {
		return nil, err
	}
	report.Renamed = renamed
	report.Artifacts = kept
	report.Observed = Observed(kept)

	if !opts.DryRun && opts.AttrTable != "" {
		if err := Write(filepath.Join(dir, opts.AttrTable), opts.Properties, kept); err != nil {
			return nil, err
		}
	}
	log.Infow("Checked output directory",
		logger.FieldDir, dir,
		logger.FieldCount, len(kept),
		"removed", len(report.Removed),
		"renamed", renamed)
	return report, nil
}

// renumber assigns indexes startID, startID+1, ... in slice order and renames
// files to match. Renames go through temporary names so no target clobbers
// a file that has not moved yet.
func renumber(dir string, artifacts []trait.Artifact, startID int, dryRun bool) (int, error) {
	type move struct {
		from, tmp, to string
	}
	var moves []move
	for i := range artifacts {
		a := &artifacts[i]
		index := startID + i
		name := trait.FileName(index, a.Set, filepath.Ext(a.Path))
		to := filepath.Join(dir, name)
		if a.Index != index || a.Path != to {
			moves = append(moves, move{from: a.Path, tmp: filepath.Join(dir, ".renumber-"+strconv.Itoa(i)), to: to})
		}
		a.Index = index
		a.Path = to
	}
	if dryRun {
		return len(moves), nil
	}
	for _, m := range moves {
		if err := os.Rename(m.from, m.tmp); err != nil {
			return 0, errors.Wrapf(err, "failed to rename %s", m.from)
		}
	}
	for _, m := range moves {
		if err := os.Rename(m.tmp, m.to); err != nil {
			return 0, errors.Wrapf(err, "failed to rename %s", m.to)
		}
	}
	return len(moves), nil
}

// Observed computes the share of each value per property.
func Observed(artifacts []trait.Artifact) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	if len(artifacts) == 0 {
		return out
	}
	n := float64(len(artifacts))
	for _, a := range artifacts {
		for _, attr := range a.Set.Attrs {
			m, ok := out[attr.Property]
			if !ok {
				m = make(map[string]float64)
				out[attr.Property] = m
			}
			m[attr.Value] += 1 / n
		}
	}
	return out
}

// SortedValues returns the values of one property of an Observed map in name order.
func SortedValues(observed map[string]float64) []string {
	values := make([]string, 0, len(observed))
	for v := range observed {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func columnIndexes(properties, columns []string) ([]int, error) {
	if len(columns) == 0 {
		idx := make([]int, len(properties))
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	pos := make(map[string]int, len(properties))
	for i, p := range properties {
		pos[p] = i
	}
	idx := make([]int, 0, len(columns))
	for _, c := range columns {
		i, ok := pos[c]
		if !ok {
			return nil, errors.NewConfigurationError("unknown column %q (properties: %s)", c, strings.Join(properties, ", "))
		}
		idx = append(idx, i)
	}
	return idx, nil
}

func tupleKey(set trait.AttributeSet, cols []int) string {
	sub := trait.AttributeSet{Attrs: make([]trait.Attribute, len(cols))}
	for i, c := range cols {
		sub.Attrs[i] = set.Attrs[c]
	}
	return sub.Canonical()
}
