// Package catalog provides the trait catalog: the set of available
// (group, property, value) assets, their file locations, and the raw
// occurrence weights read from the ratio table.
//
// On disk a catalog is laid out as
//
//	<root>/<group>/<NN>_<property>/<value>.<ext>
//
// where NN orders the properties. That order is the canonical property order
// and therefore the layering order during composition.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/trait"
)

// Row is one catalog entry as consumed by the distribution table.
type Row struct {
	Group     string
	Property  string
	Value     string
	RawWeight float64
}

// Key returns the trait triple of the row.
func (r Row) Key() trait.Value {
	return trait.Value{Group: r.Group, Property: r.Property, Value: r.Value}
}

// Catalog is a loaded, read-only trait catalog.
type Catalog struct {
	// Rows in catalog order: groups in scan order, properties in canonical
	// order, values in ratio-table (or file name) order.
	Rows []Row
	// Properties in canonical (layering) order.
	Properties []string
	// Groups in first-appearance order.
	Groups []string

	assets map[trait.Value]string
}

// AssetPath resolves a trait triple to its source image path.
func (c *Catalog) AssetPath(v trait.Value) (string, bool) {
	p, ok := c.assets[v]
	return p, ok
}

// FindGroup returns the first group, in the given order, holding an asset
// for (property, value). Used when re-rendering from an attribute table,
// which does not record groups.
func (c *Catalog) FindGroup(groups []string, property, value string) (string, bool) {
	for _, g := range groups {
		if _, ok := c.assets[trait.Value{Group: g, Property: property, Value: value}]; ok {
			return g, true
		}
	}
	return "", false
}

// HasAsset reports whether group offers value for property.
func (c *Catalog) HasAsset(group, property, value string) bool {
	_, ok := c.assets[trait.Value{Group: group, Property: property, Value: value}]
	return ok
}

// HasValue reports whether any group offers value for property.
func (c *Catalog) HasValue(property, value string) bool {
	_, ok := c.FindGroup(c.Groups, property, value)
	return ok
}

// Scan walks root and indexes every asset whose extension is in extensions.
// Every asset gets raw weight 1.
func Scan(root string, extensions []string) (*Catalog, error) {
	groupDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog root %s", root)
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.TrimPrefix(ext, ".")] = true
	}

	c := &Catalog{assets: make(map[trait.Value]string)}
	propOrder := make(map[string]int)

	for _, gd := range groupDirs {
		if !gd.IsDir() || strings.HasPrefix(gd.Name(), ".") {
			continue
		}
		group := gd.Name()
		propDirs, err := os.ReadDir(filepath.Join(root, group))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read group %s", group)
		}

		for _, pd := range propDirs {
			if !pd.IsDir() || strings.HasPrefix(pd.Name(), ".") {
				continue
			}
			order, property, err := parsePropertyDir(pd.Name())
			if err != nil {
				return nil, err
			}
			if prev, seen := propOrder[property]; seen && prev != order {
				return nil, errors.NewConfigurationError(
					"property %q has order %d in group %q but %d elsewhere", property, order, group, prev)
			}
			propOrder[property] = order

			files, err := os.ReadDir(filepath.Join(root, group, pd.Name()))
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read property dir %s/%s", group, pd.Name())
			}
			for _, f := range files {
				if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
					continue
				}
				ext := filepath.Ext(f.Name())
				if !allowed[strings.TrimPrefix(ext, ".")] {
					continue
				}
				value := strings.TrimSuffix(f.Name(), ext)
				if strings.Contains(value, trait.FileNameSeparator) {
					return nil, errors.NewConfigurationError(
						"asset %s/%s/%s: value names may not contain %q, it separates values in artifact file names",
						group, property, value, trait.FileNameSeparator)
				}
				key := trait.Value{Group: group, Property: property, Value: value}
				if _, dup := c.assets[key]; dup {
					return nil, errors.NewConfigurationError("asset %s exists with more than one extension", key)
				}
				c.assets[key] = filepath.Join(root, group, pd.Name(), f.Name())
				c.Rows = append(c.Rows, Row{Group: group, Property: property, Value: value, RawWeight: 1})
			}
		}
		c.addGroup(group)
	}

	c.Properties = sortedProperties(propOrder)
	c.sortRows()
	return c, nil
}

// Load scans root for assets and applies the weights of the ratio table at
// ratioPath. A missing ratio table leaves every weight at 1. Every ratio row
// must name a scanned asset.
func Load(root string, extensions []string, ratioPath string) (*Catalog, error) {
	c, err := Scan(root, extensions)
	if err != nil {
		return nil, err
	}
	if ratioPath == "" {
		return c, nil
	}
	if _, err := os.Stat(ratioPath); os.IsNotExist(err) {
		return c, nil
	}

	rows, err := ReadRatioTable(ratioPath)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyRows(rows); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyRows replaces the catalog rows with rows, keeping canonical property
// order. Rows whose asset was not scanned are a configuration error. Assets
// missing from rows are dropped from sampling.
func (c *Catalog) ApplyRows(rows []Row) error {
	applied := make([]Row, 0, len(rows))
	seen := make(map[trait.Value]bool, len(rows))
	c.Groups = nil
	for _, r := range rows {
		key := r.Key()
		if _, ok := c.assets[key]; !ok {
			return errors.NewConfigurationError("ratio table names %s but no such asset exists", key)
		}
		if seen[key] {
			return errors.NewConfigurationError("ratio table lists %s more than once", key)
		}
		seen[key] = true
		applied = append(applied, r)
		c.addGroup(r.Group)
	}
	c.Rows = applied
	c.sortRows()
	return nil
}

// New builds an in-memory catalog from rows and an asset map. Properties are
// taken in first-appearance order. Used by tests and by callers that supply
// their own catalog source.
func New(rows []Row, assets map[trait.Value]string) *Catalog {
	c := &Catalog{assets: make(map[trait.Value]string, len(assets))}
	for k, v := range assets {
		c.assets[k] = v
	}
	seen := make(map[string]bool)
	for _, r := range rows {
		if !seen[r.Property] {
			seen[r.Property] = true
			c.Properties = append(c.Properties, r.Property)
		}
		c.addGroup(r.Group)
	}
	c.Rows = append([]Row(nil), rows...)
	return c
}

func (c *Catalog) addGroup(group string) {
	for _, g := range c.Groups {
		if g == group {
			return
		}
	}
	c.Groups = append(c.Groups, group)
}

// sortRows orders rows by group appearance then canonical property order,
// preserving the relative order of values.
func (c *Catalog) sortRows() {
	groupRank := make(map[string]int, len(c.Groups))
	for i, g := range c.Groups {
		groupRank[g] = i
	}
	propRank := make(map[string]int, len(c.Properties))
	for i, p := range c.Properties {
		propRank[p] = i
	}
	sort.SliceStable(c.Rows, func(i, j int) bool {
		a, b := c.Rows[i], c.Rows[j]
		if groupRank[a.Group] != groupRank[b.Group] {
			return groupRank[a.Group] < groupRank[b.Group]
		}
		return propRank[a.Property] < propRank[b.Property]
	})
}

// parsePropertyDir splits "NN_property" into its order and name.
func parsePropertyDir(name string) (int, string, error) {
	prefix, property, ok := strings.Cut(name, "_")
	if !ok || property == "" {
		return 0, "", errors.NewConfigurationError("property directory %q must be named NN_<property>", name)
	}
	order, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", errors.NewConfigurationError("property directory %q has a non-numeric order prefix", name)
	}
	return order, property, nil
}

func sortedProperties(order map[string]int) []string {
	props := make([]string, 0, len(order))
	for p := range order {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool {
		if order[props[i]] != order[props[j]] {
			return order[props[i]] < order[props[j]]
		}
		return props[i] < props[j]
	})
	return props
}
