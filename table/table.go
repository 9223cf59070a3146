// Package table reads and writes the attribute table of a run: a CSV file
// with header "path,<property_1>,<property_2>,..." in canonical property
// order and one row per artifact in index order.
//
// The table can always be re-derived from the output directory, because
// every artifact file name embeds its index and attribute values.
package table

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/trait"
)

// PathColumn is the first header column.
const PathColumn = "path"

// Write writes the attribute table of artifacts to path.
func Write(path string, properties []string, artifacts []trait.Artifact) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create attribute table %s", path)
	}
	defer f.Close()

	if err := Encode(f, properties, artifacts); err != nil {
		return errors.Wrapf(err, "attribute table %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close attribute table %s", path)
}

// Encode writes the table as CSV to w.
func Encode(w io.Writer, properties []string, artifacts []trait.Artifact) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{PathColumn}, properties...)); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, a := range artifacts {
		if len(a.Set.Attrs) != len(properties) {
			return errors.Newf("artifact %d has %d attributes, table has %d properties", a.Index, len(a.Set.Attrs), len(properties))
		}
		if err := writer.Write(a.Row()); err != nil {
			return errors.Wrapf(err, "failed to write artifact %d", a.Index)
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush")
}

// Read loads an attribute table. Artifacts carry their path and values;
// the index is parsed from the file name, or is the row position when the
// name carries none. The group is not recorded in the table and is left empty.
func Read(path string) ([]string, []trait.Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open attribute table %s", path)
	}
	defer f.Close()

	props, artifacts, err := Decode(f)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "attribute table %s", path)
	}
	return props, artifacts, nil
}

// Decode parses attribute table CSV.
func Decode(r io.Reader) ([]string, []trait.Artifact, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, nil, errors.NewConfigurationError("missing header: %v", err)
	}
	if len(header) < 2 || strings.TrimSpace(header[0]) != PathColumn {
		return nil, nil, errors.NewConfigurationError("header must start with %q followed by properties", PathColumn)
	}
	props := make([]string, len(header)-1)
	for i, h := range header[1:] {
		props[i] = strings.TrimSpace(h)
	}

	var artifacts []trait.Artifact
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.NewConfigurationError("line %d: %v", line, err)
		}
		index := len(artifacts)
		if n, _, _, err := ParseFileName(filepath.Base(record[0]), len(props)); err == nil {
			index = n
		}
		artifacts = append(artifacts, trait.Artifact{
			Index: index,
			Path:  record[0],
			Set:   trait.NewAttributeSet("", props, record[1:]),
		})
	}
	return props, artifacts, nil
}

// ParseFileName splits "{index}-{v1}-...-{vN}{ext}" into its parts.
// nValues must match the number of embedded values.
func ParseFileName(name string, nValues int) (int, []string, string, error) {
	ext := filepath.Ext(name)
	parts := strings.Split(strings.TrimSuffix(name, ext), trait.FileNameSeparator)
	if len(parts) != nValues+1 {
		return 0, nil, "", errors.Newf("%s: want index and %d values, got %d fields", name, nValues, len(parts))
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, nil, "", errors.Newf("%s: index %q is not a number", name, parts[0])
	}
	return index, parts[1:], ext, nil
}

// Rescan rebuilds artifacts from the file names in dir, sorted by index.
// Only files with an extension in exts are considered; names that do not
// parse are returned in skipped.
func Rescan(dir string, properties []string, exts []string) (artifacts []trait.Artifact, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %s", dir)
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !allowed[strings.ToLower(strings.TrimPrefix(filepath.Ext(e.Name()), "."))] {
			continue
		}
		index, values, _, err := ParseFileName(e.Name(), len(properties))
		if err != nil {
			skipped = append(skipped, e.Name())
			continue
		}
		artifacts = append(artifacts, trait.Artifact{
			Index: index,
			Path:  filepath.Join(dir, e.Name()),
			Set:   trait.NewAttributeSet("", properties, values),
		})
	}
	sort.SliceStable(artifacts, func(i, j int) bool { return artifacts[i].Index < artifacts[j].Index })
	return artifacts, skipped, nil
}
