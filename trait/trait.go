// Package trait defines the value types shared by every stage of the
// generation engine: catalog triples, attribute sets and their fingerprints,
// and generated artifacts.
//
// All types here are plain values. An AttributeSet is ordered by the
// canonical property order of the catalog; that order is the layering order
// during composition and the column order of the attribute table.
package trait

import (
	"encoding/hex"
	"strconv"
	"strings"

	"lukechampine.com/blake3"
)

// Value identifies one selectable asset: a value of a property within a group.
type Value struct {
	Group    string `json:"group"`
	Property string `json:"property"`
	Value    string `json:"value"`
}

// String renders the triple as group/property/value.
func (v Value) String() string {
	return v.Group + "/" + v.Property + "/" + v.Value
}

// Attribute is one (property, value) pair of an AttributeSet.
type Attribute struct {
	Property string `json:"trait_type"`
	Value    string `json:"value"`
}

// AttributeSet is the full ordered selection of one value per property.
// Group is fixed for the whole set; a set never mixes groups.
type AttributeSet struct {
	Group string      `json:"group"`
	Attrs []Attribute `json:"attributes"`
}

// NewAttributeSet builds a set for group from parallel property and value slices.
func NewAttributeSet(group string, properties, values []string) AttributeSet {
	attrs := make([]Attribute, len(properties))
	for i, p := range properties {
		attrs[i] = Attribute{Property: p, Value: values[i]}
	}
	return AttributeSet{Group: group, Attrs: attrs}
}

// Clone returns a deep copy, so rewrites never alias the caller's slice.
func (s AttributeSet) Clone() AttributeSet {
	attrs := make([]Attribute, len(s.Attrs))
	copy(attrs, s.Attrs)
	return AttributeSet{Group: s.Group, Attrs: attrs}
}

// Get returns the value of the first entry for property.
func (s AttributeSet) Get(property string) (string, bool) {
	for _, a := range s.Attrs {
		if a.Property == property {
			return a.Value, true
		}
	}
	return "", false
}

// Has reports whether the set contains the exact (property, value) pair.
func (s AttributeSet) Has(property, value string) bool {
	for _, a := range s.Attrs {
		if a.Property == property && a.Value == value {
			return true
		}
	}
	return false
}

// Values returns the attribute values in canonical order.
func (s AttributeSet) Values() []string {
	values := make([]string, len(s.Attrs))
	for i, a := range s.Attrs {
		values[i] = a.Value
	}
	return values
}

// Equal reports whether both sets hold the same group and the same pairs in the same order.
func (s AttributeSet) Equal(other AttributeSet) bool {
	if s.Group != other.Group || len(s.Attrs) != len(other.Attrs) {
		return false
	}
	for i := range s.Attrs {
		if s.Attrs[i] != other.Attrs[i] {
			return false
		}
	}
	return true
}

// Canonical returns the canonical string form used for fingerprinting.
// Every token is length-prefixed, so no choice of value strings can make two
// different sets collide on the same string.
func (s AttributeSet) Canonical() string {
	var b strings.Builder
	writeToken := func(tok string) {
		b.WriteString(strconv.Itoa(len(tok)))
		b.WriteByte(':')
		b.WriteString(tok)
	}
	writeToken(s.Group)
	for _, a := range s.Attrs {
		writeToken(a.Property)
		writeToken(a.Value)
	}
	return b.String()
}

// Fingerprint is the deterministic digest of an AttributeSet's canonical form.
type Fingerprint [32]byte

// Fingerprint digests the canonical form with BLAKE3.
func (s AttributeSet) Fingerprint() Fingerprint {
	return Fingerprint(blake3.Sum256([]byte(s.Canonical())))
}

// String returns the hex encoding of the digest.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex characters, for log lines.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

// Artifact is one generated image and the attribute set it renders.
type Artifact struct {
	Index int          `json:"index"`
	Path  string       `json:"path"`
	Set   AttributeSet `json:"set"`
}

// Row returns the attribute-table row: path followed by values in canonical order.
func (a Artifact) Row() []string {
	return append([]string{a.Path}, a.Set.Values()...)
}

// FileNameSeparator joins the index and values in an artifact file name.
const FileNameSeparator = "-"

// FileName builds "{index}-{value1}-{value2}-...{ext}" for an artifact.
func FileName(index int, set AttributeSet, ext string) string {
	parts := append([]string{strconv.Itoa(index)}, set.Values()...)
	return strings.Join(parts, FileNameSeparator) + ext
}
