package trait

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var props = []string{"Background", "FirstLetter", "SecondLetter"}

func TestFingerprint_Deterministic(t *testing.T) {
	a := NewAttributeSet("parts", props, []string{"blue", "B", "R"})
	b := NewAttributeSet("parts", props, []string{"blue", "B", "R"})

	assert.Equal(t, a.Fingerprint(), a.Fingerprint())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint().String(), 64)
	assert.Len(t, a.Fingerprint().Short(), 12)
}

func TestFingerprint_DiffersOnAnyValue(t *testing.T) {
	base := NewAttributeSet("parts", props, []string{"blue", "B", "R"})

	variants := []AttributeSet{
		NewAttributeSet("parts", props, []string{"green", "B", "R"}),
		NewAttributeSet("parts", props, []string{"blue", "C", "R"}),
		NewAttributeSet("parts", props, []string{"blue", "B", "A"}),
		NewAttributeSet("parts2", props, []string{"blue", "B", "R"}),
	}
	for _, v := range variants {
		assert.NotEqual(t, base.Fingerprint(), v.Fingerprint(), v.Canonical())
	}
}

func TestCanonical_NoSeparatorCollisions(t *testing.T) {
	a := NewAttributeSet("g", []string{"p", "q"}, []string{"a-b", "c"})
	b := NewAttributeSet("g", []string{"p", "q"}, []string{"a", "b-c"})

	assert.NotEqual(t, a.Canonical(), b.Canonical())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestClone_DoesNotAlias(t *testing.T) {
	a := NewAttributeSet("parts", props, []string{"blue", "B", "R"})
	c := a.Clone()
	c.Attrs[1].Value = "Z"

	v, ok := a.Get("FirstLetter")
	require.True(t, ok)
	assert.Equal(t, "B", v)
	assert.False(t, a.Equal(c))
}

func TestAccessors(t *testing.T) {
	a := NewAttributeSet("parts", props, []string{"blue", "B", "R"})

	assert.True(t, a.Has("Background", "blue"))
	assert.False(t, a.Has("Background", "green"))
	_, ok := a.Get("Hat")
	assert.False(t, ok)
	assert.Equal(t, []string{"blue", "B", "R"}, a.Values())
}

func TestArtifactRowAndFileName(t *testing.T) {
	set := NewAttributeSet("parts", props, []string{"blue", "B", "R"})
	art := Artifact{Index: 7, Path: "images/7-blue-B-R.png", Set: set}

	assert.Equal(t, "7-blue-B-R.png", FileName(7, set, ".png"))
	assert.Equal(t, []string{"images/7-blue-B-R.png", "blue", "B", "R"}, art.Row())
}
