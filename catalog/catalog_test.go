package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/traitmint/errors"
	tmtesting "github.com/teranos/traitmint/internal/testing"
	"github.com/teranos/traitmint/trait"
)

func writeLetters(t *testing.T) string {
	t.Helper()
	return tmtesting.WriteCatalog(t, filepath.Join(t.TempDir(), "parts"), 8, 8, tmtesting.LetterCatalog())
}

func TestScan(t *testing.T) {
	root := writeLetters(t)

	c, err := Scan(root, []string{"png", "PNG"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Background", "FirstLetter", "SecondLetter"}, c.Properties)
	assert.Equal(t, []string{"parts"}, c.Groups)
	assert.Len(t, c.Rows, 11)
	for _, r := range c.Rows {
		assert.Equal(t, 1.0, r.RawWeight)
	}

	p, ok := c.AssetPath(trait.Value{Group: "parts", Property: "FirstLetter", Value: "B"})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "parts", "02_FirstLetter", "B.png"), p)
}

func TestScan_IgnoresHiddenAndForeignFiles(t *testing.T) {
	root := writeLetters(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "parts", "01_Background", ".DS_Store"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "parts", "01_Background", "notes.txt"), nil, 0644))

	c, err := Scan(root, []string{"png"})
	require.NoError(t, err)
	assert.Len(t, c.Rows, 11)
}

func TestScan_RejectsBadPropertyDir(t *testing.T) {
	root := writeLetters(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "parts", "Hat"), 0755))

	_, err := Scan(root, []string{"png"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestScan_RejectsSeparatorInValue(t *testing.T) {
	root := writeLetters(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "parts", "01_Background", "dark-blue.png"), nil, 0644))

	_, err := Scan(root, []string{"png"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "dark-blue")
}

func TestScan_RejectsConflictingOrder(t *testing.T) {
	root := writeLetters(t)
	tmtesting.WriteCatalog(t, root, 8, 8, []tmtesting.GroupFixture{{
		Name: "parts2",
		Properties: []tmtesting.PropertyFixture{
			{Name: "FirstLetter", Values: []string{"Z"}},
		},
	}})

	_, err := Scan(root, []string{"png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FirstLetter")
}

func TestLoad_AppliesRatioTable(t *testing.T) {
	root := writeLetters(t)
	ratioPath := filepath.Join(t.TempDir(), "ratio.csv")
	content := "group,property,value,raw_weight\n" +
		"parts,SecondLetter,A,3\n" +
		"parts,Background,blue,\n" +
		"parts,FirstLetter,B,0.5\n"
	require.NoError(t, os.WriteFile(ratioPath, []byte(content), 0644))

	c, err := Load(root, []string{"png"}, ratioPath)
	require.NoError(t, err)

	require.Len(t, c.Rows, 3)
	// canonical property order, not file order
	assert.Equal(t, Row{"parts", "Background", "blue", 1}, c.Rows[0])
	assert.Equal(t, Row{"parts", "FirstLetter", "B", 0.5}, c.Rows[1])
	assert.Equal(t, Row{"parts", "SecondLetter", "A", 3}, c.Rows[2])
}

func TestLoad_MissingRatioTableKeepsScan(t *testing.T) {
	root := writeLetters(t)

	c, err := Load(root, []string{"png"}, filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Len(t, c.Rows, 11)
}

func TestApplyRows_UnknownAsset(t *testing.T) {
	c, err := Scan(writeLetters(t), []string{"png"})
	require.NoError(t, err)

	err = c.ApplyRows([]Row{{Group: "parts", Property: "Hat", Value: "cap", RawWeight: 1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestParseRatioTable(t *testing.T) {
	t.Run("legacy header aliases", func(t *testing.T) {
		rows, err := ParseRatioTable(strings.NewReader("folder,prop,value,ratio\nparts,Background,blue,2\n"))
		require.NoError(t, err)
		assert.Equal(t, []Row{{"parts", "Background", "blue", 2}}, rows)
	})

	t.Run("weight column optional", func(t *testing.T) {
		rows, err := ParseRatioTable(strings.NewReader("group,property,value\nparts,Background,blue\n"))
		require.NoError(t, err)
		assert.Equal(t, 1.0, rows[0].RawWeight)
	})

	t.Run("rejects negative weight", func(t *testing.T) {
		_, err := ParseRatioTable(strings.NewReader("group,property,value,raw_weight\nparts,Background,blue,-1\n"))
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})

	t.Run("rejects non-numeric weight", func(t *testing.T) {
		_, err := ParseRatioTable(strings.NewReader("group,property,value,raw_weight\nparts,Background,blue,lots\n"))
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})

	t.Run("rejects missing column", func(t *testing.T) {
		_, err := ParseRatioTable(strings.NewReader("group,value\nparts,blue\n"))
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})
}

func TestWriteRatioTable_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratio.csv")
	rows := []Row{{"parts", "Background", "blue", 1}, {"parts", "FirstLetter", "B", 0.25}}

	require.NoError(t, WriteRatioTable(path, rows))
	got, err := ReadRatioTable(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestFindGroup(t *testing.T) {
	assets := map[trait.Value]string{
		{Group: "parts2", Property: "Background", Value: "blue"}: "b2.png",
		{Group: "parts", Property: "Background", Value: "blue"}:  "b1.png",
	}
	c := New([]Row{{"parts", "Background", "blue", 1}, {"parts2", "Background", "blue", 1}}, assets)

	g, ok := c.FindGroup([]string{"parts2", "parts"}, "Background", "blue")
	require.True(t, ok)
	assert.Equal(t, "parts2", g)
	assert.True(t, c.HasValue("Background", "blue"))
	assert.False(t, c.HasValue("Background", "red"))
	assert.True(t, c.HasAsset("parts2", "Background", "blue"))
	assert.False(t, c.HasAsset("parts3", "Background", "blue"))
}
