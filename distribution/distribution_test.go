package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/traitmint/catalog"
	"github.com/teranos/traitmint/errors"
)

var props = []string{"Background", "FirstLetter"}

func rows() []catalog.Row {
	return []catalog.Row{
		{Group: "parts", Property: "Background", Value: "blue", RawWeight: 3},
		{Group: "parts", Property: "Background", Value: "green", RawWeight: 1},
		{Group: "parts", Property: "FirstLetter", Value: "A", RawWeight: 1},
		{Group: "parts", Property: "FirstLetter", Value: "B", RawWeight: 1},
		{Group: "parts", Property: "FirstLetter", Value: "C", RawWeight: 0},
		{Group: "parts2", Property: "Background", Value: "black", RawWeight: 2},
		{Group: "parts2", Property: "FirstLetter", Value: "Z", RawWeight: 7},
	}
}

var halfHalf = []GroupWeight{{"parts", 0.5}, {"parts2", 0.5}}

func TestBuild_RatiosSumToOne(t *testing.T) {
	table, err := Build(rows(), props, halfHalf)
	require.NoError(t, err)

	for _, g := range []string{"parts", "parts2"} {
		for _, p := range props {
			d, ok := table.Dist(g, p)
			require.True(t, ok, "%s/%s", g, p)
			sum := 0.0
			for _, r := range d.Ratios {
				sum += r
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
			assert.InDelta(t, 1.0, d.Cumulative[len(d.Cumulative)-1], 1e-9)
		}
	}
}

func TestBuild_SortsAscendingStable(t *testing.T) {
	table, err := Build(rows(), props, halfHalf)
	require.NoError(t, err)

	bg, _ := table.Dist("parts", "Background")
	assert.Equal(t, []string{"green", "blue"}, bg.Values)
	assert.Equal(t, []float64{0.25, 0.75}, bg.Ratios)
	assert.Equal(t, []float64{0.25, 1.0}, bg.Cumulative)

	letters, _ := table.Dist("parts", "FirstLetter")
	assert.Equal(t, []string{"C", "A", "B"}, letters.Values)
	assert.Equal(t, 2, letters.NonZero())
}

func TestBuild_GroupWeightDoesNotScaleRatios(t *testing.T) {
	table, err := Build(rows(), props, []GroupWeight{{"parts", 0.9}, {"parts2", 0.1}})
	require.NoError(t, err)

	d, _ := table.Dist("parts2", "FirstLetter")
	assert.Equal(t, []float64{1}, d.Ratios)
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		rows   []catalog.Row
		groups []GroupWeight
	}{
		{"weights below one", rows(), []GroupWeight{{"parts", 0.5}, {"parts2", 0.4}}},
		{"weights above one", rows(), []GroupWeight{{"parts", 0.7}, {"parts2", 0.4}}},
		{"negative weight", rows(), []GroupWeight{{"parts", 1.5}, {"parts2", -0.5}}},
		{"duplicate group", rows(), []GroupWeight{{"parts", 0.5}, {"parts", 0.5}}},
		{"no groups", rows(), nil},
		{"unconfigured group", rows(), []GroupWeight{{"parts", 1}}},
		{"zero total weight", []catalog.Row{
			{Group: "parts", Property: "Background", Value: "blue", RawWeight: 0},
		}, []GroupWeight{{"parts", 1}}},
		{"undeclared property", []catalog.Row{
			{Group: "parts", Property: "Hat", Value: "cap", RawWeight: 1},
		}, []GroupWeight{{"parts", 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.rows, props, tt.groups)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration), err.Error())
		})
	}
}

func TestBuild_WeightsWithinTolerance(t *testing.T) {
	_, err := Build(rows(), props, []GroupWeight{{"parts", 0.1 + 0.2}, {"parts2", 0.7}})
	assert.NoError(t, err)
}

func TestCapacity(t *testing.T) {
	table, err := Build(rows(), props, halfHalf)
	require.NoError(t, err)
	// parts: 2 backgrounds × 2 non-zero letters; parts2: 1 × 1
	assert.Equal(t, 5, table.Capacity())

	onlyParts, err := Build(rows(), props, []GroupWeight{{"parts", 1}, {"parts2", 0}})
	require.NoError(t, err)
	assert.Equal(t, 4, onlyParts.Capacity())
}

func TestCapacity_Saturates(t *testing.T) {
	assert.Equal(t, math.MaxInt, saturatingMul(math.MaxInt/2, 3))
	assert.Equal(t, math.MaxInt, saturatingAdd(math.MaxInt, 1))
	assert.Equal(t, 0, saturatingMul(0, 5))
}

func TestMinRatio(t *testing.T) {
	table, err := Build(rows(), props, halfHalf)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, table.MinRatio(), 1e-12)
}

func TestCheckCoverage(t *testing.T) {
	gap := append(rows()[:5:5], catalog.Row{Group: "parts2", Property: "Background", Value: "black", RawWeight: 1})
	table, err := Build(gap, props, halfHalf)
	require.NoError(t, err)

	err = table.CheckCoverage()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCatalogGap))

	ignored, err := Build(gap, props, []GroupWeight{{"parts", 1}, {"parts2", 0}})
	require.NoError(t, err)
	assert.NoError(t, ignored.CheckCoverage())
}

func TestExpectedAndEntries(t *testing.T) {
	table, err := Build(rows(), props, halfHalf)
	require.NoError(t, err)

	assert.InDelta(t, 0.375, table.Expected("Background", "blue"), 1e-12)
	assert.InDelta(t, 0.5, table.Expected("FirstLetter", "Z"), 1e-12)
	assert.Len(t, table.Entries(), 7)
	assert.Equal(t, props, table.Properties())
}
