package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/traitmint/am"
	"github.com/teranos/traitmint/catalog"
	"github.com/teranos/traitmint/distribution"
	tmtest "github.com/teranos/traitmint/internal/testing"
	"github.com/teranos/traitmint/table"
	"github.com/teranos/traitmint/trait"
)

func letterConfig(t *testing.T) *am.Config {
	t.Helper()
	cfg := am.Defaults()
	cfg.Catalog.Root = tmtest.WriteCatalog(t, t.TempDir(), 8, 8, tmtest.LetterCatalog())
	cfg.Catalog.RatioTable = filepath.Join(t.TempDir(), "ratio.csv")
	cfg.Catalog.RuleTable = filepath.Join(t.TempDir(), "rules.csv")
	cfg.Generate.OutputDir = t.TempDir()
	cfg.Metadata.Dir = filepath.Join(t.TempDir(), "metadata")
	cfg.Database.Path = ""
	return cfg
}

func TestRatioRows(t *testing.T) {
	cfg := letterConfig(t)
	cat, err := loadCatalog(cfg)
	require.NoError(t, err)
	dist, err := buildDistribution(cfg, cat)
	require.NoError(t, err)

	observed := map[string]float64{"A": 0.5, "B": 0.5}
	rows := ratioRows("FirstLetter", observed, dist)

	require.Len(t, rows, 5, "header plus every catalog value")
	assert.Equal(t, []string{"Value", "Observed", "Expected", "Δ"}, rows[0])
	assert.Equal(t, []string{"A", "50.00%", "25.00%", "+25.00"}, rows[1])
	assert.Equal(t, []string{"C", "0.00%", "25.00%", "-25.00"}, rows[3])
	assert.Equal(t, "H", rows[4][0])
}

func TestRatioRows_WithoutDistribution(t *testing.T) {
	rows := ratioRows("FirstLetter", map[string]float64{"B": 1}, (*distribution.Table)(nil))

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"B", "100.00%", "-", "-"}, rows[1])
}

func TestIsRaster(t *testing.T) {
	assert.True(t, isRaster("1-black-A-R.png"))
	assert.True(t, isRaster("1-black-A-R.JPG"))
	assert.True(t, isRaster("7.jpeg"))
	assert.False(t, isRaster("attr.csv"))
	assert.False(t, isRaster("7"))
}

func TestLoadRules_MissingTableMeansNoRules(t *testing.T) {
	cfg := letterConfig(t)
	cat, err := loadCatalog(cfg)
	require.NoError(t, err)

	tbl, err := loadRules(cfg, cat)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestLoadRules_ForcedValueNeedsAsset(t *testing.T) {
	cfg := letterConfig(t)
	cat, err := loadCatalog(cfg)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfg.Catalog.RuleTable, []byte(
		"trigger_property,trigger_value,targets,kind\n"+
			"Background,black,\"[(FirstLetter,Z)]\",1\n"), 0644))
	_, err = loadRules(cfg, cat)
	assert.Error(t, err)
}

func TestOpenLedger_Disabled(t *testing.T) {
	cfg := letterConfig(t)

	store, database, err := openLedger(cfg)
	require.NoError(t, err)
	assert.Nil(t, store)
	assert.Nil(t, database)
}

func TestWriteMetadata_FromAttributeTable(t *testing.T) {
	cfg := letterConfig(t)
	cfg.Metadata.Names = []string{"Letters"}
	cfg.Metadata.Description = "two letters"

	props := []string{"Background", "FirstLetter", "SecondLetter"}
	var artifacts []trait.Artifact
	for i, values := range [][]string{{"black", "A", "R"}, {"blue", "H", "S"}} {
		set := trait.NewAttributeSet("parts", props, values)
		artifacts = append(artifacts, trait.Artifact{
			Index: i + 1,
			Path:  filepath.Join(cfg.Generate.OutputDir, trait.FileName(i+1, set, ".png")),
			Set:   set,
		})
	}
	require.NoError(t, table.Write(filepath.Join(cfg.Generate.OutputDir, cfg.Generate.AttrTable), props, artifacts))

	batch, err := readBatch(cfg)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	paths, err := writeMetadata(cfg, batch, map[string]string{
		"2-blue-H-S.png": "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
	})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	var first, second map[string]interface{}
	data, err := os.ReadFile(filepath.Join(cfg.Metadata.Dir, "1"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &first))
	data, err = os.ReadFile(filepath.Join(cfg.Metadata.Dir, "2"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &second))

	assert.Equal(t, "Letters #1", first["name"])
	assert.Equal(t, "two letters", first["description"])
	assert.Equal(t, "1-black-A-R.png", first["image"], "no CID and no base URL leaves the file name")
	assert.Contains(t, second["image"], ".ipfs.dweb.link/")
	assert.Len(t, second["attributes"], 3)
}

func TestLoadCatalog_AppliesRatioTable(t *testing.T) {
	cfg := letterConfig(t)
	cat, err := catalog.Scan(cfg.Catalog.Root, cfg.Catalog.Extensions)
	require.NoError(t, err)
	for i := range cat.Rows {
		if cat.Rows[i].Value == "white" {
			cat.Rows[i].RawWeight = 0
		}
	}
	require.NoError(t, catalog.WriteRatioTable(cfg.Catalog.RatioTable, cat.Rows))

	loaded, err := loadCatalog(cfg)
	require.NoError(t, err)
	dist, err := buildDistribution(cfg, loaded)
	require.NoError(t, err)
	assert.Zero(t, dist.Expected("Background", "white"))
	assert.InDelta(t, 1.0/3, dist.Expected("Background", "black"), 1e-9)
}
