package generate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/traitmint/catalog"
	"github.com/teranos/traitmint/compose"
	"github.com/teranos/traitmint/distribution"
	"github.com/teranos/traitmint/errors"
	tmtest "github.com/teranos/traitmint/internal/testing"
	"github.com/teranos/traitmint/ledger"
	"github.com/teranos/traitmint/rules"
	"github.com/teranos/traitmint/table"
	"github.com/teranos/traitmint/trait"
)

const size = 8

// memComposer records artifacts without rendering anything.
type memComposer struct{}

func (memComposer) Compose(index int, set trait.AttributeSet) (trait.Artifact, error) {
	return trait.Artifact{Index: index, Path: trait.FileName(index, set, ".png"), Set: set}, nil
}

func letterTable(t *testing.T) (*catalog.Catalog, *distribution.Table) {
	t.Helper()
	root := tmtest.WriteCatalog(t, t.TempDir(), size, size, tmtest.LetterCatalog())
	cat, err := catalog.Scan(root, []string{"png"})
	require.NoError(t, err)
	dist, err := distribution.Build(cat.Rows, cat.Properties, []distribution.GroupWeight{{Name: "parts", Weight: 1}})
	require.NoError(t, err)
	return cat, dist
}

func mustRules(t *testing.T, rs ...rules.Rule) *rules.Table {
	t.Helper()
	rt, err := rules.NewTable(rs)
	require.NoError(t, err)
	return rt
}

func TestPartition(t *testing.T) {
	assert.Equal(t, []Range{{0, 3}, {3, 6}, {6, 10}}, Partition(10, 3))
	assert.Equal(t, []Range{{0, 5}}, Partition(5, 0))

	for _, tc := range []struct{ amount, workers int }{{1, 1}, {7, 7}, {100, 6}, {3, 8}} {
		next := 0
		for _, r := range Partition(tc.amount, tc.workers) {
			assert.Equal(t, next, r.Start, "ranges are contiguous")
			next = r.End
		}
		assert.Equal(t, tc.amount, next, "ranges cover every slot")
	}
}

func TestResolveWorkers(t *testing.T) {
	assert.Equal(t, 1, ResolveWorkers(8, false, 100))
	assert.Equal(t, 4, ResolveWorkers(4, true, 100))
	assert.Equal(t, 3, ResolveWorkers(8, true, 3))
	assert.GreaterOrEqual(t, ResolveWorkers(0, true, 100), 1)
	assert.GreaterOrEqual(t, DefaultWorkers(), 1)
}

func TestMemoryPressure(t *testing.T) {
	const gb = 1 << 30
	assert.Equal(t, 4, calculateSafeWorkerCount(8*gb, 1*gb))
	assert.Equal(t, 1, calculateSafeWorkerCount(1*gb, 4*gb))

	// 4000x4000 RGBA: ~192MB per worker.
	assert.Empty(t, memoryPressureWarning(2, 4000, 4000, 16*gb, 8*gb))
	warning := memoryPressureWarning(64, 4000, 4000, 16*gb, 2*gb)
	assert.Contains(t, warning, "Worker count (64) exceeds recommended")
}

func TestPreflight(t *testing.T) {
	_, dist := letterTable(t)

	occupied := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(occupied, "1-blue-A-R.png"), nil, 0644))

	gapTable, err := distribution.Build([]catalog.Row{
		{Group: "parts", Property: "Background", Value: "blue", RawWeight: 1},
	}, []string{"Background", "Hat"}, []distribution.GroupWeight{{Name: "parts", Weight: 1}})
	require.NoError(t, err)

	tests := []struct {
		name   string
		amount int
		dir    string
		table  *distribution.Table
		want   error
	}{
		{"zero amount", 0, "", dist, errors.ErrConfiguration},
		{"over capacity", 49, "", dist, errors.ErrCapacity},
		{"rarest trait unrepresentable", 3, "", dist, errors.ErrPrecision},
		{"occupied output dir", 10, occupied, dist, errors.ErrResourceConflict},
		{"property without values", 1, "", gapTable, errors.ErrCatalogGap},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := tc.dir
			if dir == "" {
				dir = filepath.Join(t.TempDir(), "images")
			}
			c, err := NewCoordinator(Config{Amount: tc.amount, OutputDir: dir}, Deps{Table: tc.table, Composer: memComposer{}}, nil)
			require.NoError(t, err)
			err = c.Preflight()
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	t.Run("boundary amounts pass", func(t *testing.T) {
		for _, amount := range []int{4, 48} {
			c, err := NewCoordinator(Config{Amount: amount, OutputDir: t.TempDir()}, Deps{Table: dist, Composer: memComposer{}}, nil)
			require.NoError(t, err)
			assert.NoError(t, c.Preflight(), "amount %d", amount)
		}
	})
}

func TestCheckOutputDir_IgnoresNonRasters(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "attr.csv"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.png"), 0755))
	assert.NoError(t, CheckOutputDir(dir))
	assert.NoError(t, CheckOutputDir(filepath.Join(dir, "missing")))
}

func TestGenerate_EndToEnd(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t).Sugar()
	cat, dist := letterTable(t)
	out := filepath.Join(t.TempDir(), "images")

	composer, err := compose.New(cat, compose.Options{Width: size, Height: size, Format: compose.PNG, OutDir: out}, log)
	require.NoError(t, err)
	store := ledger.NewStore(tmtest.CreateTestDB(t), log)

	ruleTable := mustRules(t,
		rules.Rule{TriggerProperty: "Background", TriggerValue: "white", Kind: rules.Forbid,
			Targets: []rules.Target{{Property: "FirstLetter", Value: "H"}}},
		rules.Rule{TriggerProperty: "Background", TriggerValue: "green", Kind: rules.Force,
			Targets: []rules.Target{{Property: "SecondLetter", Value: "R"}}},
	)

	const amount, startID = 20, 5
	c, err := NewCoordinator(Config{
		Amount: amount, StartID: startID, OutputDir: out, Workers: 4, Seed: 42,
		AttrTable: "attr.csv", Width: size, Height: size,
	}, Deps{Table: dist, Rules: ruleTable, Composer: composer, Ledger: store}, log)
	require.NoError(t, err)

	result, err := c.Generate(ctx)
	require.NoError(t, err)
	require.Len(t, result.Artifacts, amount)
	assert.Equal(t, uint64(42), result.Seed)
	assert.Equal(t, int64(amount), result.Counters.Accepted)
	assert.GreaterOrEqual(t, result.Counters.Attempts, int64(amount))

	seen := make(map[trait.Fingerprint]bool)
	for i, a := range result.Artifacts {
		assert.Equal(t, startID+i, a.Index, "artifacts are in index order")
		assert.FileExists(t, a.Path)
		assert.Equal(t, trait.FileName(a.Index, a.Set, ".png"), filepath.Base(a.Path))

		fp := a.Set.Fingerprint()
		assert.False(t, seen[fp], "duplicate attribute set %s", a.Set.Canonical())
		seen[fp] = true

		assert.False(t, a.Set.Has("Background", "white") && a.Set.Has("FirstLetter", "H"), "forbidden pair survived")
		if a.Set.Has("Background", "green") {
			assert.True(t, a.Set.Has("SecondLetter", "R"), "forced value missing")
		}
	}

	props, rows, err := table.Read(result.TablePath)
	require.NoError(t, err)
	assert.Equal(t, cat.Properties, props)
	require.Len(t, rows, amount)
	for i, row := range rows {
		assert.Equal(t, startID+i, row.Index)
		assert.Equal(t, result.Artifacts[i].Set.Values(), row.Set.Values())
	}

	run, err := store.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, run.Status)
	assert.Equal(t, ledger.KindGenerate, run.Kind)
	assert.Equal(t, int64(amount), run.Counters.Accepted)
	recorded, err := store.Artifacts(ctx, result.RunID)
	require.NoError(t, err)
	assert.Len(t, recorded, amount)

	_, err = c.Generate(ctx)
	assert.True(t, errors.Is(err, errors.ErrResourceConflict), "a second run into the same directory is refused")
}

func TestGenerate_SameSeedSameOutput(t *testing.T) {
	_, dist := letterTable(t)
	run := func() []string {
		c, err := NewCoordinator(Config{Amount: 12, OutputDir: t.TempDir(), Workers: 1, Seed: 7},
			Deps{Table: dist, Composer: memComposer{}}, nil)
		require.NoError(t, err)
		result, err := c.Generate(context.Background())
		require.NoError(t, err)
		var names []string
		for _, a := range result.Artifacts {
			names = append(names, a.Path)
		}
		return names
	}
	assert.Equal(t, run(), run())
}

func TestGenerate_ExhaustedAttempts(t *testing.T) {
	ctx := context.Background()
	properties := []string{"Background", "Letter"}
	dist, err := distribution.Build([]catalog.Row{
		{Group: "parts", Property: "Background", Value: "black", RawWeight: 1},
		{Group: "parts", Property: "Background", Value: "blue", RawWeight: 1},
		{Group: "parts", Property: "Background", Value: "green", RawWeight: 1},
		{Group: "parts", Property: "Background", Value: "white", RawWeight: 1},
		{Group: "parts", Property: "Letter", Value: "A", RawWeight: 1},
	}, properties, []distribution.GroupWeight{{Name: "parts", Weight: 1}})
	require.NoError(t, err)

	ruleTable := mustRules(t, rules.Rule{TriggerProperty: "Background", TriggerValue: "black", Kind: rules.Forbid,
		Targets: []rules.Target{{Property: "Letter", Value: "A"}}})
	store := ledger.NewStore(tmtest.CreateTestDB(t), nil)

	c, err := NewCoordinator(Config{Amount: 4, OutputDir: t.TempDir(), Workers: 1, Seed: 3, MaxAttempts: 200},
		Deps{Table: dist, Rules: ruleTable, Composer: memComposer{}, Ledger: store}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	_, err = c.Generate(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCapacity))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.StatusFailed, runs[0].Status)
	assert.Equal(t, int64(3), runs[0].Counters.Accepted)
	assert.NotEmpty(t, runs[0].Error)
}

func TestGenerate_Canceled(t *testing.T) {
	_, dist := letterTable(t)
	c, err := NewCoordinator(Config{Amount: 10, OutputDir: t.TempDir(), Workers: 2},
		Deps{Table: dist, Composer: memComposer{}}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Generate(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewCoordinator_Defaults(t *testing.T) {
	c, err := NewCoordinator(Config{}, Deps{}, nil)
	require.NoError(t, err)
	assert.NotZero(t, c.cfg.Seed)
	assert.Equal(t, DefaultMaxAttempts, c.cfg.MaxAttempts)
	assert.Equal(t, 1, c.cfg.Workers)
	assert.Equal(t, 0, c.deps.Rules.Len())
}

func TestGenerate_RequiresComposer(t *testing.T) {
	_, dist := letterTable(t)
	c, err := NewCoordinator(Config{Amount: 4, OutputDir: t.TempDir()}, Deps{Table: dist}, nil)
	require.NoError(t, err)
	assert.NoError(t, c.Preflight())

	_, err = c.Generate(context.Background())
	assert.Error(t, err)
}
