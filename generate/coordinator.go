// Package generate runs a batch: it checks that the requested amount is
// feasible, partitions the index range across workers, and assembles the
// attribute table from their results.
//
// Each worker owns a contiguous sub-range of [0, amount) and fills it slot
// by slot: sample, apply rules, register the fingerprint, compose. A
// rejected sample is simply drawn again. All workers share one
// deduplication registry, so a fingerprint is accepted at most once per run
// regardless of which worker drew it. Results are concatenated in sub-range
// order, so the attribute table is in index order whatever the completion
// order of the workers.
package generate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/traitmint/dedup"
	"github.com/teranos/traitmint/distribution"
	"github.com/teranos/traitmint/errors"
	"github.com/teranos/traitmint/ledger"
	"github.com/teranos/traitmint/logger"
	"github.com/teranos/traitmint/progress"
	"github.com/teranos/traitmint/rules"
	"github.com/teranos/traitmint/sampler"
	"github.com/teranos/traitmint/table"
	"github.com/teranos/traitmint/trait"
)

// DefaultMaxAttempts bounds consecutive rejections while filling one slot.
const DefaultMaxAttempts = 100000

// RasterExtensions are the file types whose presence makes an output
// directory unusable for a new run.
var RasterExtensions = []string{".png", ".jpg", ".jpeg"}

// Composer renders one attribute set to a file.
type Composer interface {
	Compose(index int, set trait.AttributeSet) (trait.Artifact, error)
}

// Ledger records runs. *ledger.Store satisfies it.
type Ledger interface {
	StartRun(ctx context.Context, run *ledger.Run) error
	RecordArtifacts(ctx context.Context, runID string, artifacts []trait.Artifact) error
	FinishRun(ctx context.Context, id string, counters progress.Snapshot, runErr error) error
}

// Config is the resolved configuration of one batch.
type Config struct {
	Amount    int
	StartID   int
	OutputDir string
	// Workers is the degree of parallelism; resolve defaults with ResolveWorkers.
	Workers int
	// Seed 0 draws a random seed; the seed used is reported in the Result.
	Seed        uint64
	MaxAttempts int
	// AttrTable is the attribute table file name inside OutputDir; empty skips it.
	AttrTable string
	// Width and Height size the memory-pressure estimate.
	Width  int
	Height int
}

// Deps are the collaborators of a batch. Ledger and Emitter are optional.
type Deps struct {
	Table    *distribution.Table
	Rules    *rules.Table
	Composer Composer
	Ledger   Ledger
	Emitter  progress.Emitter
}

// Result is the outcome of a successful batch.
type Result struct {
	RunID     string
	Seed      uint64
	Artifacts []trait.Artifact
	Counters  progress.Snapshot
	Duration  time.Duration
	TablePath string
}

// Range is a half-open slot range [Start, End) owned by one worker.
type Range struct {
	Start int
	End   int
}

// Len is the number of slots in the range.
func (r Range) Len() int { return r.End - r.Start }

// Partition splits [0, amount) into workers contiguous, non-overlapping
// ranges covering every slot: worker x owns [x*amount/workers, (x+1)*amount/workers).
func Partition(amount, workers int) []Range {
	if workers < 1 {
		workers = 1
	}
	out := make([]Range, workers)
	for x := 0; x < workers; x++ {
		out[x] = Range{Start: x * amount / workers, End: (x + 1) * amount / workers}
	}
	return out
}

// Coordinator runs batches.
type Coordinator struct {
	cfg     Config
	deps    Deps
	emitter progress.Emitter
	logger  *zap.SugaredLogger
}

// NewCoordinator fills in defaults for cfg and deps. A Composer is only
// needed to run a batch; Preflight works without one.
func NewCoordinator(cfg Config, deps Deps, log *zap.SugaredLogger) (*Coordinator, error) {
	if deps.Rules == nil {
		deps.Rules = rules.Empty()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64() | 1
	}
	return &Coordinator{cfg: cfg, deps: deps, emitter: progress.OrNop(deps.Emitter), logger: logger.OrNop(log)}, nil
}

// Preflight checks every precondition of Generate without writing anything.
func (c *Coordinator) Preflight() error {
	if c.deps.Table == nil {
		return errors.New("generate: distribution table is required")
	}
	amount := c.cfg.Amount
	if amount <= 0 {
		return errors.NewConfigurationError("amount must be positive, got %d", amount)
	}
	if err := CheckOutputDir(c.cfg.OutputDir); err != nil {
		return err
	}
	if err := c.deps.Table.CheckCoverage(); err != nil {
		return err
	}
	if capacity := c.deps.Table.Capacity(); amount > capacity {
		return errors.NewCapacityError("amount %d exceeds the %d distinct combinations the catalog can produce", amount, capacity)
	}
	if minRatio := c.deps.Table.MinRatio(); minRatio*float64(amount) < 1 {
		return errors.NewPrecisionError("amount %d is too small to realize the rarest trait (ratio %g) at least once", amount, minRatio)
	}
	return nil
}

// CheckOutputDir fails with ErrResourceConflict if dir already holds raster
// files. A missing directory is fine.
func CheckOutputDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read output directory %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, raster := range RasterExtensions {
			if ext == raster {
				return errors.NewResourceConflictError("output directory %s already contains %s", dir, e.Name())
			}
		}
	}
	return nil
}

// Generate runs the batch: preflight, dispatch, attribute table, ledger.
func (c *Coordinator) Generate(ctx context.Context) (*Result, error) {
	if err := c.Preflight(); err != nil {
		return nil, err
	}

	registry := dedup.New()
	counters := &progress.Counters{}
	return c.run(ctx, ledger.KindGenerate, c.cfg.Amount, c.deps.Table.Properties(), counters, func(ctx context.Context, worker int, r Range) ([]trait.Artifact, error) {
		return c.fill(ctx, worker, r, registry, counters)
	})
}

type workFunc func(ctx context.Context, worker int, r Range) ([]trait.Artifact, error)

// run dispatches work over the partition of [0, amount) and finishes the run.
// properties are the attribute table columns.
func (c *Coordinator) run(ctx context.Context, kind string, amount int, properties []string, counters *progress.Counters, work workFunc) (*Result, error) {
	if c.deps.Composer == nil {
		return nil, errors.New("generate: composer is required")
	}
	started := time.Now()
	runID := ledger.NewRunID()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.LoggerFromContext(ctx, c.logger)

	workers := c.cfg.Workers
	if workers > amount {
		workers = amount
	}
	if warning := checkMemoryPressure(workers, c.cfg.Width, c.cfg.Height); warning != "" {
		log.Warnw(warning)
		c.emitter.EmitInfo(warning)
	}

	if c.deps.Ledger != nil {
		run := &ledger.Run{
			ID: runID, Kind: kind, StartedAt: started.UTC(), Amount: amount, StartID: c.cfg.StartID,
			OutputDir: c.cfg.OutputDir, Workers: workers, Seed: c.cfg.Seed,
		}
		if err := c.deps.Ledger.StartRun(ctx, run); err != nil {
			return nil, err
		}
	}

	log.Infow("Starting run",
		"kind", kind,
		logger.FieldAmount, amount,
		"start_id", c.cfg.StartID,
		"workers", workers,
		"seed", c.cfg.Seed,
		logger.FieldDir, c.cfg.OutputDir)
	c.emitter.EmitStage(kind, fmt.Sprintf("%d artifacts, %d workers, into %s", amount, workers, c.cfg.OutputDir))

	artifacts, err := dispatch(ctx, Partition(amount, workers), work)

	var tablePath string
	if err == nil && c.cfg.AttrTable != "" {
		tablePath = filepath.Join(c.cfg.OutputDir, c.cfg.AttrTable)
		err = table.Write(tablePath, properties, artifacts)
	}

	snapshot := counters.Snapshot()
	if c.deps.Ledger != nil {
		finishCtx := context.WithoutCancel(ctx)
		if err == nil {
			err = c.deps.Ledger.RecordArtifacts(finishCtx, runID, artifacts)
		}
		if ferr := c.deps.Ledger.FinishRun(finishCtx, runID, snapshot, err); ferr != nil {
			log.Warnw("Failed to finish run in ledger", logger.FieldError, ferr)
		}
	}

	if err != nil {
		c.emitter.EmitError(kind, err)
		log.Errorw("Run failed", logger.FieldError, err, "counters", snapshot)
		return nil, err
	}

	duration := time.Since(started)
	summary := snapshot.Map()
	summary["run_id"] = runID
	summary["duration"] = duration.Round(time.Millisecond).String()
	if tablePath != "" {
		summary["attr_table"] = tablePath
	}
	c.emitter.EmitComplete(summary)
	log.Infow("Run complete",
		logger.FieldCount, len(artifacts),
		logger.FieldDurationMS, duration.Milliseconds(),
		"rule_rejected", snapshot.RuleRejected,
		"duplicate_rejected", snapshot.DuplicateRejected)

	return &Result{
		RunID:     runID,
		Seed:      c.cfg.Seed,
		Artifacts: artifacts,
		Counters:  snapshot,
		Duration:  duration,
		TablePath: tablePath,
	}, nil
}

// dispatch runs work once per range concurrently and concatenates the
// results in range order. The first error cancels the other workers.
func dispatch(ctx context.Context, ranges []Range, work workFunc) ([]trait.Artifact, error) {
	results := make([][]trait.Artifact, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for w, r := range ranges {
		g.Go(func() error {
			out, err := work(gctx, w, r)
			if err != nil {
				return err
			}
			results[w] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	artifacts := make([]trait.Artifact, 0, total)
	for _, r := range results {
		artifacts = append(artifacts, r...)
	}
	return artifacts, nil
}

// fill produces one artifact per slot of r.
func (c *Coordinator) fill(ctx context.Context, worker int, r Range, registry *dedup.Registry, counters *progress.Counters) ([]trait.Artifact, error) {
	rng := sampler.NewRand(c.cfg.Seed, uint64(worker))
	s := sampler.New(c.deps.Table, rng)
	log := logger.LoggerFromContext(ctx, c.logger).With(logger.FieldWorker, worker)
	log.Debugw("Worker started", logger.FieldRange, []int{r.Start, r.End})

	out := make([]trait.Artifact, 0, r.Len())
	for slot := r.Start; slot < r.End; slot++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index := slot + c.cfg.StartID

		set, err := c.accept(s, rng, registry, counters)
		if err != nil {
			return nil, errors.Wrapf(err, "artifact %d", index)
		}
		art, err := c.deps.Composer.Compose(index, set)
		if err != nil {
			return nil, err
		}
		out = append(out, art)
		c.reportAccepted(counters.Accept(), c.cfg.Amount, counters)
	}
	log.Debugw("Worker finished", logger.FieldCount, len(out))
	return out, nil
}

// accept draws until a sample passes the rules and is new to the run.
func (c *Coordinator) accept(s *sampler.Sampler, rng rules.Chooser, registry *dedup.Registry, counters *progress.Counters) (trait.AttributeSet, error) {
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		counters.Attempt()
		set, err := s.Sample()
		if err != nil {
			return trait.AttributeSet{}, err
		}
		set, ok := c.deps.Rules.Apply(set, rng)
		if !ok {
			counters.RejectRule()
			continue
		}
		if !registry.RegisterIfNew(set) {
			counters.RejectDuplicate()
			continue
		}
		return set, nil
	}
	return trait.AttributeSet{}, errors.NewCapacityError(
		"no acceptable new combination after %d attempts; the rule table leaves too few distinct combinations", c.cfg.MaxAttempts)
}

// reportAccepted emits progress roughly every 5% of total.
func (c *Coordinator) reportAccepted(accepted int64, total int, counters *progress.Counters) {
	step := int64(total / 20)
	if step < 1 {
		step = 1
	}
	if accepted%step == 0 || accepted == int64(total) {
		c.emitter.EmitProgress(int(accepted), total, counters.Snapshot().Map())
	}
}
