// Package levelscore implements the incremental job that scores candidate
// grouping levels by history stability versus forecasting complexity.
//
// A run advances only through explicit ProcessNext calls; the package spawns
// no background work. Registry access is guarded for map safety, but callers
// advancing the same run concurrently must still serialize per run ID.
package levelscore

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/model"
)

// ErrUnknownRun signals a run ID with no registered run.
var ErrUnknownRun = eris.New("unknown level-score run")

// DefaultLambda is the complexity-penalty constant in the level score.
const DefaultLambda = 0.05

// DefaultLevels is the built-in candidate enumeration, coarsest to finest.
var DefaultLevels = [][]model.Level{
	{model.LevelDirector},
	{model.LevelDirector, model.LevelState},
	{model.LevelState, model.LevelProductType},
	{model.LevelProductType, model.LevelFamily},
	{model.LevelDirector, model.LevelState, model.LevelProductType},
}

// Source supplies the historical rows a run scores against. ProcessNext
// refetches per chunk, so a dataset that disappears mid-run fails the run.
type Source interface {
	Records(ctx context.Context) ([]model.HistoricalRecord, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]model.HistoricalRecord, error)

// Records implements Source.
func (f SourceFunc) Records(ctx context.Context) ([]model.HistoricalRecord, error) {
	return f(ctx)
}

// StaticSource wraps an in-memory record slice.
func StaticSource(records []model.HistoricalRecord) Source {
	return SourceFunc(func(context.Context) ([]model.HistoricalRecord, error) {
		return records, nil
	})
}

// Registry owns the active level-score runs.
type Registry struct {
	mu     sync.RWMutex
	source Source
	lambda float64
	runs   map[string]*model.LevelScoreRun
}

// NewRegistry creates a registry scoring records from source. A non-positive
// lambda falls back to DefaultLambda.
func NewRegistry(source Source, lambda float64) *Registry {
	if lambda <= 0 {
		lambda = DefaultLambda
	}
	return &Registry{
		source: source,
		lambda: lambda,
		runs:   make(map[string]*model.LevelScoreRun),
	}
}

// Start creates a run over the supplied candidate levels, or DefaultLevels
// when none are given. Combination totals are computed eagerly so progress is
// reportable before any scoring work happens. The run returns in running
// status, or completed immediately when the candidate list is empty.
func (r *Registry) Start(ctx context.Context, levels [][]model.Level) (*model.LevelScoreRun, error) {
	if len(levels) == 0 {
		levels = DefaultLevels
	}

	records, err := r.source.Records(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "levelscore: load records")
	}

	run := &model.LevelScoreRun{
		ID:          uuid.New().String(),
		Status:      model.RunStatusRunning,
		TotalLevels: len(levels),
		StartedAt:   time.Now().UTC(),
	}
	for _, dims := range levels {
		for _, d := range dims {
			if d.Rank() < 0 {
				return nil, eris.Errorf("levelscore: unknown dimension %q", d)
			}
		}
		combos := countCombinations(records, dims)
		run.Levels = append(run.Levels, model.CandidateLevel{
			ID:           levelID(dims),
			Dimensions:   append([]model.Level(nil), dims...),
			Combinations: combos,
		})
		run.TotalCombinations += combos
	}

	if len(run.Levels) == 0 {
		run.Status = model.RunStatusCompleted
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()

	zap.L().Info("levelscore: run started",
		zap.String("run_id", run.ID),
		zap.Int("total_levels", run.TotalLevels),
		zap.Int("total_combinations", run.TotalCombinations),
	)
	return run.Clone(), nil
}

// ProcessNext scores exactly one unscored candidate level and returns the
// updated run. Calling it on a completed run is an idempotent no-op.
func (r *Registry) ProcessNext(ctx context.Context, runID string) (*model.LevelScoreRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownRun, "run %s", runID)
	}
	if run.Status.Terminal() {
		return run.Clone(), nil
	}

	records, err := r.source.Records(ctx)
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		now := time.Now().UTC()
		run.FinishedAt = &now
		zap.L().Error("levelscore: run failed", zap.String("run_id", runID), zap.Error(err))
		return run.Clone(), eris.Wrap(err, "levelscore: load records")
	}

	level := run.Levels[run.CurrentIndex]
	cov, combos := levelMetrics(records, level.Dimensions)
	score := 1/(1+cov) - r.lambda*math.Log(1+float64(combos))

	run.Results = append(run.Results, model.LevelScore{
		LevelID:      level.ID,
		Dimensions:   level.Dimensions,
		CoV:          cov,
		Combinations: combos,
		Score:        score,
	})
	run.Status = model.RunStatusRunning
	run.CurrentIndex++
	run.ProcessedLevels++
	run.ProcessedCombinations += combos
	run.LastMessage = fmt.Sprintf("%s: %d combinations scored", level.ID, combos)

	if run.ProcessedLevels >= run.TotalLevels {
		finalize(run)
		run.Status = model.RunStatusCompleted
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	zap.L().Debug("levelscore: chunk processed",
		zap.String("run_id", runID),
		zap.String("level", level.ID),
		zap.Float64("cov", cov),
		zap.Int("combinations", combos),
		zap.Float64("score", score),
	)
	return run.Clone(), nil
}

// Status returns the current run state without advancing it.
func (r *Registry) Status(runID string) (*model.LevelScoreRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownRun, "run %s", runID)
	}
	return run.Clone(), nil
}

// Results returns the ranked scores accumulated so far, best candidate first.
// The full ranking is only meaningful once the run has completed.
func (r *Registry) Results(runID string) ([]model.LevelScore, error) {
	run, err := r.Status(runID)
	if err != nil {
		return nil, err
	}
	results := run.Results
	rankResults(results, run.Status == model.RunStatusCompleted)
	return results, nil
}

func levelID(dims []model.Level) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = string(d)
	}
	return strings.Join(parts, "_")
}
