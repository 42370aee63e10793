package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/composer"
	"github.com/spigell/jobmatch/internal/decision"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/requirements"
	"github.com/spigell/jobmatch/internal/util"
)

const defaultMaxLogLength = 200

var errEmptyRequirements = errors.New("extractor returned no requirements")

type Config struct {
	Threshold float64
	// Workers above one process postings concurrently.
	Workers      int
	MaxLogLength int
}

type Deps struct {
	Extractor requirements.Extractor
	Composer  composer.Composer
	Logger    *zap.Logger
}

// Orchestrator drives every posting of a batch through
// extraction, matching, the decision gate and, for Apply, composition.
type Orchestrator struct {
	threshold float64
	workers   int
	maxLogLen int

	extractor requirements.Extractor
	composer  composer.Composer
	logger    *zap.Logger

	now func() time.Time
}

func New(cfg *Config, deps *Deps) (*Orchestrator, error) {
	if cfg == nil {
		cfg = &Config{Threshold: decision.DefaultThreshold}
	}
	if err := decision.ValidateThreshold(cfg.Threshold); err != nil {
		return nil, err
	}
	if deps == nil || deps.Extractor == nil {
		return nil, fmt.Errorf("requirement extractor is required")
	}
	if deps.Composer == nil {
		return nil, fmt.Errorf("response composer is required")
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Orchestrator{
		threshold: cfg.Threshold,
		workers:   workers,
		maxLogLen: maxLogLen,
		extractor: deps.Extractor,
		composer:  deps.Composer,
		logger:    logger.WithFields(deps.Logger),
		now:       time.Now,
	}, nil
}

func (o *Orchestrator) Threshold() float64 {
	return o.threshold
}

// Run processes every posting and returns one record per posting in input order.
// A failing posting never stops the others.
func (o *Orchestrator) Run(ctx context.Context, p *profile.Profile, postings *posting.Postings) *Result {
	result := &Result{
		RunID:     uuid.NewString(),
		Threshold: o.threshold,
		StartedAt: o.now().UTC(),
	}

	var items []*posting.Posting
	if postings != nil {
		items = postings.Items
	}

	log := o.logger.With(zap.String("run_id", result.RunID))
	log.Info("starting pipeline run",
		zap.Int("postings", len(items)),
		zap.Float64("threshold", o.threshold),
		zap.Int("workers", o.workers),
	)

	records := make([]Record, len(items))

	if o.workers == 1 || len(items) < 2 {
		for idx, item := range items {
			records[idx] = o.process(ctx, log, p, item)
		}
	} else {
		// each task owns its own slot, Wait is the only synchronization point
		workers := pool.New().WithMaxGoroutines(o.workers)
		for idx, item := range items {
			idx, item := idx, item
			workers.Go(func() {
				records[idx] = o.process(ctx, log, p, item)
			})
		}
		workers.Wait()
	}

	result.Records = records
	result.FinishedAt = o.now().UTC()

	counts := result.Counts()
	log.Info("pipeline run completed",
		zap.Int("total", counts.Total),
		zap.Int("applied", counts.Applied),
		zap.Int("skipped", counts.Skipped),
		zap.Int("failed", counts.Failed),
	)

	return result
}

// tracker accumulates a single posting's transitions until it is recorded.
type tracker struct {
	record Record
	log    *zap.Logger
}

func (t *tracker) move(state State) {
	t.record.States = append(t.record.States, state)
	t.log.Debug("posting state changed", zap.String(logger.FieldState, string(state)))
}

func (t *tracker) fail(kind FailureKind, err error) Record {
	t.record.Outcome = OutcomeFailed
	t.record.Failure = &Failure{Kind: kind, Reason: err.Error(), Err: err}
	t.move(StateFailed)

	t.log.Warn("posting failed",
		zap.String("failure", string(kind)),
		zap.Error(err),
	)

	return t.finish()
}

func (t *tracker) finish() Record {
	t.move(StateRecorded)
	return t.record
}

func (o *Orchestrator) process(ctx context.Context, log *zap.Logger, p *profile.Profile, item *posting.Posting) Record {
	if item == nil {
		item = &posting.Posting{}
	}

	t := &tracker{
		record: Record{
			PostingID: item.ID,
			Title:     item.Title,
			Company:   item.Company,
			URL:       item.URL,
			States:    []State{StatePending},
		},
		log: logger.WithPosting(log, item.ID, item.Title),
	}

	if err := ctx.Err(); err != nil {
		return t.fail(FailureCanceled, err)
	}

	reqs, err := o.extractor.Extract(ctx, item)
	if err != nil {
		return t.fail(FailureExtraction, asExtractionError(item.ID, err))
	}
	if reqs == nil {
		return t.fail(FailureExtraction, asExtractionError(item.ID, errEmptyRequirements))
	}
	if reqs.PostingID == "" {
		reqs.PostingID = item.ID
	}
	t.record.Level = reqs.Level
	t.record.Salary = reqs.Salary
	t.record.Location = reqs.Location
	t.record.RequiredSkills = reqs.Skills.Names()
	t.move(StateExtracted)

	match, err := matching.Match(p, reqs)
	if err != nil {
		return t.fail(FailureMatching, err)
	}
	t.record.Scored = true
	t.record.Score = match.Score
	t.record.MatchedSkills = match.Matched
	t.record.MissingSkills = match.Missing
	t.move(StateScored)

	t.record.Decision = decision.Decide(match.Score, o.threshold)
	t.move(StateDecided)

	if t.record.Decision == decision.Skip {
		t.record.Outcome = OutcomeSkipped
		t.move(StateSkipped)

		t.log.Info("posting skipped",
			zap.Float64("score", float64(match.Score)),
			zap.Float64("threshold", o.threshold),
			zap.Strings("missing_skills", match.Missing),
		)
		return t.finish()
	}

	meta := composer.Meta{
		ID:       item.ID,
		Title:    item.Title,
		Company:  item.Company,
		Location: item.Location,
		URL:      item.URL,
	}

	artifact, err := o.composer.Compose(ctx, p, reqs, meta)
	if err != nil {
		return t.fail(FailureComposition, asCompositionError(item.ID, err))
	}

	t.record.Artifact = artifact
	t.record.Outcome = OutcomeApplied
	t.move(StateComposed)

	t.log.Info("posting approved",
		zap.Float64("score", float64(match.Score)),
		zap.Float64("threshold", o.threshold),
		zap.String("artifact_preview", util.TruncateForLog(artifact.Text, o.maxLogLen)),
	)

	return t.finish()
}

// asExtractionError keeps collaborator errors within the extraction taxonomy.
func asExtractionError(id string, err error) error {
	var target *requirements.ExtractionError
	if errors.As(err, &target) {
		return err
	}
	return &requirements.ExtractionError{PostingID: id, Err: err}
}

func asCompositionError(id string, err error) error {
	var target *composer.CompositionError
	if errors.As(err, &target) {
		return err
	}
	return &composer.CompositionError{PostingID: id, Err: err}
}
