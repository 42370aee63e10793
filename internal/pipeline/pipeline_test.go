package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobmatch/internal/composer"
	"github.com/spigell/jobmatch/internal/decision"
	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/requirements"
)

type stubComposer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *stubComposer) Compose(_ context.Context, _ *profile.Profile, _ *requirements.Set, meta composer.Meta) (*composer.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, meta.ID)
	if s.err != nil {
		return nil, s.err
	}
	return &composer.Artifact{PostingID: meta.ID, Text: "letter for " + meta.Title}, nil
}

type stubExtractor struct {
	set *requirements.Set
	err error
}

func (s *stubExtractor) Extract(context.Context, *posting.Posting) (*requirements.Set, error) {
	return s.set, s.err
}

func newOrchestrator(t *testing.T, threshold float64, workers int, c composer.Composer, log *zap.Logger) *Orchestrator {
	t.Helper()

	o, err := New(&Config{Threshold: threshold, Workers: workers}, &Deps{
		Extractor: requirements.NewVocabularyExtractor(),
		Composer:  c,
		Logger:    log,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return o
}

func candidate(skills ...string) *profile.Profile {
	return &profile.Profile{Name: "Ada", Skills: profile.NewSkillSet(skills...)}
}

func mlPosting(id string) *posting.Posting {
	return &posting.Posting{
		ID:       id,
		Title:    "ML Engineer",
		Company:  "Acme",
		Location: "Berlin",
		Salary:   "100k",
		Skills:   []string{"Python", "PyTorch", "NLP"},
		Text:     "Build NLP models with Python and PyTorch.",
	}
}

func TestRunFullMatchApplies(t *testing.T) {
	stub := &stubComposer{}
	o := newOrchestrator(t, decision.DefaultThreshold, 1, stub, nil)

	result := o.Run(context.Background(),
		candidate("Python", "PyTorch", "NLP", "Deep Learning"),
		&posting.Postings{Items: []*posting.Posting{mlPosting("ml-1")}},
	)

	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}

	record := result.Records[0]
	if record.Score != 1 || record.Decision != decision.Apply || record.Outcome != OutcomeApplied {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Artifact == nil || record.Artifact.Text != "letter for ML Engineer" {
		t.Fatalf("expected artifact, got %+v", record.Artifact)
	}
	if !reflect.DeepEqual(stub.calls, []string{"ml-1"}) {
		t.Fatalf("expected composer to be called once, got %v", stub.calls)
	}

	expectedStates := []State{StatePending, StateExtracted, StateScored, StateDecided, StateComposed, StateRecorded}
	if !reflect.DeepEqual(record.States, expectedStates) {
		t.Fatalf("expected states %v, got %v", expectedStates, record.States)
	}

	if record.Location != "Berlin" || record.Salary != "100k" {
		t.Fatalf("expected requirement location and salary on record, got %+v", record)
	}

	if result.RunID == "" || result.Threshold != decision.DefaultThreshold {
		t.Fatalf("unexpected run metadata: %+v", result)
	}
}

func TestRunPartialMatchSkips(t *testing.T) {
	stub := &stubComposer{}
	o := newOrchestrator(t, decision.DefaultThreshold, 1, stub, nil)

	result := o.Run(context.Background(), candidate("Python"),
		&posting.Postings{Items: []*posting.Posting{mlPosting("ml-1")}},
	)

	record := result.Records[0]
	if record.Decision != decision.Skip || record.Outcome != OutcomeSkipped {
		t.Fatalf("expected skip, got %+v", record)
	}
	if record.Score < 0.333 || record.Score > 0.334 {
		t.Fatalf("expected score about 1/3, got %v", record.Score)
	}
	if record.Artifact != nil {
		t.Fatalf("expected no artifact on skip")
	}
	if len(stub.calls) != 0 {
		t.Fatalf("composer must not be called on skip, got %v", stub.calls)
	}
	if !reflect.DeepEqual(record.MissingSkills, []string{"NLP", "PyTorch"}) {
		t.Fatalf("unexpected missing skills: %v", record.MissingSkills)
	}

	expectedStates := []State{StatePending, StateExtracted, StateScored, StateDecided, StateSkipped, StateRecorded}
	if !reflect.DeepEqual(record.States, expectedStates) {
		t.Fatalf("expected states %v, got %v", expectedStates, record.States)
	}
}

func TestRunTieApplies(t *testing.T) {
	o := newOrchestrator(t, 0.6, 1, &stubComposer{}, nil)

	p := &posting.Posting{ID: "tie", Title: "Dev", Skills: []string{"A", "B", "C", "D", "E"}, Text: "five skills"}
	result := o.Run(context.Background(), candidate("A", "B", "C"), &posting.Postings{Items: []*posting.Posting{p}})

	if result.Records[0].Decision != decision.Apply {
		t.Fatalf("expected 3/5 to apply at threshold 0.6, got %+v", result.Records[0])
	}
}

func TestRunIsolatesExtractionFailure(t *testing.T) {
	stub := &stubComposer{}
	o := newOrchestrator(t, decision.DefaultThreshold, 1, stub, nil)

	empty := mlPosting("ml-2")
	empty.Text = ""

	result := o.Run(context.Background(), candidate("Python", "PyTorch", "NLP"), &posting.Postings{Items: []*posting.Posting{
		mlPosting("ml-1"), empty, mlPosting("ml-3"),
	}})

	if len(result.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(result.Records))
	}

	failed := result.Records[1]
	if failed.Outcome != OutcomeFailed || failed.Failure == nil || failed.Failure.Kind != FailureExtraction {
		t.Fatalf("expected extraction failure, got %+v", failed)
	}

	var extractionErr *requirements.ExtractionError
	if !errors.As(failed.Failure.Err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", failed.Failure.Err)
	}
	if failed.Decision != "" || failed.Scored {
		t.Fatalf("failed extraction must not carry a decision: %+v", failed)
	}
	if !reflect.DeepEqual(failed.States, []State{StatePending, StateFailed, StateRecorded}) {
		t.Fatalf("unexpected states: %v", failed.States)
	}

	for _, idx := range []int{0, 2} {
		if result.Records[idx].Outcome != OutcomeApplied {
			t.Fatalf("expected record %d to apply, got %+v", idx, result.Records[idx])
		}
	}

	counts := result.Counts()
	expected := Counts{Total: 3, Applied: 2, Skipped: 0, Failed: 1, ApplyDecisions: 2}
	if counts != expected {
		t.Fatalf("expected counts %+v, got %+v", expected, counts)
	}

	if len(result.Failed()) != 1 || result.Failed()[0].PostingID != "ml-2" {
		t.Fatalf("unexpected failed records: %+v", result.Failed())
	}
}

func TestRunDegenerateRequirementsFail(t *testing.T) {
	o := newOrchestrator(t, decision.DefaultThreshold, 1, &stubComposer{}, nil)

	p := &posting.Posting{ID: "chef", Title: "Chef", Text: "Cook pasta."}
	result := o.Run(context.Background(), candidate("Python"), &posting.Postings{Items: []*posting.Posting{p}})

	record := result.Records[0]
	if record.Outcome != OutcomeFailed || record.Failure.Kind != FailureMatching {
		t.Fatalf("expected matching failure, got %+v", record)
	}

	expectedStates := []State{StatePending, StateExtracted, StateFailed, StateRecorded}
	if !reflect.DeepEqual(record.States, expectedStates) {
		t.Fatalf("expected states %v, got %v", expectedStates, record.States)
	}
}

func TestRunCompositionFailureKeepsDecision(t *testing.T) {
	stub := &stubComposer{err: errors.New("template unavailable")}
	o := newOrchestrator(t, decision.DefaultThreshold, 1, stub, nil)

	result := o.Run(context.Background(), candidate("Python", "PyTorch", "NLP"),
		&posting.Postings{Items: []*posting.Posting{mlPosting("ml-1")}},
	)

	record := result.Records[0]
	if record.Outcome != OutcomeFailed || record.Failure.Kind != FailureComposition {
		t.Fatalf("expected composition failure, got %+v", record)
	}
	if record.Decision != decision.Apply {
		t.Fatalf("expected apply decision to be retained, got %q", record.Decision)
	}

	var compositionErr *composer.CompositionError
	if !errors.As(record.Failure.Err, &compositionErr) || compositionErr.PostingID != "ml-1" {
		t.Fatalf("expected wrapped CompositionError, got %v", record.Failure.Err)
	}

	counts := result.Counts()
	if counts.Applied != 0 || counts.Failed != 1 || counts.ApplyDecisions != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestRunMissingTitleWithTemplateComposer(t *testing.T) {
	o := newOrchestrator(t, decision.DefaultThreshold, 1, composer.NewTemplateComposer("", ""), nil)

	p := mlPosting("untitled")
	p.Title = ""
	result := o.Run(context.Background(), candidate("Python", "PyTorch", "NLP"), &posting.Postings{Items: []*posting.Posting{p}})

	record := result.Records[0]
	if record.Failure == nil || !errors.Is(record.Failure.Err, composer.ErrMissingTitle) {
		t.Fatalf("expected missing title failure, got %+v", record)
	}
}

func TestRunExtractorWithoutResult(t *testing.T) {
	o, err := New(&Config{Threshold: 0.5}, &Deps{Extractor: &stubExtractor{}, Composer: &stubComposer{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := o.Run(context.Background(), candidate("Go"), &posting.Postings{Items: []*posting.Posting{{ID: "x", Text: "Go"}}})
	if result.Records[0].Failure == nil || result.Records[0].Failure.Kind != FailureExtraction {
		t.Fatalf("expected extraction failure, got %+v", result.Records[0])
	}
}

func TestRunWrapsForeignExtractorErrors(t *testing.T) {
	o, err := New(&Config{Threshold: 0.5}, &Deps{Extractor: &stubExtractor{err: errors.New("nlp service down")}, Composer: &stubComposer{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := o.Run(context.Background(), candidate("Go"), &posting.Postings{Items: []*posting.Posting{{ID: "x", Text: "Go"}}})

	var extractionErr *requirements.ExtractionError
	if !errors.As(result.Records[0].Failure.Err, &extractionErr) || extractionErr.PostingID != "x" {
		t.Fatalf("expected ExtractionError for posting x, got %v", result.Records[0].Failure.Err)
	}
}

func TestRunCanceledContextFailsEveryPosting(t *testing.T) {
	o := newOrchestrator(t, decision.DefaultThreshold, 1, &stubComposer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := o.Run(ctx, candidate("Python"), &posting.Postings{Items: []*posting.Posting{mlPosting("a"), mlPosting("b")}})
	for _, record := range result.Records {
		if record.Failure == nil || record.Failure.Kind != FailureCanceled {
			t.Fatalf("expected canceled failure, got %+v", record)
		}
		if record.States[len(record.States)-1] != StateRecorded {
			t.Fatalf("expected record to reach recorded state, got %v", record.States)
		}
	}
}

func batch(n int) *posting.Postings {
	vocab := []string{"Python", "PyTorch", "NLP", "Go", "SQL"}
	postings := &posting.Postings{}
	for i := 0; i < n; i++ {
		p := &posting.Posting{
			ID:    fmt.Sprintf("p-%d", i),
			Title: fmt.Sprintf("Role %d", i),
			Text:  "details",
		}
		if i%7 == 3 {
			p.Text = ""
		}
		for j := 0; j <= i%len(vocab); j++ {
			p.Skills = append(p.Skills, vocab[(i+j)%len(vocab)])
		}
		postings.Items = append(postings.Items, p)
	}
	return postings
}

func TestRunParallelMatchesSequential(t *testing.T) {
	p := candidate("Python", "NLP", "Go")

	sequential := newOrchestrator(t, decision.DefaultThreshold, 1, &stubComposer{}, nil).Run(context.Background(), p, batch(40))
	parallel := newOrchestrator(t, decision.DefaultThreshold, 8, &stubComposer{}, nil).Run(context.Background(), p, batch(40))

	if len(parallel.Records) != len(sequential.Records) {
		t.Fatalf("record count mismatch: %d vs %d", len(parallel.Records), len(sequential.Records))
	}

	for idx := range sequential.Records {
		s, p := sequential.Records[idx], parallel.Records[idx]
		if s.PostingID != p.PostingID || s.Outcome != p.Outcome || s.Score != p.Score || s.Decision != p.Decision {
			t.Fatalf("record %d differs: %+v vs %+v", idx, s, p)
		}
	}

	if sequential.Counts() != parallel.Counts() {
		t.Fatalf("counts differ: %+v vs %+v", sequential.Counts(), parallel.Counts())
	}
}

func TestRunThresholdMonotonic(t *testing.T) {
	p := candidate("Python", "NLP", "Go")

	low := newOrchestrator(t, 0.6, 1, &stubComposer{}, nil).Run(context.Background(), p, batch(30))
	high := newOrchestrator(t, 0.9, 1, &stubComposer{}, nil).Run(context.Background(), p, batch(30))

	if high.Counts().ApplyDecisions > low.Counts().ApplyDecisions {
		t.Fatalf("raising threshold increased applies: %d > %d", high.Counts().ApplyDecisions, low.Counts().ApplyDecisions)
	}
}

func TestRunLogsOutcomes(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	o := newOrchestrator(t, decision.DefaultThreshold, 1, &stubComposer{}, zap.New(core))

	empty := mlPosting("ml-2")
	empty.Text = " "
	o.Run(context.Background(), candidate("Python", "PyTorch", "NLP"), &posting.Postings{Items: []*posting.Posting{mlPosting("ml-1"), empty}})

	if n := observed.FilterMessage("posting approved").Len(); n != 1 {
		t.Fatalf("expected 1 approval log, got %d", n)
	}

	failures := observed.FilterMessage("posting failed").All()
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure log, got %d", len(failures))
	}
	if failures[0].ContextMap()["posting_id"] != "ml-2" {
		t.Fatalf("expected failure log for ml-2, got %v", failures[0].ContextMap())
	}

	if n := observed.FilterMessage("pipeline run completed").Len(); n != 1 {
		t.Fatalf("expected completion log, got %d", n)
	}
}

func TestNewValidates(t *testing.T) {
	deps := &Deps{Extractor: requirements.NewVocabularyExtractor(), Composer: &stubComposer{}}

	if _, err := New(&Config{Threshold: 1.5}, deps); err == nil {
		t.Fatalf("expected invalid threshold error")
	}
	if _, err := New(&Config{Threshold: 0.5}, &Deps{Composer: &stubComposer{}}); err == nil {
		t.Fatalf("expected missing extractor error")
	}
	if _, err := New(&Config{Threshold: 0.5}, &Deps{Extractor: requirements.NewVocabularyExtractor()}); err == nil {
		t.Fatalf("expected missing composer error")
	}

	o, err := New(nil, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Threshold() != decision.DefaultThreshold {
		t.Fatalf("expected default threshold, got %v", o.Threshold())
	}
}
