package pipeline

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spigell/jobmatch/internal/composer"
	"github.com/spigell/jobmatch/internal/decision"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/requirements"
)

// State is a step of the per-posting state machine.
type State string

const (
	StatePending   State = "pending"
	StateExtracted State = "extracted"
	StateScored    State = "scored"
	StateDecided   State = "decided"
	StateComposed  State = "composed"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
	StateRecorded  State = "recorded"
)

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

type FailureKind string

const (
	FailureExtraction  FailureKind = "extraction"
	FailureMatching    FailureKind = "matching"
	FailureComposition FailureKind = "composition"
	FailureCanceled    FailureKind = "canceled"
)

// Failure explains why a posting ended in the failed state.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
	Err    error       `json:"-"`
}

// Record is the outcome of a single posting. Records are built once and not changed afterwards.
type Record struct {
	PostingID string  `json:"posting_id"`
	Title     string  `json:"title,omitempty"`
	Company   string  `json:"company,omitempty"`
	URL       string  `json:"url,omitempty"`
	Outcome   Outcome `json:"outcome"`
	States    []State `json:"states"`

	Level          requirements.Level `json:"level,omitempty"`
	Salary         string             `json:"salary,omitempty"`
	Location       string             `json:"location,omitempty"`
	RequiredSkills []string           `json:"required_skills,omitempty"`
	MatchedSkills  []string           `json:"matched_skills,omitempty"`
	MissingSkills  []string           `json:"missing_skills,omitempty"`

	Scored   bool              `json:"scored"`
	Score    matching.FitScore `json:"score"`
	Decision decision.Decision `json:"decision,omitempty"`

	Artifact *composer.Artifact `json:"artifact,omitempty"`
	Failure  *Failure           `json:"failure,omitempty"`
}

// Counts summarizes a run.
type Counts struct {
	Total   int
	Applied int
	Skipped int
	Failed  int
	// ApplyDecisions includes postings that were decided Apply but failed composition.
	ApplyDecisions int
}

// Result is the output of one run over a batch of postings, in input order.
type Result struct {
	RunID      string    `json:"run_id"`
	Threshold  float64   `json:"threshold"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Records    []Record  `json:"records"`
}

func (r *Result) Counts() Counts {
	counts := Counts{Total: len(r.Records)}
	for _, record := range r.Records {
		switch record.Outcome {
		case OutcomeApplied:
			counts.Applied++
		case OutcomeSkipped:
			counts.Skipped++
		case OutcomeFailed:
			counts.Failed++
		}
		if record.Decision == decision.Apply {
			counts.ApplyDecisions++
		}
	}
	return counts
}

// Failed returns records that ended in the failed state.
func (r *Result) Failed() []Record {
	var failed []Record
	for _, record := range r.Records {
		if record.Outcome == OutcomeFailed {
			failed = append(failed, record)
		}
	}
	return failed
}

// DumpToTmpFile writes the result as indented JSON to a new temporary file and returns its name.
func (r *Result) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobmatch_records_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
