package requirements

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/profile"
)

type Level string

const (
	LevelUnspecified Level = "unspecified"
	LevelIntern      Level = "intern"
	LevelJunior      Level = "junior"
	LevelMiddle      Level = "middle"
	LevelSenior      Level = "senior"
	LevelLead        Level = "lead"
)

var (
	ErrEmptyText   = errors.New("posting text is empty")
	ErrUnparseable = errors.New("posting text has no readable content")
	ErrNoPosting   = errors.New("posting is required")
)

// Set is the structured view of what a posting asks for.
type Set struct {
	PostingID string
	Skills    profile.SkillSet
	Level     Level
	Salary    string
	Location  string
}

// Extractor turns a raw posting into a requirement set.
type Extractor interface {
	Extract(ctx context.Context, p *posting.Posting) (*Set, error)
}

// ExtractionError reports a posting that can not be turned into requirements.
type ExtractionError struct {
	PostingID string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract requirements of posting %q: %v", e.PostingID, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
