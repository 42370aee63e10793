package matching

import (
	"fmt"

	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/requirements"
)

// FitScore is the share of required skills the candidate has, in [0, 1].
type FitScore float64

// Result carries the score together with the skills that produced it.
type Result struct {
	Score   FitScore
	Matched []string
	Missing []string
}

// DegenerateRequirementError is returned when a requirement set lists no skills,
// so the overlap ratio is undefined.
type DegenerateRequirementError struct {
	PostingID string
}

func (e *DegenerateRequirementError) Error() string {
	return fmt.Sprintf("posting %q has no required skills to match against", e.PostingID)
}

// Match computes |profile ∩ required| / |required|.
func Match(p *profile.Profile, reqs *requirements.Set) (*Result, error) {
	if reqs == nil {
		return nil, &DegenerateRequirementError{}
	}
	if reqs.Skills.Len() == 0 {
		return nil, &DegenerateRequirementError{PostingID: reqs.PostingID}
	}

	var have profile.SkillSet
	if p != nil {
		have = p.Skills
	}

	result := &Result{}
	for _, name := range reqs.Skills.Names() {
		if have.Has(name) {
			result.Matched = append(result.Matched, name)
			continue
		}
		result.Missing = append(result.Missing, name)
	}

	result.Score = FitScore(float64(len(result.Matched)) / float64(reqs.Skills.Len()))

	return result, nil
}
