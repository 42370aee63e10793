package decision

import (
	"fmt"
	"math"

	"github.com/spigell/jobmatch/internal/matching"
)

// DefaultThreshold is used when no threshold is configured.
const DefaultThreshold = 0.6

type Decision string

const (
	Apply Decision = "apply"
	Skip  Decision = "skip"
)

// Decide returns Apply when score reaches threshold. A tie applies.
func Decide(score matching.FitScore, threshold float64) Decision {
	if float64(score) >= threshold {
		return Apply
	}
	return Skip
}

// ValidateThreshold checks the threshold is a number in [0, 1].
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got %v", threshold)
	}
	return nil
}
