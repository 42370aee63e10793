package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spigell/jobmatch/internal/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	appliedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	skippedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	letterStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

type Options struct {
	// WithArtifacts includes composed letters below each applied posting.
	WithArtifacts bool
}

// Render formats the run result for the terminal.
func Render(result *pipeline.Result, opts Options) string {
	if result == nil {
		return ""
	}

	var b strings.Builder

	counts := result.Counts()
	b.WriteString(titleStyle.Render(fmt.Sprintf(
		"Run %s: %d postings, %d applied, %d skipped, %d failed (threshold %.2f)",
		result.RunID, counts.Total, counts.Applied, counts.Skipped, counts.Failed, result.Threshold,
	)))
	b.WriteString("\n")

	for _, record := range result.Records {
		b.WriteString(Line(record))
		b.WriteString("\n")

		if opts.WithArtifacts && record.Artifact != nil {
			b.WriteString(letterStyle.Render(record.Artifact.Text))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Line renders a single record as one line.
func Line(record pipeline.Record) string {
	name := record.PostingID
	if record.Title != "" {
		name = fmt.Sprintf("%s %q", record.PostingID, record.Title)
	}
	if record.Company != "" {
		name += " at " + record.Company
	}

	switch record.Outcome {
	case pipeline.OutcomeApplied:
		return appliedStyle.Render(fmt.Sprintf("[applied] %s score=%.2f matched=%s",
			name, float64(record.Score), strings.Join(record.MatchedSkills, ",")))
	case pipeline.OutcomeSkipped:
		return skippedStyle.Render(fmt.Sprintf("[skipped] %s score=%.2f missing=%s",
			name, float64(record.Score), strings.Join(record.MissingSkills, ",")))
	default:
		reason := "unknown"
		if record.Failure != nil {
			reason = fmt.Sprintf("%s: %s", record.Failure.Kind, record.Failure.Reason)
		}
		if record.Decision != "" {
			reason = fmt.Sprintf("decision=%s %s", record.Decision, reason)
		}
		return failedStyle.Render(fmt.Sprintf("[failed] %s %s", name, reason))
	}
}
