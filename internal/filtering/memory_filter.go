package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/memory"
	"github.com/spigell/jobmatch/internal/posting"
)

const forceFlagSetMsg = "force flag is set"

type memoryFilter struct {
	path    string
	ignore  bool
	enabled bool
	reason  string
	logger  *zap.Logger
}

type MemoryFilterConfig struct {
	Path string
	// Ignore keeps postings even if they were decided in an earlier run.
	Ignore bool
}

// NewMemory creates a filter that drops postings already decided in earlier runs.
func NewMemory(cfg *MemoryFilterConfig, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &memoryFilter{logger: logger, enabled: true}
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.Path)
		f.ignore = cfg.Ignore
	}

	if f.path == "" {
		f.Disable("memory file is not configured")
	}

	return f
}

func (f *memoryFilter) Name() string { return "memory" }

func (f *memoryFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *memoryFilter) IsEnabled() bool { return f.enabled }

func (f *memoryFilter) Validate() error {
	if f.path == "" {
		return fmt.Errorf("memory file path is required")
	}
	return nil
}

func (f *memoryFilter) Apply(_ context.Context, p *posting.Postings) (*posting.Postings, Step, error) {
	initial := p.Len()
	if f.ignore {
		f.logger.Info("keeping already recorded postings", zap.String("reason", forceFlagSetMsg))
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	entries, err := memory.Load(f.path)
	if err != nil {
		return p, Step{}, fmt.Errorf("getting recorded postings from memory file: %w", err)
	}

	removed := p.Exclude(posting.IDField, entries.DecidedIDs())
	if len(removed) > 0 {
		f.logger.Info("excluding postings based on memory file",
			zap.String("path", f.path),
			zap.Strings("excluded_postings", removed),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(removed), Left: p.Len()}, nil
}

func (f *memoryFilter) Status() Status {
	details := map[string]string{
		"exclude_recorded": strconv.FormatBool(!f.ignore),
	}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason, Details: details}
}
