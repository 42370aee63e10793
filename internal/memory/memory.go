package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spigell/jobmatch/internal/pipeline"
)

// Entries is the append-only decision memory kept in a JSON file.
type Entries struct {
	Items []*Entry
}

type Entry struct {
	PostingID  string
	RunID      string
	Title      string `json:",omitempty"`
	Company    string `json:",omitempty"`
	URL        string `json:",omitempty"`
	Outcome    string
	Decision   string  `json:",omitempty"`
	Score      float64 `json:",omitempty"`
	Failure    string  `json:",omitempty"`
	RecordedAt time.Time
}

// FromResult converts the records of a run into memory entries.
func FromResult(result *pipeline.Result, now time.Time) *Entries {
	entries := &Entries{}
	if result == nil {
		return entries
	}

	for _, record := range result.Records {
		entry := &Entry{
			PostingID:  record.PostingID,
			RunID:      result.RunID,
			Title:      record.Title,
			Company:    record.Company,
			URL:        record.URL,
			Outcome:    string(record.Outcome),
			Decision:   string(record.Decision),
			Score:      float64(record.Score),
			RecordedAt: now.UTC(),
		}
		if record.Failure != nil {
			entry.Failure = fmt.Sprintf("%s: %s", record.Failure.Kind, record.Failure.Reason)
		}
		entries.Items = append(entries.Items, entry)
	}

	return entries
}

// Load reads entries from path. A missing or empty file yields no entries.
func Load(path string) (*Entries, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Entries{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &Entries{}, nil
	}

	var entries Entries
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode memory file %q: %w", path, err)
	}
	return &entries, nil
}

// AppendResult adds the records of a run to the memory file at path.
func AppendResult(path string, result *pipeline.Result, now time.Time) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("memory file is not configured")
	}

	existing, err := Load(path)
	if err != nil {
		return 0, fmt.Errorf("load memory: %w", err)
	}

	added := FromResult(result, now)
	existing.Append(added)

	if err := existing.ToFile(path); err != nil {
		return 0, fmt.Errorf("write memory: %w", err)
	}

	return len(added.Items), nil
}

func (e *Entries) Append(s *Entries) {
	e.Items = append(e.Items, s.Items...)
}

func (e *Entries) Len() int {
	return len(e.Items)
}

// DecidedIDs returns IDs of postings that reached a decision in some earlier run.
// Postings that failed before the gate are left out so they are retried.
func (e *Entries) DecidedIDs() []string {
	ids := make([]string, 0, len(e.Items))
	seen := make(map[string]struct{}, len(e.Items))
	for _, entry := range e.Items {
		if entry.Decision == "" {
			continue
		}
		if _, ok := seen[entry.PostingID]; ok {
			continue
		}
		seen[entry.PostingID] = struct{}{}
		ids = append(ids, entry.PostingID)
	}
	return ids
}

func (e *Entries) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
