package posting

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	IDField      = "ID"
	CompanyField = "Company"

	postingsKey = "postings"
)

type Postings struct {
	Items []*Posting
}

// Posting is a single job posting as handed over by the search step.
type Posting struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title,omitempty"`
	Company  string   `json:"company,omitempty"`
	Location string   `json:"location,omitempty"`
	Salary   string   `json:"salary,omitempty"`
	URL      string   `json:"url,omitempty"`
	Text     string   `json:"text,omitempty"`
	Skills   []string `json:"skills,omitempty"`
}

// LoadFile reads postings stored under the "postings" key of a JSON, YAML or TOML file.
func LoadFile(path string) (*Postings, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("postings file is not configured")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading postings file %q: %w", path, err)
	}

	postings, err := Decode(v.Get(postingsKey))
	if err != nil {
		return nil, fmt.Errorf("decoding postings file %q: %w", path, err)
	}

	return postings, nil
}

// Decode converts loosely typed items (as produced by config readers or JSON
// decoding into any) into postings. Postings without an ID get a positional one.
func Decode(items any) (*Postings, error) {
	var postings []*Posting

	if items == nil {
		return &Postings{}, nil
	}

	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &postings,
		TagName:          "json",
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(items); err != nil {
		return nil, err
	}

	result := make([]*Posting, 0, len(postings))
	for idx, p := range postings {
		if p == nil {
			p = &Posting{}
		}
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			p.ID = fmt.Sprintf("posting-%d", idx+1)
		}
		result = append(result, p)
	}

	return &Postings{Items: result}, nil
}

func (p *Postings) Len() int {
	return len(p.Items)
}

func (p *Postings) FindByID(id string) *Posting {
	for _, posting := range p.Items {
		if posting.ID == id {
			return posting
		}
	}
	return nil
}

func (p *Postings) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, posting := range p.Items {
		ids = append(ids, posting.ID)
	}
	return ids
}

func (p *Posting) GetStringField(name string) string {
	switch name {
	case IDField:
		return p.ID
	case CompanyField:
		return p.Company
	default:
		return ""
	}
}

// Exclude removes postings whose field matches one of targets (case-insensitive)
// and returns the IDs of removed postings. Order of the remaining postings is preserved.
func (p *Postings) Exclude(name string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		target = strings.ToLower(strings.TrimSpace(target))
		if target != "" {
			set[target] = struct{}{}
		}
	}

	var excluded []string
	kept := p.Items[:0]
	for _, posting := range p.Items {
		value := strings.ToLower(strings.TrimSpace(posting.GetStringField(name)))
		if _, ok := set[value]; ok && value != "" {
			excluded = append(excluded, posting.ID)
			continue
		}
		kept = append(kept, posting)
	}
	p.Items = kept

	return excluded
}
