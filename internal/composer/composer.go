package composer

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/requirements"
)

//go:embed letter.md
var letterTemplate string

const (
	defaultCompany   = "your company"
	defaultLevel     = "new"
	defaultSignature = "Kind regards"
)

var (
	ErrMissingTitle = errors.New("posting title is required")
	ErrNoProfile    = errors.New("candidate profile is required")
)

// Meta is the posting metadata a letter refers to.
type Meta struct {
	ID       string
	Title    string
	Company  string
	Location string
	URL      string
}

// Artifact is the composed text for a posting.
type Artifact struct {
	PostingID string
	Text      string
}

// Composer produces the personalized response for a posting the candidate applies to.
type Composer interface {
	Compose(ctx context.Context, p *profile.Profile, reqs *requirements.Set, meta Meta) (*Artifact, error)
}

// CompositionError reports missing data needed to produce an artifact.
type CompositionError struct {
	PostingID string
	Err       error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose response for posting %q: %v", e.PostingID, e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

// TemplateComposer fills a cover letter template with posting and profile data.
type TemplateComposer struct {
	template  string
	signature string
}

// NewTemplateComposer returns a composer using tmpl, or the built-in letter when tmpl is blank.
func NewTemplateComposer(tmpl, signature string) *TemplateComposer {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = letterTemplate
	}

	return &TemplateComposer{
		template:  tmpl,
		signature: strings.TrimSpace(signature),
	}
}

func (c *TemplateComposer) Compose(_ context.Context, p *profile.Profile, reqs *requirements.Set, meta Meta) (*Artifact, error) {
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		return nil, &CompositionError{PostingID: meta.ID, Err: ErrMissingTitle}
	}
	if p == nil {
		return nil, &CompositionError{PostingID: meta.ID, Err: ErrNoProfile}
	}

	company := strings.TrimSpace(meta.Company)
	if company == "" {
		company = defaultCompany
	}

	level := defaultLevel
	if reqs != nil && reqs.Level != "" && reqs.Level != requirements.LevelUnspecified {
		level = string(reqs.Level)
	}

	signature := c.signature
	if signature == "" {
		signature = defaultSignature
		if p.Name != "" {
			signature += ",\n" + p.Name
		}
	}

	candidate := p.Name
	if candidate == "" {
		candidate = "the candidate"
	}

	replacer := strings.NewReplacer(
		"{{TITLE}}", title,
		"{{COMPANY}}", company,
		"{{CANDIDATE}}", candidate,
		"{{MATCHED_SKILLS}}", joinSkills(matchedSkills(p, reqs)),
		"{{LEVEL}}", level,
		"{{SIGNATURE}}", signature,
	)

	return &Artifact{
		PostingID: meta.ID,
		Text:      strings.TrimSpace(replacer.Replace(c.template)),
	}, nil
}

func matchedSkills(p *profile.Profile, reqs *requirements.Set) []string {
	if reqs == nil {
		return nil
	}

	var matched []string
	for _, name := range reqs.Skills.Names() {
		if p.Skills.Has(name) {
			matched = append(matched, name)
		}
	}
	return matched
}

func joinSkills(skills []string) string {
	switch len(skills) {
	case 0:
		return "the technologies you use"
	case 1:
		return skills[0]
	default:
		return strings.Join(skills[:len(skills)-1], ", ") + " and " + skills[len(skills)-1]
	}
}
