package requirements

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/profile"
)

// DefaultVocabulary lists skills recognized in posting text out of the box.
var DefaultVocabulary = []string{
	"Python", "PyTorch", "TensorFlow", "Keras", "Scikit-learn", "Pandas", "NumPy",
	"NLP", "Deep Learning", "Machine Learning", "Computer Vision", "LLM",
	"Go", "Java", "JavaScript", "TypeScript", "Rust", "C++", "C#", "Scala",
	"SQL", "PostgreSQL", "MySQL", "Redis", "Kafka", "Spark", "Airflow",
	"Docker", "Kubernetes", "Terraform", "Linux", "Git",
	"AWS", "GCP", "Azure", "React", "GraphQL",
}

// exactCaseTerms are skills spelled like ordinary English words.
// They only match with their canonical capitalization ("Go", not "ready to go").
var exactCaseTerms = map[string]bool{
	"go": true, "rust": true, "spark": true, "git": true, "java": true,
	"react": true, "pandas": true, "azure": true, "airflow": true,
}

// levelKeywords is checked in order, so more senior titles win.
// titleKeywords are too common in prose ("lead a team", "our staff") to be read from the body.
var levelKeywords = []struct {
	level         Level
	keywords      []string
	titleKeywords []string
}{
	{LevelLead, nil, []string{"lead", "principal", "staff", "head of"}},
	{LevelSenior, []string{"senior", "sr"}, nil},
	{LevelMiddle, []string{"middle", "mid-level", "mid level", "intermediate"}, nil},
	{LevelJunior, []string{"junior", "jr", "entry level", "entry-level"}, []string{"graduate"}},
	{LevelIntern, []string{"intern", "internship", "trainee"}, nil},
}

type term struct {
	name    string
	pattern *regexp.Regexp
}

// VocabularyExtractor finds known skills in posting text by whole-word lookup.
// Skills listed explicitly on the posting take precedence over text scanning.
type VocabularyExtractor struct {
	terms  []term
	levels []levelTerms
}

type levelTerms struct {
	level Level
	title []*regexp.Regexp
	body  []*regexp.Regexp
}

// NewVocabularyExtractor builds an extractor over DefaultVocabulary plus extra.
func NewVocabularyExtractor(extra ...string) *VocabularyExtractor {
	seen := profile.NewSkillSet()
	e := &VocabularyExtractor{}

	for _, name := range append(append([]string{}, DefaultVocabulary...), extra...) {
		if seen.Has(name) || profile.Normalize(name) == "" {
			continue
		}
		seen.Add(name)
		e.terms = append(e.terms, term{
			name:    strings.Join(strings.Fields(name), " "),
			pattern: wordPattern(name, exactCaseTerms[profile.Normalize(name)]),
		})
	}

	for _, lk := range levelKeywords {
		lt := levelTerms{level: lk.level}
		for _, kw := range lk.keywords {
			pattern := wordPattern(kw, false)
			lt.title = append(lt.title, pattern)
			lt.body = append(lt.body, pattern)
		}
		for _, kw := range lk.titleKeywords {
			lt.title = append(lt.title, wordPattern(kw, false))
		}
		e.levels = append(e.levels, lt)
	}

	return e
}

// wordPattern matches phrase with flexible inner spacing, not as part of a longer
// token ("go" does not match "google", "c" does not match "c++").
func wordPattern(phrase string, exactCase bool) *regexp.Regexp {
	words := strings.Fields(phrase)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}

	flags := `(?i)`
	if exactCase {
		flags = ""
	}

	return regexp.MustCompile(flags + `(?:^|[^\p{L}\p{N}+#.])` + strings.Join(quoted, `\s+`) + `(?:$|[^\p{L}\p{N}+#])`)
}

func (e *VocabularyExtractor) Extract(_ context.Context, p *posting.Posting) (*Set, error) {
	if p == nil {
		return nil, &ExtractionError{Err: ErrNoPosting}
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return nil, &ExtractionError{PostingID: p.ID, Err: ErrEmptyText}
	}

	if !readable(text) {
		return nil, &ExtractionError{PostingID: p.ID, Err: ErrUnparseable}
	}

	skills := profile.NewSkillSet(p.Skills...)
	if skills.Len() == 0 {
		corpus := p.Title + "\n" + text
		for _, t := range e.terms {
			if t.pattern.MatchString(corpus) {
				skills.Add(t.name)
			}
		}
	}

	return &Set{
		PostingID: p.ID,
		Skills:    skills,
		Level:     e.level(p.Title, text),
		Salary:    strings.TrimSpace(p.Salary),
		Location:  strings.TrimSpace(p.Location),
	}, nil
}

// level prefers hints in the title over hints in the body.
func (e *VocabularyExtractor) level(title, text string) Level {
	for _, lt := range e.levels {
		if matchAny(lt.title, title) {
			return lt.level
		}
	}
	for _, lt := range e.levels {
		if matchAny(lt.body, text) {
			return lt.level
		}
	}
	return LevelUnspecified
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

func readable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
