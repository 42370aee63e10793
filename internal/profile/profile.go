package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// SkillSet is a case-insensitive set of skill names. Keys are normalized,
// values keep the spelling the skill was first added with.
type SkillSet map[string]string

// NewSkillSet builds a set from names, ignoring blanks and duplicates.
func NewSkillSet(names ...string) SkillSet {
	set := make(SkillSet, len(names))
	for _, name := range names {
		set.Add(name)
	}
	return set
}

// Normalize returns the comparison key for a skill name.
func Normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (s SkillSet) Add(name string) {
	key := Normalize(name)
	if key == "" {
		return
	}
	if _, ok := s[key]; !ok {
		s[key] = strings.Join(strings.Fields(name), " ")
	}
}

func (s SkillSet) Has(name string) bool {
	_, ok := s[Normalize(name)]
	return ok
}

func (s SkillSet) Len() int {
	return len(s)
}

// Names returns display names sorted by their normalized key.
func (s SkillSet) Names() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, s[key])
	}
	return names
}

// Profile describes the candidate. It is never mutated once built.
type Profile struct {
	Name        string
	Skills      SkillSet
	Preferences Preferences
}

// Preferences holds optional candidate wishes. Unknown keys are kept in Extra.
type Preferences struct {
	Location string         `mapstructure:"location"`
	Level    string         `mapstructure:"level"`
	Extra    map[string]any `mapstructure:",remain"`
}

// Config is the profile section of the configuration file.
type Config struct {
	Name        string         `mapstructure:"name"`
	Skills      []string       `mapstructure:"skills"`
	Preferences map[string]any `mapstructure:"preferences"`
}

// New builds a profile from config.
func New(cfg *Config) (*Profile, error) {
	if cfg == nil {
		return nil, fmt.Errorf("profile configuration is required")
	}

	skills := NewSkillSet(cfg.Skills...)
	if skills.Len() == 0 {
		return nil, fmt.Errorf("profile must list at least one skill")
	}

	var prefs Preferences
	if len(cfg.Preferences) > 0 {
		if err := mapstructure.Decode(cfg.Preferences, &prefs); err != nil {
			return nil, fmt.Errorf("decoding profile preferences: %w", err)
		}
	}

	return &Profile{
		Name:        strings.TrimSpace(cfg.Name),
		Skills:      skills,
		Preferences: prefs,
	}, nil
}
