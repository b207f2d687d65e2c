// Package rules loads achievement and milestone definitions from YAML.
//
// A rules file is decoded with yaml.v3, checked against an embedded JSON
// schema, and then converted into a validated progress.Registry and milestone
// set. Any problem is a configuration error and must stop startup.
package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT
// ══════════════════════════════════════════════════════════════════════════════

// Document is the on-disk shape of a rules file.
type Document struct {
	Version         int            `yaml:"version"`
	IncludeDefaults bool           `yaml:"include_defaults"`
	Achievements    []Achievement  `yaml:"achievements"`
	Milestones      []MilestoneDoc `yaml:"milestones"`
}

// Achievement is a registry entry in a rules file.
type Achievement struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Category     string   `yaml:"category"`
	Rarity       string   `yaml:"rarity"`
	XPReward     int64    `yaml:"xp_reward"`
	Requirements []string `yaml:"requirements"`
}

// Reward is the achievement granted by a milestone. Its category is always
// "milestone".
type Reward struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Rarity      string `yaml:"rarity"`
	XPReward    int64  `yaml:"xp_reward"`
}

// MilestoneDoc is a milestone entry in a rules file.
type MilestoneDoc struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Category     string   `yaml:"category"`
	Order        int      `yaml:"order"`
	Requirements []string `yaml:"requirements"`
	Reward       Reward   `yaml:"reward"`
}

// RuleSet is a validated registry plus milestone set.
type RuleSet struct {
	Registry   *progress.Registry
	Milestones []progress.Milestone
	Source     string
}

// Default returns the built-in rules.
func Default() RuleSet {
	return RuleSet{
		Registry:   progress.DefaultRegistry(),
		Milestones: progress.DefaultMilestones(),
		Source:     "builtin",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADING
// ══════════════════════════════════════════════════════════════════════════════

// LoadFile reads and validates the rules file at path.
func LoadFile(path string) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return RuleSet{}, shared.WrapError("rules", "LoadFile", shared.ErrConfiguration,
			fmt.Sprintf("open rules file %s", path), err)
	}
	defer f.Close()

	rs, err := Load(f)
	if err != nil {
		return RuleSet{}, err
	}
	rs.Source = path
	return rs, nil
}

// LoadOrDefault loads path, or returns the built-in rules when path is empty.
func LoadOrDefault(path string) (RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Load reads a rules document from r.
func Load(r io.Reader) (RuleSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return RuleSet{}, shared.WrapError("rules", "Load", shared.ErrConfiguration, "read rules", err)
	}
	return Parse(data)
}

// Parse validates data against the schema and builds the rule set.
func Parse(data []byte) (RuleSet, error) {
	if err := ValidateSchema(data); err != nil {
		return RuleSet{}, err
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return RuleSet{}, shared.WrapError("rules", "Parse", shared.ErrInvalidDefinition, "decode rules", err)
	}

	return doc.Build()
}

// ValidateSchema checks the structure of a YAML rules document.
func ValidateSchema(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return shared.WrapError("rules", "ValidateSchema", shared.ErrInvalidDefinition, "rules file is not valid YAML", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return shared.WrapError("rules", "ValidateSchema", shared.ErrConfiguration, "schema check failed", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		problems = append(problems, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return shared.WrapError("rules", "ValidateSchema", shared.ErrInvalidDefinition,
		strings.Join(problems, "; "), nil)
}

// Build converts the document into a validated rule set.
func (d Document) Build() (RuleSet, error) {
	var defs []progress.AchievementDefinition
	var milestones []progress.Milestone
	if d.IncludeDefaults {
		defs = progress.DefaultAchievements()
		milestones = progress.DefaultMilestones()
	}

	for _, a := range d.Achievements {
		reqs, err := progress.ParseRequirements(a.Requirements)
		if err != nil {
			return RuleSet{}, fmt.Errorf("achievement %s: %w", a.ID, err)
		}
		defs = append(defs, progress.AchievementDefinition{
			ID:           progress.AchievementID(a.ID),
			Title:        a.Title,
			Description:  a.Description,
			Category:     progress.Category(a.Category),
			XPReward:     progress.XP(a.XPReward),
			Rarity:       progress.Rarity(a.Rarity),
			Requirements: reqs,
		})
	}

	for _, m := range d.Milestones {
		reqs, err := progress.ParseRequirements(m.Requirements)
		if err != nil {
			return RuleSet{}, fmt.Errorf("milestone %s: %w", m.ID, err)
		}
		milestones = append(milestones, progress.Milestone{
			ID:           m.ID,
			Title:        m.Title,
			Category:     progress.MilestoneCategory(m.Category),
			Requirements: reqs,
			Order:        m.Order,
			Reward: progress.AchievementDefinition{
				ID:          progress.AchievementID(m.Reward.ID),
				Title:       m.Reward.Title,
				Description: m.Reward.Description,
				Category:    progress.CategoryMilestone,
				XPReward:    progress.XP(m.Reward.XPReward),
				Rarity:      progress.Rarity(m.Reward.Rarity),
			},
		})
	}

	registry, err := progress.NewRegistry(defs)
	if err != nil {
		return RuleSet{}, err
	}
	if err := progress.ValidateMilestones(milestones, registry); err != nil {
		return RuleSet{}, err
	}

	return RuleSet{Registry: registry, Milestones: milestones}, nil
}
