package evaluation

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed template_default.yaml
var defaultTemplate []byte

type ScoringMode string

const (
	// ScoringModeSeparate keeps the IE index in its own field.
	ScoringModeSeparate ScoringMode = "separate"
	// ScoringModeLegacy writes the IE index into A1's supervisor score before totalling.
	ScoringModeLegacy ScoringMode = "legacy"
)

type ObjectiveTemplate struct {
	Code   string  `yaml:"code"`
	Title  string  `yaml:"title"`
	Weight float64 `yaml:"weight"`
}

type StageWeights struct {
	Self       float64 `yaml:"self"`
	Section    float64 `yaml:"section"`
	Department float64 `yaml:"department"`
	Manager    float64 `yaml:"manager"`
}

type RankBand struct {
	Rank     string  `yaml:"rank"`
	MinScore float64 `yaml:"min_score"`
}

type Template struct {
	ScoringMode  ScoringMode         `yaml:"scoring_mode"`
	TotalWeight  float64             `yaml:"total_weight"`
	Objectives   []ObjectiveTemplate `yaml:"objectives"`
	StageWeights StageWeights        `yaml:"stage_weights"`
	Ranks        []RankBand          `yaml:"ranks"`
}

// DefaultTemplate returns the embedded template.
func DefaultTemplate() (Template, error) {
	return ParseTemplate(defaultTemplate)
}

// LoadTemplate reads a template from path, or the embedded default when path is empty.
func LoadTemplate(path string) (Template, error) {
	if path == "" {
		return DefaultTemplate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read evaluation template: %w", err)
	}
	return ParseTemplate(raw)
}

func ParseTemplate(raw []byte) (Template, error) {
	var t Template
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Template{}, fmt.Errorf("parse evaluation template: %w", err)
	}
	if t.ScoringMode == "" {
		t.ScoringMode = ScoringModeSeparate
	}
	if err := t.Validate(); err != nil {
		return Template{}, err
	}
	// highest band first so RankFor can stop at the first match
	sort.SliceStable(t.Ranks, func(i, j int) bool { return t.Ranks[i].MinScore > t.Ranks[j].MinScore })
	return t, nil
}

func (t Template) Validate() error {
	if t.ScoringMode != ScoringModeSeparate && t.ScoringMode != ScoringModeLegacy {
		return fmt.Errorf("%w: unknown scoring_mode %q", ErrInvalidTemplate, t.ScoringMode)
	}
	if len(t.Objectives) != len(ObjectiveCodes) {
		return fmt.Errorf("%w: expected %d objectives, got %d", ErrInvalidTemplate, len(ObjectiveCodes), len(t.Objectives))
	}

	var sum float64
	for i, o := range t.Objectives {
		if o.Code != ObjectiveCodes[i] {
			return fmt.Errorf("%w: objective %d must be %s, got %q", ErrInvalidTemplate, i, ObjectiveCodes[i], o.Code)
		}
		if o.Weight < 0 || o.Weight > 100 {
			return fmt.Errorf("%w: objective %s weight out of range", ErrInvalidTemplate, o.Code)
		}
		sum += o.Weight
	}
	if t.TotalWeight > 0 && sum > t.TotalWeight {
		return fmt.Errorf("%w: objective weights sum to %.2f, above total_weight %.2f", ErrInvalidTemplate, sum, t.TotalWeight)
	}

	sw := t.StageWeights
	if sw.Self < 0 || sw.Section < 0 || sw.Department < 0 || sw.Manager < 0 {
		return fmt.Errorf("%w: stage weights must not be negative", ErrInvalidTemplate)
	}
	if sw.Self+sw.Section+sw.Department+sw.Manager == 0 {
		return fmt.Errorf("%w: stage weights sum to zero", ErrInvalidTemplate)
	}
	if len(t.Ranks) == 0 {
		return fmt.Errorf("%w: at least one rank band is required", ErrInvalidTemplate)
	}
	return nil
}

// RankFor returns the rank of the highest band whose minimum score is met.
func (t Template) RankFor(score float64) string {
	for _, band := range t.Ranks {
		if score >= band.MinScore {
			return band.Rank
		}
	}
	return ""
}

// NewObjectives returns the template's objectives with no scores filled in.
func (t Template) NewObjectives() []Objective {
	objectives := make([]Objective, len(t.Objectives))
	for i, o := range t.Objectives {
		objectives[i] = Objective{Code: o.Code, Description: o.Title, Weight: o.Weight}
	}
	return objectives
}
