package cli

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Page declares a document the scenario can navigate to.
type Page struct {
	URL          string         `yaml:"url"`
	Content      string         `yaml:"content"`
	SameDocument bool           `yaml:"same_document"`
	State        map[string]any `yaml:"state"`
}

// Step is one scripted navigation operation. Steps are decoded from
// loosely-typed YAML maps so scenarios can omit fields freely.
type Step struct {
	Op      string         `mapstructure:"op"`
	URL     string         `mapstructure:"url"`
	Replace bool           `mapstructure:"replace"`
	Info    string         `mapstructure:"info"`
	State   map[string]any `mapstructure:"state"`
}

// Scenario is a scripted navigation walkthrough loaded from YAML.
type Scenario struct {
	Title string           `yaml:"title"`
	Pages []Page           `yaml:"pages"`
	Steps []map[string]any `yaml:"steps"`
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if len(sc.Pages) == 0 {
		return nil, fmt.Errorf("scenario declares no pages")
	}
	return &sc, nil
}

// Page returns the declared page for a URL.
func (s *Scenario) Page(url string) (*Page, bool) {
	for i := range s.Pages {
		if s.Pages[i].URL == url {
			return &s.Pages[i], true
		}
	}
	return nil, false
}

// DecodeSteps converts the raw step maps into typed steps.
func (s *Scenario) DecodeSteps() ([]Step, error) {
	steps := make([]Step, 0, len(s.Steps))
	for i, raw := range s.Steps {
		var step Step
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &step,
			ErrorUnused: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(raw); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if step.Op == "" {
			return nil, fmt.Errorf("step %d: missing op", i)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
