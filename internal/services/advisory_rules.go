package services

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules/advisory_rules.yaml
var defaultRulesYAML []byte

// RuleSet is the keyword table behind rule-based advice.
type RuleSet struct {
	Crops            map[string][]DiseaseRule `yaml:"crops"`
	Weather          []WeatherRule            `yaml:"weather"`
	WeatherDefault   string                   `yaml:"weather_default"`
	Fallback         string                   `yaml:"fallback"`
	Treatments       map[string]string        `yaml:"treatments"`
	TreatmentDefault string                   `yaml:"treatment_default"`
}

// DiseaseRule applies when Match occurs in the lower-cased disease label.
type DiseaseRule struct {
	Match  string   `yaml:"match"`
	Advice []string `yaml:"advice"`
}

// WeatherRule applies when Match occurs in the lower-cased weather summary.
type WeatherRule struct {
	Match  string `yaml:"match"`
	Advice string `yaml:"advice"`
}

// LoadRuleSet reads rules from path, or the embedded defaults when path is empty.
func LoadRuleSet(path string) (*RuleSet, error) {
	data := defaultRulesYAML
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read advisory rules: %w", err)
		}
		data = raw
	}
	return ParseRuleSet(data)
}

func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse advisory rules: %w", err)
	}
	normalized := make(map[string][]DiseaseRule, len(rs.Crops))
	for crop, rules := range rs.Crops {
		for i := range rules {
			rules[i].Match = strings.ToLower(rules[i].Match)
		}
		normalized[strings.ToLower(crop)] = rules
	}
	rs.Crops = normalized
	for i := range rs.Weather {
		rs.Weather[i].Match = strings.ToLower(rs.Weather[i].Match)
	}
	return &rs, nil
}

// Treatment returns the treatment text for an exact classifier label.
func (rs *RuleSet) Treatment(label string) string {
	if t, ok := rs.Treatments[label]; ok {
		return t
	}
	return rs.TreatmentDefault
}

// RuleAdvisor generates advice from a RuleSet. The first matching disease
// rule for the crop and the first matching weather rule are used.
type RuleAdvisor struct {
	rules *RuleSet
}

func NewRuleAdvisor(rules *RuleSet) *RuleAdvisor {
	return &RuleAdvisor{rules: rules}
}

func (a *RuleAdvisor) Generate(_ context.Context, crop, disease, weatherSummary string) ([]string, error) {
	var advice []string

	diseaseKey := strings.ToLower(disease)
	for _, rule := range a.rules.Crops[strings.ToLower(crop)] {
		if rule.Match != "" && strings.Contains(diseaseKey, rule.Match) {
			advice = append(advice, rule.Advice...)
			break
		}
	}

	weatherKey := strings.ToLower(weatherSummary)
	matched := false
	for _, rule := range a.rules.Weather {
		if rule.Match != "" && strings.Contains(weatherKey, rule.Match) {
			advice = append(advice, rule.Advice)
			matched = true
			break
		}
	}
	if !matched && a.rules.WeatherDefault != "" {
		advice = append(advice, a.rules.WeatherDefault)
	}

	if len(advice) == 0 {
		advice = append(advice, a.rules.Fallback)
	}
	return advice, nil
}
