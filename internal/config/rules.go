package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// EntityRules filters and renames published sensors. Patterns match sensor
// unique IDs (e.g. "finance_assistant_card_.*"). An empty include list admits
// every sensor; excludes win over includes.
//
// Example file:
//
//	include:
//	  - "^finance_assistant_summary_.*"
//	  - "^finance_assistant_card_.*"
//	exclude:
//	  - "_analytics_total_car_loan$"
//	names:
//	  finance_assistant_summary_ynab_cash_balance: "Household Cash"
type EntityRules struct {
	Include []string          `yaml:"include"`
	Exclude []string          `yaml:"exclude"`
	Names   map[string]string `yaml:"names"`

	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// LoadEntityRules reads and compiles a rules file. An empty path yields rules
// that admit everything.
func LoadEntityRules(path string) (*EntityRules, error) {
	if path == "" {
		return &EntityRules{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity rules: %w", err)
	}
	return ParseEntityRules(data)
}

// ParseEntityRules decodes and compiles rules from YAML.
func ParseEntityRules(data []byte) (*EntityRules, error) {
	var rules EntityRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse entity rules: %w", err)
	}
	if err := rules.compile(); err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *EntityRules) compile() error {
	r.include = r.include[:0]
	r.exclude = r.exclude[:0]
	for _, p := range r.Include {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("compile include pattern %q: %w", p, err)
		}
		r.include = append(r.include, re)
	}
	for _, p := range r.Exclude {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("compile exclude pattern %q: %w", p, err)
		}
		r.exclude = append(r.exclude, re)
	}
	return nil
}

// Allows reports whether a sensor with the given unique ID is published.
func (r *EntityRules) Allows(uniqueID string) bool {
	if r == nil {
		return true
	}
	for _, re := range r.exclude {
		if re.MatchString(uniqueID) {
			return false
		}
	}
	if len(r.include) == 0 {
		return true
	}
	for _, re := range r.include {
		if re.MatchString(uniqueID) {
			return true
		}
	}
	return false
}

// NameFor returns the configured friendly name override for a sensor.
func (r *EntityRules) NameFor(uniqueID string) (string, bool) {
	if r == nil || r.Names == nil {
		return "", false
	}
	name, ok := r.Names[uniqueID]
	return name, ok && name != ""
}
