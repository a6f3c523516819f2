package triage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules holds the substring patterns the classifier matches against
// free-text injuries and mechanisms. Matching is case-insensitive.
type Rules struct {
	CriticalInjuries     []string `yaml:"critical_injuries" json:"critical_injuries"`
	HighEnergyMechanisms []string `yaml:"high_energy_mechanisms" json:"high_energy_mechanisms"`
}

// LoadRules reads a YAML rules file. An empty path yields the defaults; a
// list left empty in the file keeps its default.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var rules Rules
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse triage rules: %w", err)
	}

	defaults := DefaultRules()
	if len(rules.CriticalInjuries) == 0 {
		rules.CriticalInjuries = defaults.CriticalInjuries
	}
	if len(rules.HighEnergyMechanisms) == 0 {
		rules.HighEnergyMechanisms = defaults.HighEnergyMechanisms
	}
	return rules.normalized(), nil
}

func (r Rules) normalized() Rules {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, p := range in {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return Rules{
		CriticalInjuries:     lower(r.CriticalInjuries),
		HighEnergyMechanisms: lower(r.HighEnergyMechanisms),
	}
}

func DefaultRules() Rules {
	return Rules{
		CriticalInjuries: []string{
			"head injury", "brain injury", "skull fracture", "traumatic brain injury",
			"chest injury", "pneumothorax", "hemothorax", "flail chest",
			"abdominal injury", "internal bleeding", "abdominal trauma",
			"spinal injury", "spinal cord injury", "neck injury",
			"massive bleeding", "hemorrhage", "arterial bleeding",
			"amputation", "severed limb", "major amputation",
			"multiple fractures", "pelvic fracture", "femur fracture",
		},
		HighEnergyMechanisms: []string{
			"motor vehicle accident", "car accident", "motorcycle accident",
			"fall from height", "high speed collision", "rollover",
			"gunshot", "gsw", "shooting", "bullet wound",
			"stabbing", "knife wound", "penetrating trauma",
			"explosion", "blast injury", "crush injury",
			"hit by vehicle", "pedestrian struck",
		},
	}
}

func containsAny(text string, patterns []string) bool {
	text = strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
