// Package triage scores a patient's vitals, injuries, mechanism and
// field interventions into a red/yellow/green triage level.
package triage

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/triagex/platform/pkg/common/models"
)

// Factors are the classifier inputs. Zero vitals and counts mean "not
// measured".
type Factors struct {
	HeartRate        float64 `json:"heartRate,omitempty"`
	SystolicBP       float64 `json:"systolicBP,omitempty"`
	DiastolicBP      float64 `json:"diastolicBP,omitempty"`
	RespiratoryRate  float64 `json:"respiratoryRate,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	OxygenSaturation float64 `json:"oxygenSaturation,omitempty"`

	Consciousness    string   `json:"consciousness,omitempty"`
	Mechanism        string   `json:"mechanism,omitempty"`
	VisibleInjuries  bool     `json:"visibleInjuries,omitempty"`
	SelectedInjuries []string `json:"selectedInjuries,omitempty"`
	ChiefComplaint   string   `json:"chiefComplaint,omitempty"`

	ActionCount          int `json:"actionCount,omitempty"`
	EmergencyActionCount int `json:"emergencyActionCount,omitempty"`
	MedicationCount      int `json:"medicationCount,omitempty"`
}

type Result struct {
	Level               string   `json:"level"`
	Score               float64  `json:"score"`
	Reasoning           []string `json:"reasoning"`
	ShockIndex          *float64 `json:"shock_index,omitempty"`
	InjurySeverityScore int      `json:"injury_severity_score"`
}

const (
	injuryWeight     = 1.5
	injuryScoreCap   = 25
	reasonCritical   = "Critical condition detected - immediate intervention required"
	reasonPolytrauma = "Multiple critical injuries - immediate care required"
	reasonStandard   = "Standard assessment - no critical findings"
)

type Classifier struct {
	rules Rules
}

func NewClassifier(rules Rules) *Classifier {
	return &Classifier{rules: rules.normalized()}
}

func (c *Classifier) isCriticalInjury(injury string) bool {
	return containsAny(injury, c.rules.CriticalInjuries)
}

func (c *Classifier) isHighEnergy(mechanism string) bool {
	return mechanism != "" && containsAny(mechanism, c.rules.HighEnergyMechanisms)
}

func (c *Classifier) criticalCount(injuries []string) int {
	n := 0
	for _, injury := range injuries {
		if c.isCriticalInjury(injury) {
			n++
		}
	}
	return n
}

// ShockIndex is HR/SBP scaled up for critical injuries, injury count and a
// high-energy mechanism. Zero when either vital is missing.
func (c *Classifier) ShockIndex(f Factors) float64 {
	if f.HeartRate == 0 || f.SystolicBP == 0 {
		return 0
	}
	multiplier := 1.0
	if f.VisibleInjuries && len(f.SelectedInjuries) > 0 {
		multiplier += float64(c.criticalCount(f.SelectedInjuries)) * 0.2
		if len(f.SelectedInjuries) > 3 {
			multiplier += 0.3
		}
	}
	if c.isHighEnergy(f.Mechanism) {
		multiplier += 0.25
	}
	return f.HeartRate / f.SystolicBP * multiplier
}

func injuryRegion(injury string) string {
	switch {
	case strings.Contains(injury, "head"), strings.Contains(injury, "brain"), strings.Contains(injury, "skull"):
		return "head"
	case strings.Contains(injury, "chest"), strings.Contains(injury, "thorax"):
		return "chest"
	case strings.Contains(injury, "abdom"), strings.Contains(injury, "pelv"):
		return "abdomen"
	case strings.Contains(injury, "spin"), strings.Contains(injury, "neck"):
		return "spine"
	}
	return ""
}

func (c *Classifier) injurySeverity(f Factors) (int, []string) {
	if !f.VisibleInjuries || len(f.SelectedInjuries) == 0 {
		return 0, []string{"No visible injuries reported"}
	}

	score := 0
	var reasons []string
	critical, severe := 0, 0
	regions := map[string]bool{}

	for _, injury := range f.SelectedInjuries {
		lower := strings.ToLower(injury)
		switch {
		case c.isCriticalInjury(lower):
			critical++
			score += 7
			if region := injuryRegion(lower); region != "" {
				regions[region] = true
			}
			reasons = append(reasons, "Critical injury: "+injury)
		case strings.Contains(lower, "fracture"), strings.Contains(lower, "dislocation"),
			strings.Contains(lower, "severe"), strings.Contains(lower, "deep laceration"):
			severe++
			score += 4
			reasons = append(reasons, "Severe injury: "+injury)
		default:
			score++
			reasons = append(reasons, "Moderate injury: "+injury)
		}
	}

	// Only critical injuries are mapped to body regions.
	switch {
	case len(regions) >= 3:
		score += 5
		reasons = append(reasons, "Multiple body systems involved")
	case len(regions) >= 2:
		score += 3
		reasons = append(reasons, "Multiple body regions affected")
	}

	switch {
	case critical >= 2:
		score += 4
		reasons = append(reasons, "Multiple critical injuries (polytrauma)")
	case critical+severe >= 3:
		score += 2
		reasons = append(reasons, "Multiple significant injuries")
	}

	if score > injuryScoreCap {
		score = injuryScoreCap
	}
	return score, reasons
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func (c *Classifier) vitalsScore(f Factors, si float64) (int, []string) {
	score := 0
	var reasons []string

	switch {
	case si > 1.3:
		score += 6
		reasons = append(reasons, fmt.Sprintf("Critical enhanced shock index: %.2f", si))
	case si > 1.0:
		score += 4
		reasons = append(reasons, fmt.Sprintf("High enhanced shock index: %.2f", si))
	case si > 0.8:
		score += 2
		reasons = append(reasons, fmt.Sprintf("Elevated enhanced shock index: %.2f", si))
	}

	if hr := f.HeartRate; hr != 0 {
		switch {
		case hr > 120 || hr < 50:
			score += 3
			reasons = append(reasons, "Critical heart rate: "+num(hr)+" BPM")
		case hr > 100 || hr < 60:
			score++
			reasons = append(reasons, "Abnormal heart rate: "+num(hr)+" BPM")
		}
	}

	if sbp := f.SystolicBP; sbp != 0 {
		switch {
		case sbp < 90:
			score += 4
			reasons = append(reasons, "Hypotension: "+num(sbp)+" mmHg")
		case sbp < 110:
			score += 2
			reasons = append(reasons, "Low systolic BP: "+num(sbp)+" mmHg")
		case sbp > 180:
			score += 2
			reasons = append(reasons, "Severe hypertension: "+num(sbp)+" mmHg")
		}
	}

	if rr := f.RespiratoryRate; rr != 0 {
		switch {
		case rr > 30 || rr < 8:
			score += 3
			reasons = append(reasons, "Critical respiratory rate: "+num(rr)+"/min")
		case rr > 24 || rr < 12:
			score++
			reasons = append(reasons, "Abnormal respiratory rate: "+num(rr)+"/min")
		}
	}

	if spo2 := f.OxygenSaturation; spo2 != 0 {
		switch {
		case spo2 < 90:
			score += 4
			reasons = append(reasons, "Critical oxygen saturation: "+num(spo2)+"%")
		case spo2 < 95:
			score += 2
			reasons = append(reasons, "Low oxygen saturation: "+num(spo2)+"%")
		}
	}
	return score, reasons
}

func (c *Classifier) consciousnessScore(f Factors) (int, []string) {
	score := 0
	var reasons []string

	level := strings.ToLower(f.Consciousness)
	switch {
	case containsAny(level, []string{"unconscious", "unresponsive", "coma"}):
		score += 8
		reasons = append(reasons, "Patient unconscious/unresponsive")
	case containsAny(level, []string{"confused", "disoriented", "altered"}):
		score += 4
		reasons = append(reasons, "Altered level of consciousness")
	case containsAny(level, []string{"drowsy", "lethargic"}):
		score += 2
		reasons = append(reasons, "Decreased alertness")
	}

	if c.isHighEnergy(f.Mechanism) {
		score += 3
		reasons = append(reasons, "High-energy mechanism: "+f.Mechanism)
	}
	return score, reasons
}

func actionsScore(f Factors) (int, []string) {
	score := 0
	var reasons []string
	if f.EmergencyActionCount > 0 {
		score += f.EmergencyActionCount * 3
		reasons = append(reasons, fmt.Sprintf("%d emergency intervention(s) performed", f.EmergencyActionCount))
	}
	if f.MedicationCount > 0 {
		score += f.MedicationCount * 2
		reasons = append(reasons, fmt.Sprintf("%d medication(s) administered", f.MedicationCount))
	}
	if f.ActionCount > 5 {
		score += 2
		reasons = append(reasons, "Multiple interventions required")
	}
	return score, reasons
}

// Classify is deterministic for a given rule set.
func (c *Classifier) Classify(f Factors) Result {
	var reasons []string
	total := 0.0

	injury, r := c.injurySeverity(f)
	total += float64(injury) * injuryWeight
	reasons = append(reasons, r...)

	si := c.ShockIndex(f)
	vitals, r := c.vitalsScore(f, si)
	total += float64(vitals)
	reasons = append(reasons, r...)

	consciousness, r := c.consciousnessScore(f)
	total += float64(consciousness)
	reasons = append(reasons, r...)

	actions, r := actionsScore(f)
	total += float64(actions)
	reasons = append(reasons, r...)

	level := models.TriageGreen
	critical := false
	awareness := strings.ToLower(f.Consciousness)
	switch {
	case strings.Contains(awareness, "unconscious"), strings.Contains(awareness, "unresponsive"),
		f.OxygenSaturation != 0 && f.OxygenSaturation < 85,
		f.SystolicBP != 0 && f.SystolicBP < 70,
		si > 1.4:
		level = models.TriageRed
		critical = true
		reasons = append([]string{reasonCritical}, reasons...)
	case total >= 15 || si > 1.0:
		level = models.TriageRed
	case total >= 8 || si > 0.8:
		level = models.TriageYellow
	}

	if c.criticalCount(f.SelectedInjuries) >= 2 {
		level = models.TriageRed
		if !critical {
			reasons = append([]string{reasonPolytrauma}, reasons...)
		}
	}

	if len(reasons) == 0 {
		reasons = []string{reasonStandard}
	}
	result := Result{
		Level:               level,
		Score:               math.Round(total*10) / 10,
		Reasoning:           reasons,
		InjurySeverityScore: injury,
	}
	if si > 0 {
		rounded := math.Round(si*100) / 100
		result.ShockIndex = &rounded
	}
	return result
}

// FactorsFor derives classifier input from stored records: the newest
// reading, the patient questionnaire and the action history.
func FactorsFor(patient *models.Patient, latest *models.VitalSign, actions []models.ParamedicAction) Factors {
	var f Factors
	if latest != nil {
		f.HeartRate = deref(latest.HeartRate)
		f.SystolicBP = deref(latest.BPSystolic)
		f.DiastolicBP = deref(latest.BPDiastolic)
		f.RespiratoryRate = deref(latest.RespiratoryRate)
		f.Temperature = deref(latest.Temperature)
		f.OxygenSaturation = deref(latest.OxygenSaturation)
	}
	if patient != nil {
		f.Consciousness = patient.Consciousness
		f.Mechanism = choiceOrOther(patient.Mechanism, patient.MechanismOther)
		f.VisibleInjuries = patient.VisibleInjuries
		f.SelectedInjuries = patient.Injuries()
		f.ChiefComplaint = choiceOrOther(patient.ChiefComplaint, patient.ChiefComplaintOther)
	}
	f.ActionCount = len(actions)
	for _, a := range actions {
		name := strings.ToLower(a.Action)
		if a.ActionType == "emergency" || strings.Contains(name, "emergency") || strings.Contains(name, "critical") {
			f.EmergencyActionCount++
		}
		if a.ActionType == "medication" {
			f.MedicationCount++
		}
	}
	return f
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// choiceOrOther resolves a questionnaire pick against its free-text field,
// which replaces an empty pick or the literal "other".
func choiceOrOther(choice, other string) string {
	if other != "" && (choice == "" || strings.EqualFold(choice, "other")) {
		return other
	}
	return choice
}
