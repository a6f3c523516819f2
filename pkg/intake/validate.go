package intake

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/triagex/platform/pkg/common/models"
	"github.com/triagex/platform/pkg/normalizer"
)

// Fields is a decoded JSON object keyed by field name. A missing key means
// the client did not send the field.
type Fields map[string]json.RawMessage

const defaultTriageStatus = "Pending Assessment"

var triageLevels = map[string]bool{
	"":                  true,
	models.TriageRed:    true,
	models.TriageYellow: true,
	models.TriageGreen:  true,
	models.TriageBlack:  true,
}

func (f Fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

func text(f Fields, key string, max int) (string, error) {
	s, err := normalizer.NormalizeText(key, f[key])
	if err != nil {
		return "", err
	}
	if max > 0 && utf8.RuneCountInString(s) > max {
		return "", normalizer.Invalid(key, fmt.Sprintf("ensure this field has no more than %d characters", max))
	}
	return s, nil
}

func required(f Fields, key string, max int) (string, error) {
	s, err := text(f, key, max)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", normalizer.Invalid(key, "this field is required")
	}
	return s, nil
}

// DecodeSite builds a site from a create payload.
func DecodeSite(f Fields) (*models.TraumaSite, error) {
	site := &models.TraumaSite{}
	if err := ApplySite(site, f, false); err != nil {
		return nil, err
	}
	return site, nil
}

// ApplySite follows the same partial rules as ApplyPatient.
func ApplySite(site *models.TraumaSite, f Fields, partial bool) error {
	touch := func(key string) bool { return !partial || f.has(key) }
	var err error
	if touch("name") {
		if site.Name, err = required(f, "name", 100); err != nil {
			return err
		}
	}
	if touch("address") {
		if site.Address, err = text(f, "address", 255); err != nil {
			return err
		}
	}
	if touch("latitude") {
		if site.Latitude, err = normalizer.NormalizeFloat("latitude", f["latitude"]); err != nil {
			return err
		}
	}
	if touch("longitude") {
		if site.Longitude, err = normalizer.NormalizeFloat("longitude", f["longitude"]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPatient copies payload fields onto p. With partial set only keys
// present in the payload change; otherwise absent keys reset to defaults.
func ApplyPatient(p *models.Patient, f Fields, partial bool) error {
	touch := func(key string) bool { return !partial || f.has(key) }
	var err error

	if touch("site") {
		if p.SiteID, err = normalizer.NormalizeID("site", f["site"]); err != nil {
			return err
		}
	}
	if touch("name") {
		if p.Name, err = required(f, "name", 255); err != nil {
			return err
		}
	}
	if touch("triage_level") {
		level, err := text(f, "triage_level", 10)
		if err != nil {
			return err
		}
		level = strings.ToLower(strings.TrimSpace(level))
		if !triageLevels[level] {
			return normalizer.Invalid("triage_level", "must be one of red, yellow, green, black")
		}
		p.TriageLevel = level
	}
	if touch("triage_status") {
		if p.TriageStatus, err = text(f, "triage_status", 50); err != nil {
			return err
		}
		if p.TriageStatus == "" {
			p.TriageStatus = defaultTriageStatus
		}
	}
	if touch("age") {
		if p.Age, err = normalizer.NormalizeAge(f["age"]); err != nil {
			return err
		}
	}

	texts := []struct {
		key string
		max int
		dst *string
	}{
		{"gender", 20, &p.Gender},
		{"chief_complaint", 50, &p.ChiefComplaint},
		{"chief_complaint_other", 200, &p.ChiefComplaintOther},
		{"consciousness", 50, &p.Consciousness},
		{"mechanism", 50, &p.Mechanism},
		{"mechanism_other", 200, &p.MechanismOther},
		{"allergies_details", 0, &p.AllergiesDetails},
	}
	for _, t := range texts {
		if !touch(t.key) {
			continue
		}
		if *t.dst, err = text(f, t.key, t.max); err != nil {
			return err
		}
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{"visible_injuries", &p.VisibleInjuries},
		{"medical_alert", &p.MedicalAlert},
		{"allergies_history", &p.AllergiesHistory},
	}
	for _, b := range flags {
		if !touch(b.key) {
			continue
		}
		if *b.dst, err = normalizer.NormalizeBool(b.key, f[b.key]); err != nil {
			return err
		}
	}

	if touch("selected_injuries") {
		tags, err := normalizer.NormalizeInjuries(f["selected_injuries"])
		if err != nil {
			return err
		}
		p.SetInjuries(tags)
	}
	return nil
}

// DecodeVital builds a reading from a create payload. Timestamp is assigned
// by the service.
func DecodeVital(f Fields) (*models.VitalSign, error) {
	v := &models.VitalSign{}
	var err error
	if v.PatientID, err = normalizer.NormalizeID("patient", f["patient"]); err != nil {
		return nil, err
	}
	measures := []struct {
		key string
		dst **float64
	}{
		{"heart_rate", &v.HeartRate},
		{"bp_systolic", &v.BPSystolic},
		{"bp_diastolic", &v.BPDiastolic},
		{"respiratory_rate", &v.RespiratoryRate},
		{"temperature", &v.Temperature},
		{"oxygen_saturation", &v.OxygenSaturation},
	}
	for _, m := range measures {
		if *m.dst, err = normalizer.NormalizeFloat(m.key, f[m.key]); err != nil {
			return nil, err
		}
	}
	if v.Source, err = text(f, "source", 20); err != nil {
		return nil, err
	}
	if v.Source == "" {
		v.Source = models.DefaultVitalSource
	}
	return v, nil
}

func DecodeAction(f Fields) (*models.ParamedicAction, error) {
	a := &models.ParamedicAction{}
	var err error
	if a.PatientID, err = normalizer.NormalizeID("patient", f["patient"]); err != nil {
		return nil, err
	}
	if a.Action, err = required(f, "action", 255); err != nil {
		return nil, err
	}
	if a.ActionType, err = text(f, "action_type", 50); err != nil {
		return nil, err
	}
	if a.Details, err = text(f, "details", 0); err != nil {
		return nil, err
	}
	if a.Source, err = text(f, "source", 50); err != nil {
		return nil, err
	}
	if a.Source == "" {
		a.Source = models.DefaultActionSource
	}
	return a, nil
}
