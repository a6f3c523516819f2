package summary

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/triagex/platform/pkg/common/models"
)

// RecordReader is the read side of the record store used to assemble a
// snapshot for a stored patient.
type RecordReader interface {
	GetPatient(ctx context.Context, id int64) (*models.Patient, error)
	GetSite(ctx context.Context, id int64) (*models.TraumaSite, error)
	ListVitals(ctx context.Context, patientID *int64) ([]models.VitalSign, error)
	ListActions(ctx context.Context, patientID *int64) ([]models.ParamedicAction, error)
}

// LoadSnapshot reads a patient with its site, vitals and actions. A missing
// site is tolerated; the prompt then shows it as unknown.
func LoadSnapshot(ctx context.Context, store RecordReader, patientID int64) (PatientData, error) {
	patient, err := store.GetPatient(ctx, patientID)
	if err != nil {
		return PatientData{}, err
	}
	site, err := store.GetSite(ctx, patient.SiteID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return PatientData{}, err
	}
	vitals, err := store.ListVitals(ctx, &patientID)
	if err != nil {
		return PatientData{}, err
	}
	actions, err := store.ListActions(ctx, &patientID)
	if err != nil {
		return PatientData{}, err
	}
	return BuildSnapshot(patient, site, vitals, actions), nil
}

// BuildSnapshot converts stored records to the summary input shape. Vitals
// and actions are expected oldest first.
func BuildSnapshot(patient *models.Patient, site *models.TraumaSite, vitals []models.VitalSign, actions []models.ParamedicAction) PatientData {
	var data PatientData
	if patient != nil {
		data.PatientInfo = PatientInfo{
			Name:             textValue(patient.Name),
			Gender:           textValue(patient.Gender),
			Status:           StringValue(patientStatus(patient)),
			InitialComplaint: textValue(complaint(patient)),
		}
		if patient.Age != nil {
			data.PatientInfo.Age = IntValue(*patient.Age)
		}
	}
	if site != nil {
		data.PatientInfo.TraumaSiteName = textValue(site.Name)
	}

	data.VitalSigns = make([]VitalReading, 0, len(vitals))
	for _, v := range vitals {
		data.VitalSigns = append(data.VitalSigns, VitalReading{
			Timestamp:        timeValue(v.Timestamp),
			HeartRate:        floatValue(v.HeartRate),
			BPSystolic:       floatValue(v.BPSystolic),
			BPDiastolic:      floatValue(v.BPDiastolic),
			OxygenSaturation: floatValue(v.OxygenSaturation),
			RespiratoryRate:  floatValue(v.RespiratoryRate),
			Temperature:      floatValue(v.Temperature),
			Source:           textValue(v.Source),
		})
	}

	data.Timeline = make([]Action, 0, len(actions))
	for _, a := range actions {
		data.Timeline = append(data.Timeline, Action{
			Timestamp:  timeValue(a.Timestamp),
			Action:     textValue(a.Action),
			ActionType: textValue(a.ActionType),
			Details:    textValue(a.Details),
			Source:     textValue(a.Source),
		})
	}
	return data
}

func patientStatus(p *models.Patient) string {
	if p.TriageStatus != "" && p.TriageStatus != "Pending Assessment" {
		return p.TriageStatus
	}
	return models.StatusForTriageLevel(p.TriageLevel)
}

func complaint(p *models.Patient) string {
	if strings.EqualFold(p.ChiefComplaint, "other") && p.ChiefComplaintOther != "" {
		return p.ChiefComplaintOther
	}
	return p.ChiefComplaint
}

// Stored text columns default to "", which means "not recorded" here.
func textValue(s string) Value {
	if s == "" {
		return Value{}
	}
	return StringValue(s)
}

func floatValue(f *float64) Value {
	if f == nil {
		return Value{}
	}
	return NumberValue(*f)
}

func timeValue(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return StringValue(t.UTC().Format(time.RFC3339))
}
