package summary

import (
	"testing"
	"time"

	"github.com/triagex/platform/pkg/common/models"
)

func TestBuildSnapshot(t *testing.T) {
	age := 52
	spo2 := 91.0
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	patient := &models.Patient{
		ID:                  1,
		Name:                "Maria",
		Age:                 &age,
		Gender:              "Female",
		TriageLevel:         "yellow",
		TriageStatus:        "Pending Assessment",
		ChiefComplaint:      "other",
		ChiefComplaintOther: "Crush injury",
	}
	data := BuildSnapshot(patient, nil,
		[]models.VitalSign{{Timestamp: ts, OxygenSaturation: &spo2, Source: "device"}},
		[]models.ParamedicAction{{Timestamp: ts, Action: "Splint", ActionType: "treatment"}},
	)

	if data.PatientInfo.Age.Or("") != "52" || data.PatientInfo.Status.Or("") != "Stable" {
		t.Fatalf("unexpected patient info: %+v", data.PatientInfo)
	}
	if data.PatientInfo.InitialComplaint.Or("") != "Crush injury" {
		t.Fatalf("expected free-text complaint, got %q", data.PatientInfo.InitialComplaint.Or(""))
	}
	if data.PatientInfo.TraumaSiteName.IsSet() {
		t.Fatalf("missing site must be unset")
	}
	v := data.VitalSigns[0]
	if v.Timestamp.Or("") != "2024-05-01T10:30:00Z" || v.OxygenSaturation.Or("") != "91" || v.HeartRate.IsSet() {
		t.Fatalf("unexpected reading: %+v", v)
	}
	if data.Timeline[0].Details.IsSet() {
		t.Fatalf("empty details must be unset so the prompt shows the default")
	}
}
