package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ErrNotFound is returned by record lookups that match no row.
var ErrNotFound = errors.New("record not found")

// Intake records. JSON names follow the public REST API.

type TraumaSite struct {
	ID        int64     `json:"id" gorm:"primaryKey;column:id"`
	Name      string    `json:"name" gorm:"column:name;size:100;not null"`
	Latitude  *float64  `json:"latitude" gorm:"column:latitude"`
	Longitude *float64  `json:"longitude" gorm:"column:longitude"`
	Address   string    `json:"address" gorm:"column:address;size:255;not null;default:''"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index"`
}

func (TraumaSite) TableName() string { return "trauma_sites" }

type Patient struct {
	ID                  int64          `json:"id" gorm:"primaryKey;column:id"`
	SiteID              int64          `json:"site" gorm:"column:site_id;index;not null"`
	Name                string         `json:"name" gorm:"column:name;size:255"`
	TriageLevel         string         `json:"triage_level" gorm:"column:triage_level;size:10"`
	TriageStatus        string         `json:"triage_status" gorm:"column:triage_status;size:50"`
	Age                 *int           `json:"age" gorm:"column:age"`
	Gender              string         `json:"gender" gorm:"column:gender;size:20"`
	ChiefComplaint      string         `json:"chief_complaint" gorm:"column:chief_complaint;size:50"`
	ChiefComplaintOther string         `json:"chief_complaint_other" gorm:"column:chief_complaint_other;size:200"`
	Consciousness       string         `json:"consciousness" gorm:"column:consciousness;size:50"`
	Mechanism           string         `json:"mechanism" gorm:"column:mechanism;size:50"`
	MechanismOther      string         `json:"mechanism_other" gorm:"column:mechanism_other;size:200"`
	VisibleInjuries     bool           `json:"visible_injuries" gorm:"column:visible_injuries"`
	SelectedInjuries    datatypes.JSON `json:"selected_injuries" gorm:"column:selected_injuries"`
	MedicalAlert        bool           `json:"medical_alert" gorm:"column:medical_alert"`
	AllergiesHistory    bool           `json:"allergies_history" gorm:"column:allergies_history"`
	AllergiesDetails    string         `json:"allergies_details" gorm:"column:allergies_details"`
	CreatedAt           time.Time      `json:"created_at" gorm:"column:created_at;index"`
}

func (Patient) TableName() string { return "patients" }

// Injuries decodes the stored injury tags. A malformed column reads as empty.
func (p Patient) Injuries() []string {
	if len(p.SelectedInjuries) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(p.SelectedInjuries, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// SetInjuries stores tags as a JSON array, never null.
func (p *Patient) SetInjuries(tags []string) {
	if tags == nil {
		tags = []string{}
	}
	data, _ := json.Marshal(tags)
	p.SelectedInjuries = datatypes.JSON(data)
}

type VitalSign struct {
	ID               int64     `json:"id" gorm:"primaryKey;column:id"`
	PatientID        int64     `json:"patient" gorm:"column:patient_id;index;not null"`
	Timestamp        time.Time `json:"timestamp" gorm:"column:timestamp;index"`
	HeartRate        *float64  `json:"heart_rate" gorm:"column:heart_rate"`
	BPSystolic       *float64  `json:"bp_systolic" gorm:"column:bp_systolic"`
	BPDiastolic      *float64  `json:"bp_diastolic" gorm:"column:bp_diastolic"`
	RespiratoryRate  *float64  `json:"respiratory_rate" gorm:"column:respiratory_rate"`
	Temperature      *float64  `json:"temperature" gorm:"column:temperature"`
	OxygenSaturation *float64  `json:"oxygen_saturation" gorm:"column:oxygen_saturation"`
	Source           string    `json:"source" gorm:"column:source;size:20;default:'device'"`
}

func (VitalSign) TableName() string { return "vital_signs" }

type ParamedicAction struct {
	ID         int64     `json:"id" gorm:"primaryKey;column:id"`
	PatientID  int64     `json:"patient" gorm:"column:patient_id;index;not null"`
	Timestamp  time.Time `json:"timestamp" gorm:"column:timestamp;index"`
	Action     string    `json:"action" gorm:"column:action;size:255;not null"`
	ActionType string    `json:"action_type" gorm:"column:action_type;size:50"`
	Details    string    `json:"details" gorm:"column:details"`
	Source     string    `json:"source" gorm:"column:source;size:50;default:'trauma-site'"`
}

func (ParamedicAction) TableName() string { return "paramedic_actions" }

const (
	DefaultVitalSource  = "device"
	DefaultActionSource = "trauma-site"
)

// Event bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventSiteCreated    = "site.created"
	EventSiteUpdated    = "site.updated"
	EventPatientCreated = "patient.created"
	EventPatientUpdated = "patient.updated"
	EventVitalRecorded  = "vital.recorded"
	EventActionRecorded = "action.recorded"
	EventTriageUpdated  = "triage.updated"
)

// Triage levels as stored on Patient.TriageLevel.
const (
	TriageRed    = "red"
	TriageYellow = "yellow"
	TriageGreen  = "green"
	TriageBlack  = "black"
)

// StatusForTriageLevel maps a level to the dashboard status label.
// Unknown levels read as Stable.
func StatusForTriageLevel(level string) string {
	switch strings.ToLower(level) {
	case TriageRed:
		return "Critical"
	case TriageGreen:
		return "Improving"
	case TriageBlack:
		return "Deceased"
	default:
		return "Stable"
	}
}
