package summary

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Value is a client-supplied scalar kept exactly as sent. Absent keys and
// JSON null are both unset; numbers keep their literal spelling.
type Value struct {
	text string
	set  bool
}

func StringValue(s string) Value { return Value{text: s, set: true} }

func NumberValue(f float64) Value {
	return Value{text: strconv.FormatFloat(f, 'f', -1, 64), set: true}
}

func IntValue(n int) Value { return Value{text: strconv.Itoa(n), set: true} }

func (v Value) IsSet() bool { return v.set }

// Or returns the value's text, or fallback when unset.
func (v Value) Or(fallback string) string {
	if !v.set {
		return fallback
	}
	return v.text
}

func (v *Value) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = Value{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = Value{text: s, set: true}
		return nil
	}
	*v = Value{text: string(trimmed), set: true}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	return json.Marshal(v.text)
}

type PatientInfo struct {
	Name             Value `json:"name"`
	Age              Value `json:"age"`
	Gender           Value `json:"gender"`
	Status           Value `json:"status"`
	InitialComplaint Value `json:"initialComplaint"`
	TraumaSiteName   Value `json:"traumaSiteName"`
	ETA              Value `json:"eta"`
}

type VitalReading struct {
	Timestamp        Value `json:"timestamp"`
	HeartRate        Value `json:"heartRate"`
	BPSystolic       Value `json:"bpSystolic"`
	BPDiastolic      Value `json:"bpDiastolic"`
	OxygenSaturation Value `json:"oxygenSaturation"`
	RespiratoryRate  Value `json:"respiratoryRate"`
	Temperature      Value `json:"temperature"`
	Source           Value `json:"source"`
}

type Action struct {
	Timestamp  Value `json:"timestamp"`
	Action     Value `json:"action"`
	ActionType Value `json:"actionType"`
	Details    Value `json:"details"`
	Source     Value `json:"source"`
}

// PatientData is the caller's snapshot; the pipeline never re-reads the store
// for a client-supplied request.
type PatientData struct {
	PatientInfo PatientInfo    `json:"patientInfo"`
	VitalSigns  []VitalReading `json:"vitalSigns"`
	Timeline    []Action       `json:"timeline"`
}
