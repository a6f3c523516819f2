package summary

import (
	"encoding/json"
	"testing"
)

func TestValueDecoding(t *testing.T) {
	var info PatientInfo
	raw := `{"name":"Ann","age":"41","gender":null,"status":"","eta":15.50}`
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Name.Or("x") != "Ann" || info.Age.Or("x") != "41" {
		t.Fatalf("unexpected values: %+v", info)
	}
	if info.Gender.IsSet() {
		t.Fatalf("null must read as unset")
	}
	if !info.Status.IsSet() || info.Status.Or("x") != "" {
		t.Fatalf("present empty string must be kept")
	}
	if info.ETA.Or("x") != "15.50" {
		t.Fatalf("numeric literal changed: %q", info.ETA.Or("x"))
	}
	if info.TraumaSiteName.IsSet() {
		t.Fatalf("absent key must read as unset")
	}
}

func TestNumberValueFormatting(t *testing.T) {
	if got := NumberValue(98.6).Or(""); got != "98.6" {
		t.Fatalf("got %q", got)
	}
	if got := NumberValue(120).Or(""); got != "120" {
		t.Fatalf("got %q", got)
	}
}
