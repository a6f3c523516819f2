// Package normalizer canonicalizes raw intake values before they reach the
// record store. Inputs are raw JSON fragments; a nil or empty fragment means
// the key was absent from the payload.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	MinAge = 0
	MaxAge = 150
)

var (
	ErrAgeOutOfRange = errors.New("age out of range")
	ErrAgeNotInteger = errors.New("age must be a valid integer")
	ErrInjuriesShape = errors.New("selected_injuries must be a list of strings")
)

// trailing ".0", ".00" ... is tolerated on integer strings.
var zeroFraction = regexp.MustCompile(`\.0*$`)

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// NormalizeAge returns nil for an absent, null, empty-string or zero age.
// Zero is treated as "unknown" rather than a real age; see DESIGN.md.
func NormalizeAge(raw json.RawMessage) (*int, error) {
	if isAbsent(raw) {
		return nil, nil
	}

	var value interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, ValidationError{Field: "age", reason: ErrAgeNotInteger}
	}

	var age int
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(zeroFraction.ReplaceAllString(s, ""))
		if err != nil {
			return nil, ValidationError{Field: "age", reason: ErrAgeNotInteger}
		}
		age = n
	case json.Number:
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, ValidationError{Field: "age", reason: ErrAgeNotInteger}
		}
		if f > math.MaxInt32 || f < math.MinInt32 {
			return nil, ValidationError{Field: "age", reason: ErrAgeOutOfRange}
		}
		age = int(f)
	default:
		return nil, ValidationError{Field: "age", reason: ErrAgeNotInteger}
	}

	if age == 0 {
		return nil, nil
	}
	if age < MinAge || age > MaxAge {
		return nil, ValidationError{Field: "age", reason: ErrAgeOutOfRange}
	}
	return &age, nil
}

// NormalizeInjuries passes a list of strings through unchanged and maps an
// absent list to an empty one.
func NormalizeInjuries(raw json.RawMessage) ([]string, error) {
	if isAbsent(raw) {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, ValidationError{Field: "selected_injuries", reason: ErrInjuriesShape}
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// NormalizeText maps an absent or null text field to "".
func NormalizeText(field string, raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", Invalid(field, "must be a string")
	}
	return s, nil
}

// NormalizeBool accepts JSON booleans and the usual form encodings.
func NormalizeBool(field string, raw json.RawMessage) (bool, error) {
	if isAbsent(raw) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off", "":
			return false, nil
		}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		switch n.String() {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
	}
	return false, Invalid(field, "must be a boolean")
}

// NormalizeFloat returns nil for an absent, null or blank measurement.
func NormalizeFloat(field string, raw json.RawMessage) (*float64, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return &parsed, nil
		}
	}
	return nil, Invalid(field, "must be a number")
}

// NormalizeID parses a foreign key given as a JSON number or numeric string.
func NormalizeID(field string, raw json.RawMessage) (int64, error) {
	if isAbsent(raw) {
		return 0, Invalid(field, "is required")
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil && parsed > 0 {
			return parsed, nil
		}
	}
	return 0, Invalid(field, "must be a positive integer id")
}
