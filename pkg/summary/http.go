package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/common/models"
)

const defaultMaxBody = 1 << 20

var (
	errInvalidPatientData = newError(KindBadRequest, "Invalid patientData", nil)
	errBodyTooLarge       = &Error{Kind: KindBadRequest, Message: "Request body too large"}
	errPatientNotFound    = newError(KindNotFound, "Patient not found", nil)
	errInvalidPatientID   = newError(KindBadRequest, "Invalid patient id", nil)
)

type HTTPHandler struct {
	service   *Service
	snapshots RecordReader
	maxBody   int64
}

// NewHTTPHandler wires the summary routes. snapshots may be nil, in which
// case only the client-supplied snapshot routes are served.
func NewHTTPHandler(service *Service, snapshots RecordReader, maxBody int64) *HTTPHandler {
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &HTTPHandler{service: service, snapshots: snapshots, maxBody: maxBody}
}

// Register mounts the routes without method matchers so that every verb
// reaches the handler and a wrong one gets a JSON 405.
func (h *HTTPHandler) Register(r *mux.Router) {
	r.HandleFunc("/ai-summary", h.handleSummary)
	r.HandleFunc("/v1/summary", h.handleSummary)
	if h.snapshots != nil {
		r.HandleFunc("/patients/{id}/ai-summary", h.handleStoredSummary)
	}
}

func (h *HTTPHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.fail(w, r, ErrMethodNotAllowed)
		return
	}
	data, err := h.decodeRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, data)
}

func (h *HTTPHandler) handleStoredSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.fail(w, r, ErrMethodNotAllowed)
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, errInvalidPatientID)
		return
	}
	data, err := LoadSnapshot(r.Context(), h.snapshots, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.fail(w, r, errPatientNotFound)
			return
		}
		h.fail(w, r, newError(KindInternal, "Internal server error", err))
		return
	}
	h.respond(w, r, data)
}

func (h *HTTPHandler) respond(w http.ResponseWriter, r *http.Request, data PatientData) {
	result, err := h.service.Summarize(r.Context(), data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("X-Summary-Source", string(result.Source))
	writeJSON(w, http.StatusOK, map[string]string{"summary": result.Summary})
}

// decodeRequest validates the envelope in order: well-formed JSON, a
// non-empty patientData, then its shape.
func (h *HTTPHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (PatientData, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return PatientData{}, errBodyTooLarge
		}
		return PatientData{}, ErrInvalidJSON
	}
	if !json.Valid(body) {
		return PatientData{}, ErrInvalidJSON
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		// Valid JSON that is not an object carries no patientData.
		return PatientData{}, ErrMissingPatient
	}
	raw, ok := envelope["patientData"]
	if !ok || isEmptyJSON(raw) {
		return PatientData{}, ErrMissingPatient
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] != '{' {
		return PatientData{}, errInvalidPatientData
	}

	var data PatientData
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return PatientData{}, &Error{Kind: KindBadRequest, Message: "Invalid patientData", Err: err}
	}
	return data, nil
}

// isEmptyJSON reports whether raw is null, false, zero, "" or an empty
// object or array.
func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", "false", `""`, "{}", "[]":
		return true
	}
	switch trimmed[0] {
	case '{':
		var m map[string]json.RawMessage
		return json.Unmarshal(trimmed, &m) == nil && len(m) == 0
	case '[':
		var a []json.RawMessage
		return json.Unmarshal(trimmed, &a) == nil && len(a) == 0
	case '"', 't':
		return false
	}
	f, err := strconv.ParseFloat(string(trimmed), 64)
	return err == nil && f == 0
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := Classify(err)
	if e == errBodyTooLarge {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": e.Error()})
		return
	}
	status := e.Kind.Status()
	entry := logger.Log.WithFields(map[string]interface{}{
		"path":       r.URL.Path,
		"method":     r.Method,
		"kind":       e.Kind.String(),
		"status":     status,
		"request_id": w.Header().Get("X-Request-ID"),
	})
	if e.Err != nil {
		entry = entry.WithError(e.Err)
	}
	if status >= http.StatusInternalServerError {
		entry.Error("AI summary request failed")
	} else {
		entry.Warn("AI summary request rejected")
	}
	writeJSON(w, status, map[string]string{"error": e.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
