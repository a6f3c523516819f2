package intake

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/common/models"
	"github.com/triagex/platform/pkg/normalizer"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/trauma-sites", h.handleListSites).Methods(http.MethodGet)
	r.HandleFunc("/trauma-sites", h.handleCreateSite).Methods(http.MethodPost)
	r.HandleFunc("/trauma-sites/{id:[0-9]+}", h.handleGetSite).Methods(http.MethodGet)
	r.HandleFunc("/trauma-sites/{id:[0-9]+}", h.handleUpdateSite).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/trauma-sites/{id:[0-9]+}", h.handleDeleteSite).Methods(http.MethodDelete)

	r.HandleFunc("/patients", h.handleListPatients).Methods(http.MethodGet)
	r.HandleFunc("/patients", h.handleCreatePatient).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id:[0-9]+}", h.handleGetPatient).Methods(http.MethodGet)
	r.HandleFunc("/patients/{id:[0-9]+}", h.handleUpdatePatient).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/patients/{id:[0-9]+}", h.handleDeletePatient).Methods(http.MethodDelete)

	r.HandleFunc("/vitalsigns", h.handleListVitals).Methods(http.MethodGet)
	r.HandleFunc("/vitalsigns", h.handleCreateVital).Methods(http.MethodPost)
	r.HandleFunc("/vitalsigns/latest/{patient_id:[0-9]+}", h.handleLatestVital).Methods(http.MethodGet)
	r.HandleFunc("/vitalsigns/{id:[0-9]+}", h.handleGetVital).Methods(http.MethodGet)
	r.HandleFunc("/vitalsigns/{id:[0-9]+}", h.handleDeleteVital).Methods(http.MethodDelete)

	r.HandleFunc("/paramedic-actions", h.handleListActions).Methods(http.MethodGet)
	r.HandleFunc("/paramedic-actions", h.handleCreateAction).Methods(http.MethodPost)
	r.HandleFunc("/paramedic-actions/{id:[0-9]+}", h.handleGetAction).Methods(http.MethodGet)
	r.HandleFunc("/paramedic-actions/{id:[0-9]+}", h.handleDeleteAction).Methods(http.MethodDelete)
}

func (h *Handler) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.service.ListSites(r.Context())
	if err != nil {
		writeError(w, err, "failed to list trauma sites")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sites))
}

func (h *Handler) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	site, err := h.service.CreateSite(r.Context(), fields)
	if err != nil {
		writeError(w, err, "failed to create trauma site")
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (h *Handler) handleGetSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.service.GetSite(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, err, "failed to get trauma site")
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (h *Handler) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	partial := r.Method == http.MethodPatch
	site, err := h.service.UpdateSite(r.Context(), pathID(r, "id"), fields, partial)
	if err != nil {
		writeError(w, err, "failed to update trauma site")
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (h *Handler) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSite(r.Context(), pathID(r, "id")); err != nil {
		writeError(w, err, "failed to delete trauma site")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListPatients(w http.ResponseWriter, r *http.Request) {
	siteID, err := queryID(r, "site")
	if err != nil {
		writeError(w, err, "")
		return
	}
	patients, err := h.service.ListPatients(r.Context(), siteID)
	if err != nil {
		writeError(w, err, "failed to list patients")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(patients))
}

func (h *Handler) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	patient, err := h.service.CreatePatient(r.Context(), fields)
	if err != nil {
		writeError(w, err, "failed to create patient")
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

func (h *Handler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	patient, err := h.service.GetPatient(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, err, "failed to get patient")
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (h *Handler) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	partial := r.Method == http.MethodPatch
	patient, err := h.service.UpdatePatient(r.Context(), pathID(r, "id"), fields, partial)
	if err != nil {
		writeError(w, err, "failed to update patient")
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (h *Handler) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePatient(r.Context(), pathID(r, "id")); err != nil {
		writeError(w, err, "failed to delete patient")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListVitals(w http.ResponseWriter, r *http.Request) {
	patientID, err := queryID(r, "patient_id")
	if err != nil {
		writeError(w, err, "")
		return
	}
	vitals, err := h.service.ListVitals(r.Context(), patientID)
	if err != nil {
		writeError(w, err, "failed to list vital signs")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(vitals))
}

func (h *Handler) handleCreateVital(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	vital, err := h.service.RecordVital(r.Context(), fields)
	if err != nil {
		writeError(w, err, "failed to record vital signs")
		return
	}
	writeJSON(w, http.StatusCreated, vital)
}

func (h *Handler) handleLatestVital(w http.ResponseWriter, r *http.Request) {
	vital, err := h.service.LatestVital(r.Context(), pathID(r, "patient_id"))
	if err != nil {
		writeError(w, err, "failed to get latest vital signs")
		return
	}
	writeJSON(w, http.StatusOK, vital)
}

func (h *Handler) handleGetVital(w http.ResponseWriter, r *http.Request) {
	vital, err := h.service.GetVital(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, err, "failed to get vital signs")
		return
	}
	writeJSON(w, http.StatusOK, vital)
}

func (h *Handler) handleDeleteVital(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteVital(r.Context(), pathID(r, "id")); err != nil {
		writeError(w, err, "failed to delete vital signs")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListActions(w http.ResponseWriter, r *http.Request) {
	patientID, err := queryID(r, "patient_id")
	if err != nil {
		writeError(w, err, "")
		return
	}
	actions, err := h.service.ListActions(r.Context(), patientID)
	if err != nil {
		writeError(w, err, "failed to list paramedic actions")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(actions))
}

func (h *Handler) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	action, err := h.service.RecordAction(r.Context(), fields)
	if err != nil {
		writeError(w, err, "failed to record paramedic action")
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

func (h *Handler) handleGetAction(w http.ResponseWriter, r *http.Request) {
	action, err := h.service.GetAction(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, err, "failed to get paramedic action")
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *Handler) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAction(r.Context(), pathID(r, "id")); err != nil {
		writeError(w, err, "failed to delete paramedic action")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeFields reads a JSON object body. It writes the 400 itself.
func decodeFields(w http.ResponseWriter, r *http.Request) (Fields, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return nil, false
	}
	var fields Fields
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be a JSON object"})
		return nil, false
	}
	return fields, true
}

// pathID is safe to ignore errors on: routes constrain ids to digits.
func pathID(r *http.Request, key string) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	return id
}

func queryID(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, normalizer.Invalid(key, "must be a positive integer id")
	}
	return &id, nil
}

func writeError(w http.ResponseWriter, err error, msg string) {
	var ve normalizer.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		logger.Log.WithError(err).Error(msg)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
