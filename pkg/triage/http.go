package triage

import (
	"encoding/json"
	"errors"
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
	r.HandleFunc("/patients/{id:[0-9]+}/triage", h.handleRecalculate).Methods(http.MethodPost)
	r.HandleFunc("/patients/{id:[0-9]+}/triage", h.handleOverride).Methods(http.MethodPut)
	r.HandleFunc("/triage/classify", h.handleClassify).Methods(http.MethodPost)
}

type overrideRequest struct {
	Level  string `json:"level"`
	Reason string `json:"reason"`
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	result, patient, err := h.service.Recalculate(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to recalculate triage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"triage": result, "patient": patient})
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}
	patient, err := h.service.Override(r.Context(), id, req.Level, req.Reason)
	if err != nil {
		writeError(w, err, "failed to apply triage override")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": patient})
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	var factors Factors
	if err := json.NewDecoder(r.Body).Decode(&factors); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}
	writeJSON(w, http.StatusOK, h.service.Classify(factors))
}

func writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case normalizer.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "patient not found"})
	default:
		logger.Log.WithError(err).Error(msg)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
