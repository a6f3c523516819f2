package triage

import (
	"context"
	"strings"

	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/common/models"
	"github.com/triagex/platform/pkg/normalizer"
)

// Records is the subset of the intake service triage needs: reads plus the
// triage write, which publishes its own event.
type Records interface {
	GetPatient(ctx context.Context, id int64) (*models.Patient, error)
	ListVitals(ctx context.Context, patientID *int64) ([]models.VitalSign, error)
	ListActions(ctx context.Context, patientID *int64) ([]models.ParamedicAction, error)
	SetTriage(ctx context.Context, id int64, level, status string, details map[string]interface{}) (*models.Patient, error)
}

const defaultOverrideReason = "Manual override by medical personnel"

type Service struct {
	records    Records
	classifier *Classifier
}

func NewService(records Records, classifier *Classifier) *Service {
	return &Service{records: records, classifier: classifier}
}

func (s *Service) Classify(f Factors) Result {
	return s.classifier.Classify(f)
}

// Recalculate classifies a stored patient from the newest reading and the
// full action history, then records the level.
func (s *Service) Recalculate(ctx context.Context, patientID int64) (Result, *models.Patient, error) {
	patient, err := s.records.GetPatient(ctx, patientID)
	if err != nil {
		return Result{}, nil, err
	}
	vitals, err := s.records.ListVitals(ctx, &patientID)
	if err != nil {
		return Result{}, nil, err
	}
	actions, err := s.records.ListActions(ctx, &patientID)
	if err != nil {
		return Result{}, nil, err
	}
	var latest *models.VitalSign
	if len(vitals) > 0 {
		latest = &vitals[len(vitals)-1]
	}

	result := s.classifier.Classify(FactorsFor(patient, latest, actions))
	updated, err := s.records.SetTriage(ctx, patientID, result.Level, models.StatusForTriageLevel(result.Level), map[string]interface{}{
		"score":           result.Score,
		"reasoning":       result.Reasoning,
		"auto_calculated": true,
	})
	if err != nil {
		return Result{}, nil, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"patient_id": patientID,
		"level":      result.Level,
		"score":      result.Score,
	}).Info("Triage recalculated")
	return result, updated, nil
}

// Override applies a clinician-chosen level.
func (s *Service) Override(ctx context.Context, patientID int64, level, reason string) (*models.Patient, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case models.TriageRed, models.TriageYellow, models.TriageGreen, models.TriageBlack:
	default:
		return nil, normalizer.Invalid("level", "must be one of red, yellow, green, black")
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultOverrideReason
	}
	patient, err := s.records.SetTriage(ctx, patientID, level, models.StatusForTriageLevel(level), map[string]interface{}{
		"reason":          reason,
		"manual_override": true,
	})
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"patient_id": patientID,
		"level":      level,
		"reason":     reason,
	}).Info("Triage overridden")
	return patient, nil
}
