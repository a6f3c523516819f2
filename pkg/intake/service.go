package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/common/models"
	"github.com/triagex/platform/pkg/normalizer"
	"github.com/triagex/platform/pkg/observability/metrics"
)

// Publisher emits intake events. The kafka producer satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, partitionKey string, data map[string]interface{}) error
}

// VitalsCache holds the newest reading per patient.
type VitalsCache interface {
	PutLatest(ctx context.Context, vital models.VitalSign) error
	GetLatest(ctx context.Context, patientID int64) (*models.VitalSign, error)
	Evict(ctx context.Context, patientIDs ...int64) error
}

type Service struct {
	store     Store
	publisher Publisher
	cache     VitalsCache
	now       func() time.Time
}

// NewService takes optional publisher and cache; nil disables them.
func NewService(store Store, publisher Publisher, cache VitalsCache) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Store exposes the underlying record store for read-only collaborators.
func (s *Service) Store() Store { return s.store }

func (s *Service) CreateSite(ctx context.Context, f Fields) (*models.TraumaSite, error) {
	site, err := DecodeSite(f)
	if err != nil {
		return nil, err
	}
	site.CreatedAt = s.now()
	if err := s.store.CreateSite(ctx, site); err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventSiteCreated, site.ID, site.ID, site)
	return site, nil
}

func (s *Service) GetSite(ctx context.Context, id int64) (*models.TraumaSite, error) {
	return s.store.GetSite(ctx, id)
}

func (s *Service) ListSites(ctx context.Context) ([]models.TraumaSite, error) {
	return s.store.ListSites(ctx)
}

// UpdateSite replaces (partial=false) or merges (partial=true) fields.
func (s *Service) UpdateSite(ctx context.Context, id int64, f Fields, partial bool) (*models.TraumaSite, error) {
	site, err := s.store.GetSite(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ApplySite(site, f, partial); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSite(ctx, site); err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventSiteUpdated, site.ID, site.ID, site)
	return site, nil
}

// DeleteSite cascades to the site's patients and their records.
func (s *Service) DeleteSite(ctx context.Context, id int64) error {
	patients, err := s.store.ListPatients(ctx, &id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSite(ctx, id); err != nil {
		return err
	}
	ids := make([]int64, 0, len(patients))
	for _, p := range patients {
		ids = append(ids, p.ID)
	}
	s.evict(ctx, ids...)
	logger.Log.WithFields(map[string]interface{}{
		"site_id":  id,
		"patients": len(ids),
	}).Info("Trauma site deleted")
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, f Fields) (*models.Patient, error) {
	patient := &models.Patient{}
	if err := ApplyPatient(patient, f, false); err != nil {
		return nil, err
	}
	if err := s.requireSite(ctx, patient.SiteID); err != nil {
		return nil, err
	}
	patient.CreatedAt = s.now()
	if err := s.store.CreatePatient(ctx, patient); err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventPatientCreated, patient.ID, patient.SiteID, patient)
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*models.Patient, error) {
	return s.store.GetPatient(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, siteID *int64) ([]models.Patient, error) {
	return s.store.ListPatients(ctx, siteID)
}

// UpdatePatient replaces (partial=false) or merges (partial=true) fields.
func (s *Service) UpdatePatient(ctx context.Context, id int64, f Fields, partial bool) (*models.Patient, error) {
	patient, err := s.store.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	previousSite := patient.SiteID
	if err := ApplyPatient(patient, f, partial); err != nil {
		return nil, err
	}
	if patient.SiteID != previousSite {
		if err := s.requireSite(ctx, patient.SiteID); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdatePatient(ctx, patient); err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventPatientUpdated, patient.ID, patient.SiteID, patient)
	return patient, nil
}

// SetTriage records a triage decision on the patient.
func (s *Service) SetTriage(ctx context.Context, id int64, level, status string, details map[string]interface{}) (*models.Patient, error) {
	patient, err := s.store.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	if !triageLevels[level] || level == "" {
		return nil, normalizer.Invalid("level", "must be one of red, yellow, green, black")
	}
	patient.TriageLevel = level
	patient.TriageStatus = status
	if err := s.store.UpdatePatient(ctx, patient); err != nil {
		return nil, err
	}
	metrics.TriageUpdated()

	data := toMap(patient)
	for k, v := range details {
		data[k] = v
	}
	s.publishMap(ctx, models.EventTriageUpdated, patient.ID, patient.SiteID, data)
	return patient, nil
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	if err := s.store.DeletePatient(ctx, id); err != nil {
		return err
	}
	s.evict(ctx, id)
	return nil
}

func (s *Service) RecordVital(ctx context.Context, f Fields) (*models.VitalSign, error) {
	vital, err := DecodeVital(f)
	if err != nil {
		return nil, err
	}
	patient, err := s.requirePatient(ctx, vital.PatientID)
	if err != nil {
		return nil, err
	}
	vital.Timestamp = s.now()
	if err := s.store.CreateVital(ctx, vital); err != nil {
		return nil, err
	}
	metrics.VitalRecorded()

	if s.cache != nil {
		if err := s.cache.PutLatest(ctx, *vital); err != nil {
			logger.Log.WithError(err).WithField("patient_id", vital.PatientID).Warn("Failed to cache latest vitals")
		}
	}
	s.publish(ctx, models.EventVitalRecorded, vital.PatientID, patient.SiteID, vital)
	return vital, nil
}

func (s *Service) GetVital(ctx context.Context, id int64) (*models.VitalSign, error) {
	return s.store.GetVital(ctx, id)
}

func (s *Service) ListVitals(ctx context.Context, patientID *int64) ([]models.VitalSign, error) {
	return s.store.ListVitals(ctx, patientID)
}

// LatestVital reads the cache first and falls back to the store.
func (s *Service) LatestVital(ctx context.Context, patientID int64) (*models.VitalSign, error) {
	if s.cache != nil {
		vital, err := s.cache.GetLatest(ctx, patientID)
		if err == nil {
			return vital, nil
		}
		logger.Log.WithError(err).WithField("patient_id", patientID).Debug("Latest vitals not served from cache")
	}
	if _, err := s.store.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	vitals, err := s.store.ListVitals(ctx, &patientID)
	if err != nil {
		return nil, err
	}
	if len(vitals) == 0 {
		return nil, models.ErrNotFound
	}
	latest := vitals[len(vitals)-1]
	if s.cache != nil {
		if err := s.cache.PutLatest(ctx, latest); err != nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Warn("Failed to cache latest vitals")
		}
	}
	return &latest, nil
}

func (s *Service) DeleteVital(ctx context.Context, id int64) error {
	vital, err := s.store.GetVital(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteVital(ctx, id); err != nil {
		return err
	}
	s.evict(ctx, vital.PatientID)
	return nil
}

func (s *Service) RecordAction(ctx context.Context, f Fields) (*models.ParamedicAction, error) {
	action, err := DecodeAction(f)
	if err != nil {
		return nil, err
	}
	patient, err := s.requirePatient(ctx, action.PatientID)
	if err != nil {
		return nil, err
	}
	action.Timestamp = s.now()
	if err := s.store.CreateAction(ctx, action); err != nil {
		return nil, err
	}
	metrics.ActionRecorded()
	s.publish(ctx, models.EventActionRecorded, action.PatientID, patient.SiteID, action)
	return action, nil
}

func (s *Service) GetAction(ctx context.Context, id int64) (*models.ParamedicAction, error) {
	return s.store.GetAction(ctx, id)
}

func (s *Service) ListActions(ctx context.Context, patientID *int64) ([]models.ParamedicAction, error) {
	return s.store.ListActions(ctx, patientID)
}

func (s *Service) DeleteAction(ctx context.Context, id int64) error {
	return s.store.DeleteAction(ctx, id)
}

func (s *Service) requireSite(ctx context.Context, id int64) error {
	if _, err := s.store.GetSite(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return normalizer.Invalid("site", "trauma site does not exist")
		}
		return err
	}
	return nil
}

func (s *Service) requirePatient(ctx context.Context, id int64) (*models.Patient, error) {
	patient, err := s.store.GetPatient(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, normalizer.Invalid("patient", "patient does not exist")
		}
		return nil, err
	}
	return patient, nil
}

func (s *Service) evict(ctx context.Context, patientIDs ...int64) {
	if s.cache == nil || len(patientIDs) == 0 {
		return
	}
	if err := s.cache.Evict(ctx, patientIDs...); err != nil {
		logger.Log.WithError(err).Warn("Failed to evict cached vitals")
	}
}

func (s *Service) publish(ctx context.Context, eventType string, key, siteID int64, record interface{}) {
	s.publishMap(ctx, eventType, key, siteID, toMap(record))
}

// publishMap never fails the caller; the record is already stored.
func (s *Service) publishMap(ctx context.Context, eventType string, key, siteID int64, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	data["site_id"] = siteID
	if eventType != models.EventSiteCreated && eventType != models.EventSiteUpdated {
		data["patient_id"] = key
	}
	err := s.publisher.PublishEvent(ctx, eventType, strconv.FormatInt(key, 10), data)
	metrics.EventPublished(err == nil)
	if err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("Failed to publish intake event")
	}
}

func toMap(record interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	raw, err := json.Marshal(record)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
