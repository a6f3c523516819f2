package intake

import (
	"context"
	"sort"
	"sync"

	"github.com/triagex/platform/pkg/common/models"
)

// memStore is an in-memory Store with the same ordering contract as the
// gorm repository.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	sites    map[int64]models.TraumaSite
	patients map[int64]models.Patient
	vitals   map[int64]models.VitalSign
	actions  map[int64]models.ParamedicAction
}

func newMemStore() *memStore {
	return &memStore{
		sites:    map[int64]models.TraumaSite{},
		patients: map[int64]models.Patient{},
		vitals:   map[int64]models.VitalSign{},
		actions:  map[int64]models.ParamedicAction{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateSite(_ context.Context, site *models.TraumaSite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	site.ID = m.id()
	m.sites[site.ID] = *site
	return nil
}

func (m *memStore) GetSite(_ context.Context, id int64) (*models.TraumaSite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	site, ok := m.sites[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &site, nil
}

func (m *memStore) ListSites(context.Context) ([]models.TraumaSite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TraumaSite
	for _, s := range m.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memStore) UpdateSite(_ context.Context, site *models.TraumaSite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[site.ID]; !ok {
		return models.ErrNotFound
	}
	m.sites[site.ID] = *site
	return nil
}

func (m *memStore) DeleteSite(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[id]; !ok {
		return models.ErrNotFound
	}
	for pid, p := range m.patients {
		if p.SiteID == id {
			m.deletePatientLocked(pid)
		}
	}
	delete(m.sites, id)
	return nil
}

func (m *memStore) deletePatientLocked(id int64) {
	for vid, v := range m.vitals {
		if v.PatientID == id {
			delete(m.vitals, vid)
		}
	}
	for aid, a := range m.actions {
		if a.PatientID == id {
			delete(m.actions, aid)
		}
	}
	delete(m.patients, id)
}

func (m *memStore) CreatePatient(_ context.Context, patient *models.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	patient.ID = m.id()
	m.patients[patient.ID] = *patient
	return nil
}

func (m *memStore) GetPatient(_ context.Context, id int64) (*models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) ListPatients(_ context.Context, siteID *int64) ([]models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Patient
	for _, p := range m.patients {
		if siteID == nil || p.SiteID == *siteID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memStore) UpdatePatient(_ context.Context, patient *models.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.patients[patient.ID]
	if !ok {
		return models.ErrNotFound
	}
	updated := *patient
	updated.CreatedAt = existing.CreatedAt
	m.patients[patient.ID] = updated
	return nil
}

func (m *memStore) DeletePatient(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[id]; !ok {
		return models.ErrNotFound
	}
	m.deletePatientLocked(id)
	return nil
}

func (m *memStore) CreateVital(_ context.Context, vital *models.VitalSign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vital.ID = m.id()
	m.vitals[vital.ID] = *vital
	return nil
}

func (m *memStore) GetVital(_ context.Context, id int64) (*models.VitalSign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vitals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &v, nil
}

func (m *memStore) ListVitals(_ context.Context, patientID *int64) ([]models.VitalSign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VitalSign
	for _, v := range m.vitals {
		if patientID == nil || v.PatientID == *patientID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *memStore) DeleteVital(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vitals[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.vitals, id)
	return nil
}

func (m *memStore) CreateAction(_ context.Context, action *models.ParamedicAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	action.ID = m.id()
	m.actions[action.ID] = *action
	return nil
}

func (m *memStore) GetAction(_ context.Context, id int64) (*models.ParamedicAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) ListActions(_ context.Context, patientID *int64) ([]models.ParamedicAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ParamedicAction
	for _, a := range m.actions {
		if patientID == nil || a.PatientID == *patientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *memStore) DeleteAction(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.actions, id)
	return nil
}
