package intake

import (
	"context"
	"errors"

	"github.com/triagex/platform/pkg/common/models"
	"gorm.io/gorm"
)

// Repository is the PostgreSQL Store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.TraumaSite{},
		&models.Patient{},
		&models.VitalSign{},
		&models.ParamedicAction{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}

func requireRow(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) CreateSite(ctx context.Context, site *models.TraumaSite) error {
	return r.db.WithContext(ctx).Create(site).Error
}

func (r *Repository) GetSite(ctx context.Context, id int64) (*models.TraumaSite, error) {
	var site models.TraumaSite
	if err := r.db.WithContext(ctx).First(&site, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &site, nil
}

func (r *Repository) ListSites(ctx context.Context) ([]models.TraumaSite, error) {
	var sites []models.TraumaSite
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

func (r *Repository) UpdateSite(ctx context.Context, site *models.TraumaSite) error {
	res := r.db.WithContext(ctx).Model(&models.TraumaSite{}).Where("id = ?", site.ID).Updates(map[string]interface{}{
		"name":      site.Name,
		"latitude":  site.Latitude,
		"longitude": site.Longitude,
		"address":   site.Address,
	})
	return requireRow(res)
}

func (r *Repository) DeleteSite(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		patients := tx.Model(&models.Patient{}).Select("id").Where("site_id = ?", id)
		if err := tx.Where("patient_id IN (?)", patients).Delete(&models.VitalSign{}).Error; err != nil {
			return err
		}
		if err := tx.Where("patient_id IN (?)", patients).Delete(&models.ParamedicAction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("site_id = ?", id).Delete(&models.Patient{}).Error; err != nil {
			return err
		}
		return requireRow(tx.Delete(&models.TraumaSite{}, id))
	})
}

func (r *Repository) CreatePatient(ctx context.Context, patient *models.Patient) error {
	return r.db.WithContext(ctx).Create(patient).Error
}

func (r *Repository) GetPatient(ctx context.Context, id int64) (*models.Patient, error) {
	var patient models.Patient
	if err := r.db.WithContext(ctx).First(&patient, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &patient, nil
}

func (r *Repository) ListPatients(ctx context.Context, siteID *int64) ([]models.Patient, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if siteID != nil {
		q = q.Where("site_id = ?", *siteID)
	}
	var patients []models.Patient
	if err := q.Find(&patients).Error; err != nil {
		return nil, err
	}
	return patients, nil
}

// UpdatePatient writes every mutable column; created_at is preserved.
func (r *Repository) UpdatePatient(ctx context.Context, patient *models.Patient) error {
	res := r.db.WithContext(ctx).Model(&models.Patient{}).Where("id = ?", patient.ID).
		Select("*").Omit("id", "created_at").Updates(patient)
	return requireRow(res)
}

func (r *Repository) DeletePatient(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("patient_id = ?", id).Delete(&models.VitalSign{}).Error; err != nil {
			return err
		}
		if err := tx.Where("patient_id = ?", id).Delete(&models.ParamedicAction{}).Error; err != nil {
			return err
		}
		return requireRow(tx.Delete(&models.Patient{}, id))
	})
}

func (r *Repository) CreateVital(ctx context.Context, vital *models.VitalSign) error {
	return r.db.WithContext(ctx).Create(vital).Error
}

func (r *Repository) GetVital(ctx context.Context, id int64) (*models.VitalSign, error) {
	var vital models.VitalSign
	if err := r.db.WithContext(ctx).First(&vital, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &vital, nil
}

func (r *Repository) ListVitals(ctx context.Context, patientID *int64) ([]models.VitalSign, error) {
	q := r.db.WithContext(ctx).Order(`"timestamp" ASC, id ASC`)
	if patientID != nil {
		q = q.Where("patient_id = ?", *patientID)
	}
	var vitals []models.VitalSign
	if err := q.Find(&vitals).Error; err != nil {
		return nil, err
	}
	return vitals, nil
}

func (r *Repository) DeleteVital(ctx context.Context, id int64) error {
	return requireRow(r.db.WithContext(ctx).Delete(&models.VitalSign{}, id))
}

func (r *Repository) CreateAction(ctx context.Context, action *models.ParamedicAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *Repository) GetAction(ctx context.Context, id int64) (*models.ParamedicAction, error) {
	var action models.ParamedicAction
	if err := r.db.WithContext(ctx).First(&action, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &action, nil
}

func (r *Repository) ListActions(ctx context.Context, patientID *int64) ([]models.ParamedicAction, error) {
	q := r.db.WithContext(ctx).Order(`"timestamp" ASC, id ASC`)
	if patientID != nil {
		q = q.Where("patient_id = ?", *patientID)
	}
	var actions []models.ParamedicAction
	if err := q.Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *Repository) DeleteAction(ctx context.Context, id int64) error {
	return requireRow(r.db.WithContext(ctx).Delete(&models.ParamedicAction{}, id))
}
