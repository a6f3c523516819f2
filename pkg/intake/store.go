package intake

import (
	"context"

	"github.com/triagex/platform/pkg/common/models"
)

// Store persists intake records. List orderings are part of the contract:
// sites and patients newest first, vitals and actions oldest first.
type Store interface {
	CreateSite(ctx context.Context, site *models.TraumaSite) error
	GetSite(ctx context.Context, id int64) (*models.TraumaSite, error)
	ListSites(ctx context.Context) ([]models.TraumaSite, error)
	UpdateSite(ctx context.Context, site *models.TraumaSite) error
	// DeleteSite removes the site with its patients and their records.
	DeleteSite(ctx context.Context, id int64) error

	CreatePatient(ctx context.Context, patient *models.Patient) error
	GetPatient(ctx context.Context, id int64) (*models.Patient, error)
	ListPatients(ctx context.Context, siteID *int64) ([]models.Patient, error)
	UpdatePatient(ctx context.Context, patient *models.Patient) error
	DeletePatient(ctx context.Context, id int64) error

	CreateVital(ctx context.Context, vital *models.VitalSign) error
	GetVital(ctx context.Context, id int64) (*models.VitalSign, error)
	ListVitals(ctx context.Context, patientID *int64) ([]models.VitalSign, error)
	DeleteVital(ctx context.Context, id int64) error

	CreateAction(ctx context.Context, action *models.ParamedicAction) error
	GetAction(ctx context.Context, id int64) (*models.ParamedicAction, error)
	ListActions(ctx context.Context, patientID *int64) ([]models.ParamedicAction, error)
	DeleteAction(ctx context.Context, id int64) error
}
