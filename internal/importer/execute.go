package importer

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"fleetfuel/internal/fuel"
	"fleetfuel/internal/models"
)

type RowIssue struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type Created struct {
	Vehicles      int `json:"vehicles"`
	Beneficiaires int `json:"beneficiaires"`
	Dotations     int `json:"dotations"`
}

type Result struct {
	Success  bool       `json:"success"`
	Created  *Created   `json:"created,omitempty"`
	Warnings []RowIssue `json:"warnings"`
	Errors   []RowIssue `json:"errors,omitempty"`
	Message  string     `json:"message"`
}

var errBatchFailed = errors.New("import batch failed")

// Execute replays previously analyzed rows for the given month inside one
// transaction. Any row failure rolls back the whole batch; duplicate
// quota periods are skipped with a warning, not an error.
func Execute(db *gorm.DB, rows []Row, mois, annee int) Result {
	res := Result{Warnings: []RowIssue{}}
	created := Created{}

	txErr := db.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if !row.Valid {
				continue
			}
			vehicleID := row.VehicleID
			benefID := row.BenefID

			if row.VehicleStatus == StatusCreate {
				v := models.Vehicle{
					Police:    row.Police,
					NCivil:    row.Civil,
					Marque:    row.Marque,
					Carburant: row.Carburant,
					Km:        row.Km,
					Actif:     true,
				}
				if row.ServiceID != nil {
					v.ServiceID = *row.ServiceID
				}
				if err := tx.Create(&v).Error; err != nil {
					res.Errors = append(res.Errors, RowIssue{
						Row:     row.RowNumber,
						Message: fmt.Sprintf("Erreur création véhicule %s: %v", row.Police, err),
					})
					continue
				}
				vehicleID = &v.ID
				created.Vehicles++
			}

			if row.BenefStatus == StatusCreate {
				var count int64
				tx.Model(&models.Beneficiary{}).Count(&count)
				b := models.Beneficiary{
					Matricule: fmt.Sprintf("B%04d", count+1),
					Nom:       row.Nom,
					Fonction:  row.Fonction,
				}
				if row.ServiceID != nil {
					b.ServiceID = *row.ServiceID
				}
				if err := tx.Create(&b).Error; err != nil {
					res.Errors = append(res.Errors, RowIssue{
						Row:     row.RowNumber,
						Message: fmt.Sprintf("Erreur création bénéficiaire %s: %v", row.Nom, err),
					})
					continue
				}
				benefID = &b.ID
				created.Beneficiaires++
			}

			if vehicleID == nil || benefID == nil {
				res.Errors = append(res.Errors, RowIssue{
					Row:     row.RowNumber,
					Message: "Véhicule ou bénéficiaire non résolu",
				})
				continue
			}

			var existing models.Quota
			if err := tx.Where("vehicule_id = ? AND mois = ? AND annee = ?", *vehicleID, mois, annee).
				First(&existing).Error; err == nil {
				res.Warnings = append(res.Warnings, RowIssue{
					Row: row.RowNumber,
					Message: fmt.Sprintf(
						"Dotation existe déjà pour véhicule %s (mois %d/%d) - ignorée",
						row.Police, mois, annee),
				})
				continue
			}

			q := fuel.NewQuota(models.Quota{
				VehiculeID:     *vehicleID,
				BeneficiaireID: *benefID,
				Mois:           mois,
				Annee:          annee,
				Qte:            row.Qte,
			})
			if err := tx.Create(&q).Error; err != nil {
				res.Errors = append(res.Errors, RowIssue{
					Row:     row.RowNumber,
					Message: fmt.Sprintf("Erreur création dotation: %v", err),
				})
				continue
			}
			created.Dotations++
		}
		if len(res.Errors) > 0 {
			return errBatchFailed
		}
		return nil
	})

	if txErr != nil {
		if len(res.Errors) == 0 {
			res.Errors = append(res.Errors, RowIssue{Message: txErr.Error()})
		}
		res.Success = false
		res.Message = fmt.Sprintf("%d erreur(s) - import annulé", len(res.Errors))
		return res
	}
	res.Success = true
	res.Created = &created
	res.Message = fmt.Sprintf("Import réussi : %d dotation(s) créée(s)", created.Dotations)
	return res
}
