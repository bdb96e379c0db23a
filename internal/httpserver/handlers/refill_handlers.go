package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleetfuel/internal/fuel"
	"fleetfuel/internal/models"
)

// lockQuota loads the quota row for update inside tx. SQLite has no row
// locks; the dialect check keeps the in-memory test setup working.
func lockQuota(tx *gorm.DB, id int) (models.Quota, error) {
	var q models.Quota
	scope := tx
	if tx.Dialector.Name() == "postgres" {
		scope = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := scope.First(&q, "id = ?", id).Error
	return q, err
}

// nextNumBon assigns the sequential receipt number, scoped per refill
// type, inside the posting transaction.
func nextNumBon(tx *gorm.DB, typeApprovi string) (int, error) {
	var max int
	err := tx.Model(&models.Refill{}).
		Where("type_approvi = ?", typeApprovi).
		Select("COALESCE(MAX(num_bon), 0)").
		Scan(&max).Error
	return max + 1, err
}

type searchReq struct {
	Police string `json:"police"`
}

type vehicleSearchResult struct {
	DotationID   int             `json:"dotation_id"`
	Police       string          `json:"police"`
	NCivil       string          `json:"nCivil"`
	Marque       string          `json:"marque"`
	Carburant    string          `json:"carburant"`
	KmActuel     int             `json:"km_actuel"`
	Beneficiaire string          `json:"benificiaire"`
	Fonction     string          `json:"fonction"`
	Service      string          `json:"service"`
	Direction    string          `json:"direction"`
	Quota        decimal.Decimal `json:"quota"`
	QteConsomme  decimal.Decimal `json:"qte_consomme"`
	Reste        decimal.Decimal `json:"reste"`
	DernierAppro decimal.Decimal `json:"dernier_appro"`
}

// SearchVehicle resolves a police number to its open quota period for the
// refill entry screen. Inactive vehicles and vehicles whose current month
// is already closed answer 404, even when older closed periods exist.
func SearchVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var res vehicleSearchResult
		err := db.Model(&models.Quota{}).
			Select(`quotas.id AS dotation_id, vehicles.police, vehicles.n_civil, vehicles.marque,
				vehicles.carburant, vehicles.km AS km_actuel,
				beneficiaries.nom AS beneficiaire, beneficiaries.fonction,
				services.nom AS service, services.direction,
				quotas.qte AS quota, quotas.qte_consomme, quotas.reste`).
			Joins("JOIN vehicles ON vehicles.id = quotas.vehicule_id").
			Joins("JOIN beneficiaries ON beneficiaries.id = quotas.beneficiaire_id").
			Joins("JOIN services ON services.id = vehicles.service_id").
			Where("vehicles.police = ? AND vehicles.actif = ? AND quotas.cloture = ?",
				strings.TrimSpace(req.Police), true, false).
			Scan(&res).Error
		if err != nil || res.DotationID == 0 {
			respondError(w, http.StatusNotFound, "Véhicule non trouvé ou mois clôturé")
			return
		}
		var last models.Refill
		if db.Where("dotation_id = ?", res.DotationID).Order("date DESC").First(&last).Error == nil {
			res.DernierAppro = last.Qte
		}
		respondJSON(w, res)
	}
}

type dotationRefillReq struct {
	DotationID    int             `json:"dotation_id"`
	Qte           decimal.Decimal `json:"qte"`
	KmPrecedent   int             `json:"km_precedent"`
	Km            int             `json:"km"`
	VhcProvisoire *string         `json:"vhc_provisoire"`
	KmProvisoire  *int            `json:"km_provisoire"`
	Observations  *string         `json:"observations"`
}

// CreateDotationRefill posts a scheduled refill against its quota period:
// reconcile totals, assign the receipt number, advance the vehicle
// odometer, all in one transaction. A substitute-vehicle odometer update
// is best effort and never fails the posting.
func CreateDotationRefill(db *gorm.DB, pol fuel.AnomalyPolicy, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dotationRefillReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var refillID int
		err := db.Transaction(func(tx *gorm.DB) error {
			q, err := lockQuota(tx, req.DotationID)
			if err != nil {
				return gorm.ErrRecordNotFound
			}
			q, verdict, err := fuel.ApplyRefill(q, fuel.Posting{
				Qte:         req.Qte,
				KmPrecedent: req.KmPrecedent,
				Km:          req.Km,
			}, pol)
			if err != nil {
				return err
			}
			numBon, err := nextNumBon(tx, models.RefillDotation)
			if err != nil {
				return err
			}
			refill := models.Refill{
				TypeApprovi:   models.RefillDotation,
				Date:          time.Now(),
				Qte:           req.Qte,
				KmPrecedent:   req.KmPrecedent,
				Km:            req.Km,
				NumBon:        numBon,
				Anomalie:      verdict.Anomalie,
				Observations:  req.Observations,
				DotationID:    &req.DotationID,
				VhcProvisoire: req.VhcProvisoire,
				KmProvisoire:  req.KmProvisoire,
			}
			if err := tx.Create(&refill).Error; err != nil {
				return err
			}
			if err := tx.Save(&q).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Vehicle{}).
				Where("id = ?", q.VehiculeID).Update("km", req.Km).Error; err != nil {
				return err
			}
			if req.VhcProvisoire != nil && req.KmProvisoire != nil {
				res := tx.Model(&models.Vehicle{}).
					Where("police = ?", *req.VhcProvisoire).
					Update("km", *req.KmProvisoire)
				if res.Error != nil || res.RowsAffected == 0 {
					lg.Warnw("provisoire vehicle km update skipped",
						"police", *req.VhcProvisoire, "error", res.Error)
				}
			}
			refillID = refill.ID
			return nil
		})
		switch {
		case err == nil:
			respondSuccess(w, "Approvisionnement ajouté avec succès", refillID)
		case errors.Is(err, gorm.ErrRecordNotFound):
			respondError(w, http.StatusNotFound, "Dotation non trouvée")
		case errors.Is(err, fuel.ErrQuotaClosed),
			errors.Is(err, fuel.ErrInvalidQuantity),
			errors.Is(err, fuel.ErrInvalidOdometer):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			lg.Errorw("dotation refill failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Erreur: "+err.Error())
		}
	}
}

type missionRefillReq struct {
	Qte                 decimal.Decimal `json:"qte"`
	KmPrecedent         int             `json:"km_precedent"`
	Km                  int             `json:"km"`
	MatriculeConducteur string          `json:"matricule_conducteur"`
	ServiceExterne      string          `json:"service_externe"`
	VilleOrigine        string          `json:"ville_origine"`
	OrdreMission        string          `json:"ordre_mission"`
	PoliceVehicule      string          `json:"police_vehicule"`
	Observations        *string         `json:"observations"`
}

// CreateMissionRefill records a refill outside any quota period. The
// organisational references are free text on purpose: mission vehicles
// may not belong to the fleet at all.
func CreateMissionRefill(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req missionRefillReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		for field, v := range map[string]string{
			"matricule_conducteur": req.MatriculeConducteur,
			"service_externe":      req.ServiceExterne,
			"ville_origine":        req.VilleOrigine,
			"ordre_mission":        req.OrdreMission,
			"police_vehicule":      req.PoliceVehicule,
		} {
			if strings.TrimSpace(v) == "" {
				respondError(w, http.StatusBadRequest, field+" requis")
				return
			}
		}
		if !req.Qte.IsPositive() {
			respondError(w, http.StatusBadRequest, "qte doit être positive")
			return
		}
		if req.Km <= req.KmPrecedent {
			respondError(w, http.StatusBadRequest, fuel.ErrInvalidOdometer.Error())
			return
		}
		var refillID int
		err := db.Transaction(func(tx *gorm.DB) error {
			numBon, err := nextNumBon(tx, models.RefillMission)
			if err != nil {
				return err
			}
			refill := models.Refill{
				TypeApprovi:         models.RefillMission,
				Date:                time.Now(),
				Qte:                 req.Qte,
				KmPrecedent:         req.KmPrecedent,
				Km:                  req.Km,
				NumBon:              numBon,
				Observations:        req.Observations,
				MatriculeConducteur: &req.MatriculeConducteur,
				ServiceExterne:      &req.ServiceExterne,
				VilleOrigine:        &req.VilleOrigine,
				OrdreMission:        &req.OrdreMission,
				PoliceVehicule:      &req.PoliceVehicule,
			}
			if err := tx.Create(&refill).Error; err != nil {
				return err
			}
			refillID = refill.ID
			return nil
		})
		if err != nil {
			lg.Errorw("mission refill failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Erreur: "+err.Error())
			return
		}
		respondSuccess(w, "Approvisionnement mission ajouté avec succès", refillID)
	}
}

type refillDetail struct {
	ID          int             `json:"id"`
	Date        time.Time       `json:"date"`
	TypeApprovi string          `json:"type_approvi"`
	Qte         decimal.Decimal `json:"qte"`
	KmPrecedent int             `json:"km_precedent"`
	Km          int             `json:"km"`
	NumBon      int             `json:"num_bon"`
	Anomalie    bool            `json:"anomalie"`

	Police       string `json:"police"`
	NCivil       string `json:"nCivil"`
	Marque       string `json:"marque"`
	Carburant    string `json:"carburant"`
	Beneficiaire string `json:"benificiaire"`
	Service      string `json:"service"`
	Direction    string `json:"direction"`

	Quota       decimal.NullDecimal `json:"quota"`
	QteConsomme decimal.NullDecimal `json:"qte_consomme"`
	Reste       decimal.NullDecimal `json:"reste"`

	OrdreMission *string `json:"ordre_mission,omitempty"`
}

// refillDetailQuery unifies both refill subtypes into one reporting
// projection: DOTATION rows resolve entities through their quota joins,
// MISSION rows fall back to the free-text references carried on the row.
func refillDetailQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Refill{}).
		Select(`refills.id, refills.date, refills.type_approvi, refills.qte,
			refills.km_precedent, refills.km, refills.num_bon, refills.anomalie,
			refills.ordre_mission,
			COALESCE(vehicles.police, refills.police_vehicule, '') AS police,
			COALESCE(vehicles.n_civil, '') AS n_civil,
			COALESCE(vehicles.marque, '') AS marque,
			COALESCE(vehicles.carburant, '') AS carburant,
			COALESCE(beneficiaries.nom, refills.matricule_conducteur, '') AS beneficiaire,
			COALESCE(services.nom, refills.service_externe, '') AS service,
			COALESCE(services.direction, refills.ville_origine, '') AS direction,
			quotas.qte AS quota, quotas.qte_consomme, quotas.reste`).
		Joins("LEFT JOIN quotas ON quotas.id = refills.dotation_id").
		Joins("LEFT JOIN vehicles ON vehicles.id = quotas.vehicule_id").
		Joins("LEFT JOIN beneficiaries ON beneficiaries.id = quotas.beneficiaire_id").
		Joins("LEFT JOIN services ON services.id = vehicles.service_id")
}

func ListRefills(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage := pageParams(r)
		typeFilter := strings.ToUpper(r.URL.Query().Get("type_filter"))

		count := db.Model(&models.Refill{})
		pageQ := refillDetailQuery(db)
		if typeFilter != "" {
			count = count.Where("type_approvi = ?", typeFilter)
			pageQ = pageQ.Where("refills.type_approvi = ?", typeFilter)
		}
		var total int64
		if err := count.Count(&total).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		details := []refillDetail{}
		err := pageQ.Order("refills.date DESC").
			Limit(perPage).Offset((page - 1) * perPage).
			Scan(&details).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondPage(w, details, page, perPage, total)
	}
}

func listRefillDetails(db *gorm.DB, w http.ResponseWriter, scope func(*gorm.DB) *gorm.DB) {
	details := []refillDetail{}
	if err := scope(refillDetailQuery(db)).Order("refills.date DESC").Scan(&details).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, details)
}

func ListRefillsByDotation(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listRefillDetails(db, w, func(q *gorm.DB) *gorm.DB {
			return q.Where("refills.dotation_id = ?", chi.URLParam(r, "dotationID"))
		})
	}
}

func ListRefillsByVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		police := chi.URLParam(r, "police")
		listRefillDetails(db, w, func(q *gorm.DB) *gorm.DB {
			return q.Where("vehicles.police = ? OR refills.police_vehicule = ?", police, police)
		})
	}
}

func ListRefillsByService(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "serviceName")
		listRefillDetails(db, w, func(q *gorm.DB) *gorm.DB {
			return q.Where("services.nom = ? OR refills.service_externe = ?", name, name)
		})
	}
}

// UpdateRefill corrects a refill quantity. DOTATION rows re-reconcile
// their quota period so consumed/remaining stay consistent.
func UpdateRefill(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Qte decimal.Decimal `json:"qte"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			var refill models.Refill
			if err := tx.First(&refill, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
				return gorm.ErrRecordNotFound
			}
			if refill.DotationID != nil {
				q, err := lockQuota(tx, *refill.DotationID)
				if err != nil {
					return err
				}
				q, err = fuel.AdjustRefill(q, refill.Qte, req.Qte)
				if err != nil {
					return err
				}
				if err := tx.Save(&q).Error; err != nil {
					return err
				}
			} else if !req.Qte.IsPositive() {
				return fuel.ErrInvalidQuantity
			}
			refill.Qte = req.Qte
			return tx.Save(&refill).Error
		})
		switch {
		case err == nil:
			respondSuccess(w, "Approvisionnement modifié")
		case errors.Is(err, gorm.ErrRecordNotFound):
			respondError(w, http.StatusNotFound, "Approvisionnement non trouvé")
		case errors.Is(err, fuel.ErrInvalidQuantity):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "Erreur: "+err.Error())
		}
	}
}

// DeleteRefill removes a refill and reverts its consumption from the
// quota period, reopening it when consumption drops below the allotment.
func DeleteRefill(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := db.Transaction(func(tx *gorm.DB) error {
			var refill models.Refill
			if err := tx.First(&refill, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
				return gorm.ErrRecordNotFound
			}
			if refill.DotationID != nil {
				q, err := lockQuota(tx, *refill.DotationID)
				if err == nil {
					q = fuel.RevertRefill(q, refill.Qte)
					if err := tx.Save(&q).Error; err != nil {
						return err
					}
				}
			}
			return tx.Delete(&refill).Error
		})
		switch {
		case err == nil:
			respondSuccess(w, "Approvisionnement supprimé")
		case errors.Is(err, gorm.ErrRecordNotFound):
			respondError(w, http.StatusNotFound, "Approvisionnement non trouvé")
		default:
			respondError(w, http.StatusInternalServerError, "Erreur: "+err.Error())
		}
	}
}
