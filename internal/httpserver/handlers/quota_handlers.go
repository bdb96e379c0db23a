package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/fuel"
	"fleetfuel/internal/models"
)

type quotaDetail struct {
	ID                   int             `json:"id"`
	NumOrdre             int             `json:"NumOrdre"`
	VehiculeID           int             `json:"vehicule_id"`
	Police               string          `json:"police"`
	NCivil               string          `json:"nCivil"`
	Marque               string          `json:"marque"`
	Carburant            string          `json:"carburant"`
	BeneficiaireNom      string          `json:"benificiaire_nom"`
	BeneficiaireFonction string          `json:"benificiaire_fonction"`
	ServiceNom           string          `json:"service_nom"`
	Direction            string          `json:"direction"`
	Mois                 int             `json:"mois"`
	Annee                int             `json:"annee"`
	Qte                  decimal.Decimal `json:"qte"`
	QteConsomme          decimal.Decimal `json:"qte_consomme"`
	Reste                decimal.Decimal `json:"reste"`
	Cloture              bool            `json:"cloture"`
}

func quotaDetailQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Quota{}).
		Select(`quotas.id, quotas.num_ordre, quotas.vehicule_id,
			vehicles.police, vehicles.n_civil, vehicles.marque, vehicles.carburant,
			beneficiaries.nom AS beneficiaire_nom, beneficiaries.fonction AS beneficiaire_fonction,
			services.nom AS service_nom, services.direction,
			quotas.mois, quotas.annee, quotas.qte, quotas.qte_consomme, quotas.reste, quotas.cloture`).
		Joins("JOIN vehicles ON vehicles.id = quotas.vehicule_id").
		Joins("JOIN beneficiaries ON beneficiaries.id = quotas.beneficiaire_id").
		Joins("JOIN services ON services.id = vehicles.service_id")
}

type quotaReq struct {
	NumOrdre       int             `json:"NumOrdre"`
	VehiculeID     int             `json:"vehicule_id"`
	BeneficiaireID int             `json:"benificiaire_id"`
	Mois           int             `json:"mois"`
	Annee          int             `json:"annee"`
	Qte            decimal.Decimal `json:"qte"`
}

func CreateQuota(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quotaReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Mois < 1 || req.Mois > 12 {
			respondError(w, http.StatusBadRequest, "mois doit être entre 1 et 12")
			return
		}
		if req.Annee < 2020 {
			respondError(w, http.StatusBadRequest, "annee invalide")
			return
		}
		if !req.Qte.IsPositive() {
			respondError(w, http.StatusBadRequest, "qte doit être positive")
			return
		}
		q := fuel.NewQuota(models.Quota{
			NumOrdre:       req.NumOrdre,
			VehiculeID:     req.VehiculeID,
			BeneficiaireID: req.BeneficiaireID,
			Mois:           req.Mois,
			Annee:          req.Annee,
			Qte:            req.Qte,
		})
		if err := db.Create(&q).Error; err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondSuccess(w, "Dotation créée avec succès", q.ID)
	}
}

func listQuotas(db *gorm.DB, w http.ResponseWriter, scope func(*gorm.DB) *gorm.DB, order string) {
	details := []quotaDetail{}
	if err := scope(quotaDetailQuery(db)).Order(order).Scan(&details).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, details)
}

func ListActiveQuotas(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listQuotas(db, w, func(q *gorm.DB) *gorm.DB {
			return q.Where("quotas.cloture = ?", false)
		}, "quotas.num_ordre, vehicles.police")
	}
}

func ListArchivedQuotas(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listQuotas(db, w, func(q *gorm.DB) *gorm.DB {
			return q.Where("quotas.cloture = ?", true)
		}, "quotas.annee DESC, quotas.mois DESC, quotas.num_ordre")
	}
}

func ListAllQuotas(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listQuotas(db, w, func(q *gorm.DB) *gorm.DB { return q },
			"quotas.annee DESC, quotas.mois DESC, quotas.num_ordre")
	}
}

// VehiclesWithoutQuota lists active vehicles missing an allotment for the
// given month, for quota-entry screens.
func VehiclesWithoutQuota(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mois, err1 := strconv.Atoi(chi.URLParam(r, "mois"))
		annee, err2 := strconv.Atoi(chi.URLParam(r, "annee"))
		if err1 != nil || err2 != nil {
			respondError(w, http.StatusBadRequest, "mois/annee invalides")
			return
		}
		type row struct {
			ID        int    `json:"id"`
			Police    string `json:"police"`
			NCivil    string `json:"nCivil"`
			Marque    string `json:"marque"`
			Carburant string `json:"carburant"`
			Service   string `json:"service"`
			Direction string `json:"direction"`
		}
		rows := []row{}
		err := db.Model(&models.Vehicle{}).
			Select(`vehicles.id, vehicles.police, vehicles.n_civil, vehicles.marque,
				vehicles.carburant, services.nom AS service, services.direction`).
			Joins("JOIN services ON services.id = vehicles.service_id").
			Joins("LEFT JOIN quotas ON quotas.vehicule_id = vehicles.id AND quotas.mois = ? AND quotas.annee = ?",
				mois, annee).
			Where("quotas.id IS NULL AND vehicles.actif = ?", true).
			Order("vehicles.police").
			Scan(&rows).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, rows)
	}
}

func setQuotaCloture(db *gorm.DB, w http.ResponseWriter, id string, closed bool, message string) {
	res := db.Model(&models.Quota{}).Where("id = ?", id).Update("cloture", closed)
	if res.Error != nil {
		respondError(w, http.StatusInternalServerError, res.Error.Error())
		return
	}
	if res.RowsAffected == 0 {
		respondError(w, http.StatusNotFound, "Dotation non trouvée")
		return
	}
	respondSuccess(w, message)
}

func CloseQuota(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setQuotaCloture(db, w, chi.URLParam(r, "id"), true, "Dotation clôturée")
	}
}

func ReopenQuota(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setQuotaCloture(db, w, chi.URLParam(r, "id"), false, "Dotation réouverte")
	}
}

func DeleteQuota(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := db.Delete(&models.Quota{}, "id = ?", chi.URLParam(r, "id"))
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, res.Error.Error())
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "Dotation non trouvée")
			return
		}
		respondSuccess(w, "Dotation supprimée")
	}
}
