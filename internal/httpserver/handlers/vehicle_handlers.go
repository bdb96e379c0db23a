package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/models"
)

type vehicleReq struct {
	Police    string `json:"police"`
	NCivil    string `json:"nCivil"`
	Marque    string `json:"marque"`
	Carburant string `json:"carburant"`
	Km        int    `json:"km"`
	ServiceID int    `json:"service_id"`
}

func (v *vehicleReq) validate() string {
	v.Police = strings.TrimSpace(v.Police)
	if v.Police == "" {
		return "police requis"
	}
	if v.Carburant != models.CarburantGazoil && v.Carburant != models.CarburantEssence {
		return "carburant doit être 'gazoil' ou 'essence'"
	}
	if v.Km < 0 {
		return "km invalide"
	}
	return ""
}

func ListVehicles(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Order("police")
		if r.URL.Query().Get("active_only") != "false" {
			q = q.Where("actif = ?", true)
		}
		var vehicles []models.Vehicle
		_ = q.Find(&vehicles).Error
		respondJSON(w, vehicles)
	}
}

func GetVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v models.Vehicle
		if err := db.First(&v, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "Véhicule non trouvé")
			return
		}
		respondJSON(w, v)
	}
}

func CreateVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req vehicleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg := req.validate(); msg != "" {
			respondError(w, http.StatusBadRequest, msg)
			return
		}
		v := models.Vehicle{
			Police:    req.Police,
			NCivil:    req.NCivil,
			Marque:    req.Marque,
			Carburant: req.Carburant,
			Km:        req.Km,
			ServiceID: req.ServiceID,
			Actif:     true,
		}
		if err := db.Create(&v).Error; err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondSuccess(w, "Véhicule créé", v.ID)
	}
}

func UpdateVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req vehicleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg := req.validate(); msg != "" {
			respondError(w, http.StatusBadRequest, msg)
			return
		}
		var v models.Vehicle
		if err := db.First(&v, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "Véhicule non trouvé")
			return
		}
		v.Police = req.Police
		v.NCivil = req.NCivil
		v.Marque = req.Marque
		v.Carburant = req.Carburant
		v.Km = req.Km
		v.ServiceID = req.ServiceID
		if err := db.Save(&v).Error; err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondSuccess(w, "Véhicule modifié")
	}
}

// DeleteVehicle retires the vehicle. Rows are never removed so refill
// history stays intact.
func DeleteVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := db.Model(&models.Vehicle{}).Where("id = ?", chi.URLParam(r, "id")).Update("actif", false)
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, res.Error.Error())
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "Véhicule non trouvé")
			return
		}
		respondSuccess(w, "Véhicule désactivé")
	}
}
