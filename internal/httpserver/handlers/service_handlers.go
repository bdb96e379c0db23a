package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/models"
)

func ListServices(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := []models.Service{}
		_ = db.Order("direction, nom").Find(&services).Error
		respondJSON(w, services)
	}
}

func GetService(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var s models.Service
		if err := db.First(&s, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "Service non trouvé")
			return
		}
		respondJSON(w, s)
	}
}

func ListDirections(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		directions := []string{}
		_ = db.Model(&models.Service{}).Distinct("direction").Order("direction").
			Pluck("direction", &directions).Error
		respondJSON(w, directions)
	}
}
