package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/models"
)

type typeStat struct {
	TypeApprovi string  `json:"type_approvi"`
	Total       float64 `json:"total"`
	Nombre      int     `json:"nombre"`
}

func consumptionByType(db *gorm.DB) ([]typeStat, error) {
	stats := []typeStat{}
	err := db.Model(&models.Refill{}).
		Select("type_approvi, COALESCE(SUM(qte), 0) AS total, COUNT(*) AS nombre").
		Group("type_approvi").
		Scan(&stats).Error
	return stats, err
}

func DashboardStats(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var totalVehicules, dotationsActives int64
		db.Model(&models.Vehicle{}).Where("actif = ?", true).Count(&totalVehicules)
		db.Model(&models.Quota{}).Where("cloture = ?", false).Count(&dotationsActives)

		var consommationTotale, quotaTotal float64
		db.Model(&models.Refill{}).Select("COALESCE(SUM(qte), 0)").Scan(&consommationTotale)
		db.Model(&models.Quota{}).Where("cloture = ?", false).
			Select("COALESCE(SUM(qte), 0)").Scan(&quotaTotal)

		byType, err := consumptionByType(db)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		var dotation, mission typeStat
		for _, s := range byType {
			switch s.TypeApprovi {
			case models.RefillDotation:
				dotation = s
			case models.RefillMission:
				mission = s
			}
		}
		respondJSON(w, map[string]any{
			"total_vehicules":       totalVehicules,
			"dotations_actives":     dotationsActives,
			"consommation_totale":   consommationTotale,
			"quota_total":           quotaTotal,
			"consommation_dotation": dotation.Total,
			"consommation_mission":  mission.Total,
			"nombre_appro_dotation": dotation.Nombre,
			"nombre_appro_mission":  mission.Nombre,
		})
	}
}

// ConsumptionByDay buckets the last 30 days of refills per calendar day.
// Bucketing happens in Go because date truncation has no portable SQL
// spelling across the postgres and sqlite dialects this runs on.
func ConsumptionByDay(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cutoff := time.Now().AddDate(0, 0, -30).Truncate(24 * time.Hour)
		var refills []models.Refill
		if err := db.Select("date, qte").Where("date >= ?", cutoff).
			Find(&refills).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		totals := map[string]decimal.Decimal{}
		for _, a := range refills {
			day := a.Date.Format("2006-01-02")
			totals[day] = totals[day].Add(a.Qte)
		}
		days := make([]string, 0, len(totals))
		for day := range totals {
			days = append(days, day)
		}
		sort.Strings(days)
		type dayStat struct {
			Date  string  `json:"date"`
			Total float64 `json:"total"`
		}
		out := make([]dayStat, 0, len(days))
		for _, day := range days {
			out = append(out, dayStat{Date: day, Total: totals[day].InexactFloat64()})
		}
		respondJSON(w, out)
	}
}

// ConsumptionByFuel sums DOTATION consumption per fuel class; mission
// refills have no fleet vehicle to attribute a fuel type to.
func ConsumptionByFuel(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type fuelStat struct {
			Carburant string  `json:"carburant"`
			Total     float64 `json:"total"`
		}
		stats := []fuelStat{}
		err := db.Model(&models.Refill{}).
			Select("vehicles.carburant, COALESCE(SUM(refills.qte), 0) AS total").
			Joins("JOIN quotas ON quotas.id = refills.dotation_id").
			Joins("JOIN vehicles ON vehicles.id = quotas.vehicule_id").
			Where("refills.type_approvi = ?", models.RefillDotation).
			Group("vehicles.carburant").
			Scan(&stats).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, stats)
	}
}

func ConsumptionByService(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type serviceStat struct {
			Service   string  `json:"service"`
			Direction string  `json:"direction"`
			Total     float64 `json:"total"`
		}
		stats := []serviceStat{}
		err := db.Model(&models.Refill{}).
			Select("services.nom AS service, services.direction, COALESCE(SUM(refills.qte), 0) AS total").
			Joins("JOIN quotas ON quotas.id = refills.dotation_id").
			Joins("JOIN vehicles ON vehicles.id = quotas.vehicule_id").
			Joins("JOIN services ON services.id = vehicles.service_id").
			Where("refills.type_approvi = ?", models.RefillDotation).
			Group("services.nom, services.direction").
			Order("total DESC").
			Scan(&stats).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, stats)
	}
}

func ConsumptionByType(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := consumptionByType(db)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, stats)
	}
}

// ListAnomalies lists scheduled refills whose odometer delta fell outside
// the plausible range at posting time.
func ListAnomalies(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type anomalyRow struct {
			ID           int             `json:"id"`
			Date         time.Time       `json:"date"`
			Qte          decimal.Decimal `json:"qte"`
			KmPrecedent  int             `json:"km_precedent"`
			Km           int             `json:"km"`
			KmDifference int             `json:"km_difference"`
			Police       string          `json:"police"`
			Marque       string          `json:"marque"`
			Beneficiaire string          `json:"benificiaire"`
			Service      string          `json:"service"`
		}
		rows := []anomalyRow{}
		err := db.Model(&models.Refill{}).
			Select(`refills.id, refills.date, refills.qte, refills.km_precedent, refills.km,
				(refills.km - refills.km_precedent) AS km_difference,
				vehicles.police, vehicles.marque,
				beneficiaries.nom AS beneficiaire, services.nom AS service`).
			Joins("JOIN quotas ON quotas.id = refills.dotation_id").
			Joins("JOIN vehicles ON vehicles.id = quotas.vehicule_id").
			Joins("JOIN beneficiaries ON beneficiaries.id = quotas.beneficiaire_id").
			Joins("JOIN services ON services.id = vehicles.service_id").
			Where("refills.type_approvi = ? AND refills.anomalie = ?", models.RefillDotation, true).
			Order("refills.date DESC").
			Scan(&rows).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, rows)
	}
}
