package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/models"
)

type beneficiaryItem struct {
	ID         int    `json:"id"`
	Matricule  string `json:"matricule"`
	Nom        string `json:"nom"`
	Fonction   string `json:"fonction"`
	ServiceID  int    `json:"service_id"`
	ServiceNom string `json:"service_nom"`
	Direction  string `json:"direction"`
}

func pageParams(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 20
	}
	return page, perPage
}

// ListBeneficiaries serves the paginated listing: one count query plus
// one page query, optional substring filter over name, badge, job title
// and service columns.
func ListBeneficiaries(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage := pageParams(r)
		search := strings.TrimSpace(r.URL.Query().Get("search"))

		// one count query plus one page query, both built fresh
		query := func() *gorm.DB {
			q := db.Model(&models.Beneficiary{}).
				Joins("LEFT JOIN services ON services.id = beneficiaries.service_id")
			if search != "" {
				p := "%" + strings.ToLower(search) + "%"
				q = q.Where(
					"LOWER(beneficiaries.nom) LIKE ? OR LOWER(beneficiaries.matricule) LIKE ? OR "+
						"LOWER(beneficiaries.fonction) LIKE ? OR LOWER(services.nom) LIKE ? OR "+
						"LOWER(services.direction) LIKE ?",
					p, p, p, p, p)
			}
			return q
		}

		var total int64
		if err := query().Count(&total).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		items := []beneficiaryItem{}
		err := query().
			Select(`beneficiaries.id, beneficiaries.matricule, beneficiaries.nom,
				beneficiaries.fonction, beneficiaries.service_id,
				COALESCE(services.nom, 'N/A') AS service_nom,
				COALESCE(services.direction, 'N/A') AS direction`).
			Order("beneficiaries.nom").
			Limit(perPage).Offset((page - 1) * perPage).
			Scan(&items).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondPage(w, items, page, perPage, total)
	}
}

type beneficiaryReq struct {
	Matricule string `json:"matricule"`
	Nom       string `json:"nom"`
	Fonction  string `json:"fonction"`
	ServiceID int    `json:"service_id"`
}

func CreateBeneficiary(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req beneficiaryReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Nom) == "" {
			respondError(w, http.StatusBadRequest, "nom requis")
			return
		}
		matricule := strings.TrimSpace(req.Matricule)
		if matricule == "" {
			var count int64
			db.Model(&models.Beneficiary{}).Count(&count)
			matricule = fmt.Sprintf("B%04d", count+1)
		}
		b := models.Beneficiary{
			Matricule: matricule,
			Nom:       req.Nom,
			Fonction:  req.Fonction,
			ServiceID: req.ServiceID,
		}
		if err := db.Create(&b).Error; err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondSuccess(w, "Bénéficiaire créé", b.ID)
	}
}

func GetBeneficiary(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b models.Beneficiary
		if err := db.First(&b, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "Bénéficiaire non trouvé")
			return
		}
		respondJSON(w, b)
	}
}

func ListBeneficiariesByService(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := []beneficiaryItem{}
		err := db.Model(&models.Beneficiary{}).
			Select(`beneficiaries.id, beneficiaries.matricule, beneficiaries.nom,
				beneficiaries.fonction, beneficiaries.service_id,
				COALESCE(services.nom, '') AS service_nom,
				COALESCE(services.direction, '') AS direction`).
			Joins("LEFT JOIN services ON services.id = beneficiaries.service_id").
			Where("beneficiaries.service_id = ?", chi.URLParam(r, "serviceID")).
			Order("beneficiaries.nom").
			Scan(&items).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, items)
	}
}

// UpdateBeneficiary never touches the matricule: the badge number is an
// immutable business key once assigned.
func UpdateBeneficiary(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req beneficiaryReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var b models.Beneficiary
		if err := db.First(&b, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, http.StatusNotFound, "Bénéficiaire non trouvé")
			return
		}
		b.Nom = req.Nom
		b.Fonction = req.Fonction
		b.ServiceID = req.ServiceID
		if err := db.Save(&b).Error; err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondSuccess(w, "Bénéficiaire modifié")
	}
}

func DeleteBeneficiary(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := db.Delete(&models.Beneficiary{}, "id = ?", chi.URLParam(r, "id"))
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, res.Error.Error())
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "Bénéficiaire non trouvé")
			return
		}
		respondSuccess(w, "Bénéficiaire supprimé")
	}
}
