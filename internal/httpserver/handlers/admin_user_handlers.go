package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/auth"
	"fleetfuel/internal/models"
)

func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		_ = db.Order("username").Find(&users).Error
		respondJSON(w, users)
	}
}

func CreateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "username et password requis")
			return
		}
		role := strings.ToUpper(req.Role)
		if role != models.RoleAdmin {
			role = models.RoleUser
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		u := models.User{Username: req.Username, PasswordHash: hash, Role: role, Statut: models.StatutActif}
		if err := db.Create(&u).Error; err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondSuccess(w, "Utilisateur créé", u.ID)
	}
}

func UpdateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Password *string `json:"password"`
			Role     *string `json:"role"`
			Statut   *string `json:"statut"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var u models.User
		if err := db.First(&u, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "Utilisateur non trouvé")
			return
		}
		if req.Password != nil && *req.Password != "" {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "hash error")
				return
			}
			u.PasswordHash = hash
		}
		if req.Role != nil {
			if role := strings.ToUpper(*req.Role); role == models.RoleAdmin || role == models.RoleUser {
				u.Role = role
			}
		}
		if req.Statut != nil {
			u.Statut = strings.ToUpper(*req.Statut)
		}
		if err := db.Save(&u).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondSuccess(w, "Utilisateur modifié")
	}
}
