package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/auth"
	"fleetfuel/internal/models"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// issueToken checks the submitted password against the stored bcrypt
// hash and writes a bearer token. Plaintext comparison from the legacy
// schema generations is not supported.
func issueToken(db *gorm.DB, lg *zap.SugaredLogger, w http.ResponseWriter, username, password string) {
	username = strings.TrimSpace(username)
	var u models.User
	if err := db.First(&u, "username = ? AND statut = ?", username, models.StatutActif).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Nom d'utilisateur ou mot de passe incorrect")
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		respondError(w, http.StatusUnauthorized, "Nom d'utilisateur ou mot de passe incorrect")
		return
	}
	tok, err := auth.Sign(u.Username, u.Role)
	if err != nil {
		lg.Errorw("token sign failed", "error", err)
		respondError(w, http.StatusInternalServerError, "token error")
		return
	}
	respondJSON(w, map[string]string{"access_token": tok, "token_type": "bearer"})
}

func Login(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		issueToken(db, lg, w, req.Username, req.Password)
	}
}

// Token is the OAuth2 password-form variant of Login, kept for clients
// that authenticate with application/x-www-form-urlencoded credentials.
func Token(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		issueToken(db, lg, w, r.PostFormValue("username"), r.PostFormValue("password"))
	}
}

func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.First(&u, "username = ?", auth.Username(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "Utilisateur non trouvé")
			return
		}
		respondJSON(w, map[string]any{
			"id": u.ID, "username": u.Username, "role": u.Role, "statut": u.Statut,
		})
	}
}
