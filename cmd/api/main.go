package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fleetfuel/internal/auth"
	"fleetfuel/internal/config"
	"fleetfuel/internal/httpserver"
	"fleetfuel/internal/logger"
	"fleetfuel/internal/models"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	if os.Getenv("JWT_SECRET") == "" {
		lg.Fatalw("JWT_SECRET is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Service{}, &models.Beneficiary{},
		&models.Vehicle{}, &models.Quota{}, &models.Refill{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaultAdmin(db, lg)

	router := httpserver.NewRouter(db, cfg, lg)
	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}

func seedDefaultAdmin(db *gorm.DB, lg *zap.SugaredLogger) {
	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin1234"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		lg.Fatalw("admin seed failed", "error", err)
	}
	u := models.User{
		Username:     "admin",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Statut:       models.StatutActif,
	}
	if err := db.Create(&u).Error; err != nil {
		lg.Errorw("admin seed failed", "error", err)
		return
	}
	lg.Infow("seeded default admin", "username", u.Username)
}
