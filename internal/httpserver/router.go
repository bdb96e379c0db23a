package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/auth"
	"fleetfuel/internal/config"
	"fleetfuel/internal/fuel"
	"fleetfuel/internal/httpserver/handlers"
)

func NewRouter(db *gorm.DB, cfg config.Config, lg *zap.SugaredLogger) http.Handler {
	pol := fuel.AnomalyPolicy{MinKmDelta: cfg.AnomalyKmMin, MaxKmDelta: cfg.AnomalyKmMax}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Fleet fuel API","version":"1.0.0"}`))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", handlers.Login(db, lg))
		api.Post("/auth/token", handlers.Token(db, lg))

		api.Group(func(protected chi.Router) {
			protected.Use(auth.Bearer)
			protected.Get("/auth/me", handlers.Me(db, lg))

			protected.Get("/vehicules", handlers.ListVehicles(db, lg))
			protected.Get("/vehicules/{id}", handlers.GetVehicle(db, lg))

			protected.Get("/services", handlers.ListServices(db, lg))
			protected.Get("/services/{id}", handlers.GetService(db, lg))
			protected.Get("/directions", handlers.ListDirections(db, lg))

			protected.Get("/benificiaires", handlers.ListBeneficiaries(db, lg))
			protected.Get("/benificiaires/by-service/{serviceID}", handlers.ListBeneficiariesByService(db, lg))
			protected.Get("/benificiaires/{id}", handlers.GetBeneficiary(db, lg))

			protected.Get("/dotation/active", handlers.ListActiveQuotas(db, lg))
			protected.Get("/dotation/archived", handlers.ListArchivedQuotas(db, lg))
			protected.Get("/dotation/all", handlers.ListAllQuotas(db, lg))

			protected.Post("/approvisionnement/search", handlers.SearchVehicle(db, lg))
			protected.Post("/approvisionnement/dotation", handlers.CreateDotationRefill(db, pol, lg))
			protected.Post("/approvisionnement/mission", handlers.CreateMissionRefill(db, lg))
			protected.Get("/approvisionnement/list", handlers.ListRefills(db, lg))
			protected.Get("/approvisionnement/by-dotation/{dotationID}", handlers.ListRefillsByDotation(db, lg))
			protected.Get("/approvisionnement/by-vehicle/{police}", handlers.ListRefillsByVehicle(db, lg))
			protected.Get("/approvisionnement/by-service/{serviceName}", handlers.ListRefillsByService(db, lg))

			protected.Get("/stats/dashboard", handlers.DashboardStats(db, lg))
			protected.Get("/stats/consommation-par-jour", handlers.ConsumptionByDay(db, lg))
			protected.Get("/stats/consommation-par-carburant", handlers.ConsumptionByFuel(db, lg))
			protected.Get("/stats/consommation-par-service", handlers.ConsumptionByService(db, lg))
			protected.Get("/stats/consommation-par-type", handlers.ConsumptionByType(db, lg))
			protected.Get("/stats/anomalies", handlers.ListAnomalies(db, lg))

			protected.Group(func(admin chi.Router) {
				admin.Use(auth.RequireAdmin)

				admin.Post("/vehicules", handlers.CreateVehicle(db, lg))
				admin.Put("/vehicules/{id}", handlers.UpdateVehicle(db, lg))
				admin.Delete("/vehicules/{id}", handlers.DeleteVehicle(db, lg))

				admin.Post("/benificiaires", handlers.CreateBeneficiary(db, lg))
				admin.Put("/benificiaires/{id}", handlers.UpdateBeneficiary(db, lg))
				admin.Delete("/benificiaires/{id}", handlers.DeleteBeneficiary(db, lg))

				admin.Post("/dotation", handlers.CreateQuota(db, lg))
				admin.Get("/dotation/vehicles-without/{mois}/{annee}", handlers.VehiclesWithoutQuota(db, lg))
				admin.Put("/dotation/{id}/close", handlers.CloseQuota(db, lg))
				admin.Put("/dotation/{id}/reopen", handlers.ReopenQuota(db, lg))
				admin.Delete("/dotation/{id}", handlers.DeleteQuota(db, lg))

				admin.Put("/approvisionnement/{id}", handlers.UpdateRefill(db, lg))
				admin.Delete("/approvisionnement/{id}", handlers.DeleteRefill(db, lg))

				admin.Post("/dotation/import-excel/analyze", handlers.AnalyzeImport(db, lg))
				admin.Post("/dotation/import-excel/execute", handlers.ExecuteImport(db, lg))

				admin.Get("/admin/users", handlers.ListUsers(db, lg))
				admin.Post("/admin/users", handlers.CreateUser(db, lg))
				admin.Put("/admin/users/{id}", handlers.UpdateUser(db, lg))
			})
		})
	})
	return r
}
