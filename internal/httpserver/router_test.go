package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/auth"
	"fleetfuel/internal/config"
	"fleetfuel/internal/importer"
	"fleetfuel/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Service{}, &models.Beneficiary{},
		&models.Vehicle{}, &models.Quota{}, &models.Refill{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, password, role string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Username: username, PasswordHash: hash, Role: role, Statut: models.StatutActif,
	}).Error)
}

func newTestServer(t *testing.T) (*gorm.DB, http.Handler) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	db := newTestDB(t)
	seedUser(t, db, "admin", "admin1234", models.RoleAdmin)
	seedUser(t, db, "agent", "agent1234", models.RoleUser)
	cfg := config.Config{
		CORSOrigins:  []string{"http://localhost:5173"},
		AnomalyKmMin: 1,
		AnomalyKmMax: 1000,
	}
	return db, NewRouter(db, cfg, zap.NewNop().Sugar())
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	tok, _ := body["access_token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

// seedFleet creates one service, vehicle, beneficiary and an open quota
// of the given allotment, returning the quota ID.
func seedFleet(t *testing.T, db *gorm.DB, police string, allotted string) int {
	t.Helper()
	svc := models.Service{Nom: "Parc Auto", Direction: "DPA"}
	require.NoError(t, db.Create(&svc).Error)
	v := models.Vehicle{
		Police: police, NCivil: "123456", Marque: "Toyota",
		Carburant: models.CarburantGazoil, Km: 1000, ServiceID: svc.ID, Actif: true,
	}
	require.NoError(t, db.Create(&v).Error)
	b := models.Beneficiary{Matricule: "B" + police, Nom: "Karim B.", Fonction: "Chef de service", ServiceID: svc.ID}
	require.NoError(t, db.Create(&b).Error)
	qte, err := decimal.NewFromString(allotted)
	require.NoError(t, err)
	q := models.Quota{
		VehiculeID: v.ID, BeneficiaireID: b.ID, Mois: 6, Annee: 2025,
		Qte: qte, QteConsomme: decimal.Zero, Reste: qte,
	}
	require.NoError(t, db.Create(&q).Error)
	return q.ID
}

func TestLogin(t *testing.T) {
	_, h := newTestServer(t)

	t.Run("wrong password", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "admin", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("unknown user", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "ghost", "password": "whatever",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("success and me", func(t *testing.T) {
		tok := login(t, h, "admin", "admin1234")
		rec := doJSON(t, h, http.MethodGet, "/api/auth/me", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "admin", body["username"])
		assert.Equal(t, "ADMIN", body["role"])
	})
}

func TestAuthorization(t *testing.T) {
	_, h := newTestServer(t)

	t.Run("missing token", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/vehicules", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("garbage token", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/vehicules", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("standard user cannot mutate", func(t *testing.T) {
		tok := login(t, h, "agent", "agent1234")
		rec := doJSON(t, h, http.MethodPost, "/api/vehicules", tok, map[string]any{
			"police": "ZZ999", "carburant": "gazoil",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("standard user can read", func(t *testing.T) {
		tok := login(t, h, "agent", "agent1234")
		rec := doJSON(t, h, http.MethodGet, "/api/vehicules", tok, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestVehicleCRUD(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")

	svc := models.Service{Nom: "Logistique", Direction: "DPA"}
	require.NoError(t, db.Create(&svc).Error)

	rec := doJSON(t, h, http.MethodPost, "/api/vehicules", tok, map[string]any{
		"police": "AB123", "nCivil": "55555", "marque": "Renault",
		"carburant": "essence", "km": 42000, "service_id": svc.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := int(decodeBody(t, rec)["id"].(float64))

	t.Run("reject bad fuel type", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/vehicules", tok, map[string]any{
			"police": "CD456", "carburant": "kerosene",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/vehicules/%d", id), tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "AB123", decodeBody(t, rec)["police"])
	})

	t.Run("update", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/vehicules/%d", id), tok, map[string]any{
			"police": "AB123", "nCivil": "55555", "marque": "Renault",
			"carburant": "essence", "km": 43000, "service_id": svc.ID,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var v models.Vehicle
		require.NoError(t, db.First(&v, id).Error)
		assert.Equal(t, 43000, v.Km)
	})

	t.Run("soft delete", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/vehicules/%d", id), tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var v models.Vehicle
		require.NoError(t, db.First(&v, id).Error)
		assert.False(t, v.Actif)

		// default listing hides retired vehicles
		rec = doJSON(t, h, http.MethodGet, "/api/vehicules", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []models.Vehicle
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		for _, lv := range list {
			assert.NotEqual(t, id, lv.ID)
		}
	})

	t.Run("delete unknown is 404", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodDelete, "/api/vehicules/99999", tok, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// The full quota lifecycle: allotment 120, refill 50 leaves 70 open,
// refill 80 overshoots to -10 and closes the period, after which further
// scheduled refills are refused.
func TestQuotaLifecycle(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")
	quotaID := seedFleet(t, db, "AB123", "120")

	search := func() *httptest.ResponseRecorder {
		return doJSON(t, h, http.MethodPost, "/api/approvisionnement/search", tok,
			map[string]string{"police": "AB123"})
	}

	rec := search()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(quotaID), body["dotation_id"])
	assert.Equal(t, float64(120), body["reste"])

	rec = doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
		"dotation_id": quotaID, "qte": 50, "km_precedent": 1000, "km": 1200,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var q models.Quota
	require.NoError(t, db.First(&q, quotaID).Error)
	assert.True(t, q.QteConsomme.Equal(decimal.NewFromInt(50)))
	assert.True(t, q.Reste.Equal(decimal.NewFromInt(70)))
	assert.False(t, q.Cloture)

	// the vehicle odometer follows the posting
	var v models.Vehicle
	require.NoError(t, db.First(&v, q.VehiculeID).Error)
	assert.Equal(t, 1200, v.Km)

	rec = doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
		"dotation_id": quotaID, "qte": 80, "km_precedent": 1200, "km": 1450,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, db.First(&q, quotaID).Error)
	assert.True(t, q.QteConsomme.Equal(decimal.NewFromInt(130)))
	assert.True(t, q.Reste.Equal(decimal.NewFromInt(-10)))
	assert.True(t, q.Cloture)

	rec = doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
		"dotation_id": quotaID, "qte": 10, "km_precedent": 1450, "km": 1500,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// closed period no longer answers the search
	rec = search()
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchVehicle_NotFoundCases(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")
	quotaID := seedFleet(t, db, "EF789", "100")

	t.Run("unknown police", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/search", tok,
			map[string]string{"police": "NOPE"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("closed quota", func(t *testing.T) {
		require.NoError(t, db.Model(&models.Quota{}).Where("id = ?", quotaID).
			Update("cloture", true).Error)
		rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/search", tok,
			map[string]string{"police": "EF789"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NoError(t, db.Model(&models.Quota{}).Where("id = ?", quotaID).
			Update("cloture", false).Error)
	})
	t.Run("inactive vehicle with open quota", func(t *testing.T) {
		require.NoError(t, db.Model(&models.Vehicle{}).Where("police = ?", "EF789").
			Update("actif", false).Error)
		rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/search", tok,
			map[string]string{"police": "EF789"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBeneficiaryPagination(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")

	svc := models.Service{Nom: "ISS", Direction: "CABINET"}
	require.NoError(t, db.Create(&svc).Error)
	for i := 0; i < 25; i++ {
		require.NoError(t, db.Create(&models.Beneficiary{
			Matricule: fmt.Sprintf("B%04d", i+1),
			Nom:       fmt.Sprintf("Agent %02d", i),
			Fonction:  "Chauffeur",
			ServiceID: svc.ID,
		}).Error)
	}

	seen := map[float64]bool{}
	var pages float64
	for page := 1; ; page++ {
		rec := doJSON(t, h, http.MethodGet,
			fmt.Sprintf("/api/benificiaires?page=%d&per_page=10", page), tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(25), body["total"])
		assert.Equal(t, float64(3), body["pages"])
		pages = body["pages"].(float64)
		for _, it := range body["items"].([]any) {
			id := it.(map[string]any)["id"].(float64)
			assert.False(t, seen[id], "page overlap on id %v", id)
			seen[id] = true
		}
		if page >= int(pages) {
			break
		}
	}
	assert.Len(t, seen, 25, "pages must partition all rows")

	t.Run("search filter", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/benificiaires?search=Agent+01", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(1), body["total"])
	})
}

func TestMissionRefill(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")

	payload := func() map[string]any {
		return map[string]any{
			"qte": 35.5, "km_precedent": 5000, "km": 5300,
			"matricule_conducteur": "C0042",
			"service_externe":      "Protection Civile",
			"ville_origine":        "Alger",
			"ordre_mission":        "OM-2025-118",
			"police_vehicule":      "EXT-771",
		}
	}

	t.Run("missing required field", func(t *testing.T) {
		p := payload()
		delete(p, "ordre_mission")
		rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/mission", tok, p)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("odometer must advance", func(t *testing.T) {
		p := payload()
		p["km"] = 5000
		rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/mission", tok, p)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("receipt numbers are sequential per type", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/mission", tok, payload())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = doJSON(t, h, http.MethodPost, "/api/approvisionnement/mission", tok, payload())
		require.Equal(t, http.StatusOK, rec.Code)

		var refills []models.Refill
		require.NoError(t, db.Where("type_approvi = ?", models.RefillMission).
			Order("id").Find(&refills).Error)
		require.Len(t, refills, 2)
		assert.Equal(t, 1, refills[0].NumBon)
		assert.Equal(t, 2, refills[1].NumBon)
	})
	t.Run("type filter on list", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/approvisionnement/list?type_filter=MISSION", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(2), body["total"])
		first := body["items"].([]any)[0].(map[string]any)
		assert.Equal(t, "MISSION", first["type_approvi"])
		assert.Equal(t, "EXT-771", first["police"])
		assert.Equal(t, "Protection Civile", first["service"])
	})
}

func TestRefillDeleteRevertsQuota(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")
	quotaID := seedFleet(t, db, "GH012", "120")

	post := func(qte int, prev, km int) int {
		rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
			"dotation_id": quotaID, "qte": qte, "km_precedent": prev, "km": km,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return int(decodeBody(t, rec)["id"].(float64))
	}
	post(50, 1000, 1200)
	second := post(80, 1200, 1400)

	var q models.Quota
	require.NoError(t, db.First(&q, quotaID).Error)
	require.True(t, q.Cloture)

	rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/approvisionnement/%d", second), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.First(&q, quotaID).Error)
	assert.True(t, q.QteConsomme.Equal(decimal.NewFromInt(50)))
	assert.True(t, q.Reste.Equal(decimal.NewFromInt(70)))
	assert.False(t, q.Cloture, "reverting the overshoot reopens the period")
}

func TestRefillUpdateAdjustsQuota(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")
	quotaID := seedFleet(t, db, "IJ345", "120")

	rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
		"dotation_id": quotaID, "qte": 50, "km_precedent": 1000, "km": 1200,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	refillID := int(decodeBody(t, rec)["id"].(float64))

	rec = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/approvisionnement/%d", refillID), tok,
		map[string]any{"qte": 130})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var q models.Quota
	require.NoError(t, db.First(&q, quotaID).Error)
	assert.True(t, q.QteConsomme.Equal(decimal.NewFromInt(130)))
	assert.True(t, q.Reste.Equal(decimal.NewFromInt(-10)))
	assert.True(t, q.Cloture)
}

func TestAnomalyFlagging(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")
	quotaID := seedFleet(t, db, "KL678", "500")

	// delta of exactly 1000 km sits on the boundary and is plausible
	rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
		"dotation_id": quotaID, "qte": 40, "km_precedent": 1000, "km": 2000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	// delta of 1001 km is just outside
	rec = doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
		"dotation_id": quotaID, "qte": 40, "km_precedent": 2000, "km": 3001,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var refills []models.Refill
	require.NoError(t, db.Where("dotation_id = ?", quotaID).Order("id").Find(&refills).Error)
	require.Len(t, refills, 2)
	assert.False(t, refills[0].Anomalie)
	assert.True(t, refills[1].Anomalie)

	rec = doJSON(t, h, http.MethodGet, "/api/stats/anomalies", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, float64(1001), rows[0]["km_difference"])
	assert.Equal(t, "KL678", rows[0]["police"])
}

func TestProvisoireVehicleUpdate(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")
	quotaID := seedFleet(t, db, "MN901", "120")

	// the substitute vehicle exists in the fleet
	var svc models.Service
	require.NoError(t, db.First(&svc).Error)
	sub := models.Vehicle{
		Police: "SUB-01", Carburant: models.CarburantGazoil, Km: 500, ServiceID: svc.ID, Actif: true,
	}
	require.NoError(t, db.Create(&sub).Error)

	rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
		"dotation_id": quotaID, "qte": 30, "km_precedent": 1000, "km": 1300,
		"vhc_provisoire": "SUB-01", "km_provisoire": 800,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, db.First(&sub, sub.ID).Error)
	assert.Equal(t, 800, sub.Km)

	t.Run("unknown provisoire is swallowed", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
			"dotation_id": quotaID, "qte": 30, "km_precedent": 1300, "km": 1600,
			"vhc_provisoire": "GHOST", "km_provisoire": 999,
		})
		assert.Equal(t, http.StatusOK, rec.Code, "missing substitute must not fail the posting")
	})
}

func TestDashboardStats(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")
	quotaID := seedFleet(t, db, "OP234", "120")

	rec := doJSON(t, h, http.MethodPost, "/api/approvisionnement/dotation", tok, map[string]any{
		"dotation_id": quotaID, "qte": 50, "km_precedent": 1000, "km": 1200,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/approvisionnement/mission", tok, map[string]any{
		"qte": 20, "km_precedent": 100, "km": 300,
		"matricule_conducteur": "C1", "service_externe": "SDE",
		"ville_origine": "Oran", "ordre_mission": "OM-1", "police_vehicule": "X1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/stats/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["total_vehicules"])
	assert.Equal(t, float64(1), body["dotations_actives"])
	assert.Equal(t, float64(70), body["consommation_totale"])
	assert.Equal(t, float64(50), body["consommation_dotation"])
	assert.Equal(t, float64(20), body["consommation_mission"])
	assert.Equal(t, float64(1), body["nombre_appro_dotation"])
	assert.Equal(t, float64(1), body["nombre_appro_mission"])

	rec = doJSON(t, h, http.MethodGet, "/api/stats/consommation-par-jour", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var days []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &days))
	require.Len(t, days, 1)
	assert.Equal(t, float64(70), days[0]["total"])

	rec = doJSON(t, h, http.MethodGet, "/api/stats/consommation-par-carburant", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fuels []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fuels))
	require.Len(t, fuels, 1)
	assert.Equal(t, "gazoil", fuels[0]["carburant"])
	assert.Equal(t, float64(50), fuels[0]["total"])
}

func TestQuotaEndpoints(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")
	quotaID := seedFleet(t, db, "QR567", "140")

	t.Run("active listing carries joined detail", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/dotation/active", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "QR567", rows[0]["police"])
		assert.Equal(t, "Parc Auto", rows[0]["service_nom"])
		assert.Equal(t, float64(140), rows[0]["qte"])
	})

	t.Run("duplicate month rejected", func(t *testing.T) {
		var q models.Quota
		require.NoError(t, db.First(&q, quotaID).Error)
		rec := doJSON(t, h, http.MethodPost, "/api/dotation", tok, map[string]any{
			"vehicule_id": q.VehiculeID, "benificiaire_id": q.BeneficiaireID,
			"mois": q.Mois, "annee": q.Annee, "qte": 120,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("close and reopen", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/dotation/%d/close", quotaID), tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = doJSON(t, h, http.MethodGet, "/api/dotation/archived", tok, nil)
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		assert.Len(t, rows, 1)

		rec = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/dotation/%d/reopen", quotaID), tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("vehicles without quota", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/dotation/vehicles-without/6/2025", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		assert.Len(t, rows, 0, "the only vehicle already has its June quota")

		rec = doJSON(t, h, http.MethodGet, "/api/dotation/vehicles-without/7/2025", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rows = nil
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		assert.Len(t, rows, 1, "no July quota exists yet")
	})

	t.Run("delete", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/dotation/%d", quotaID), tok, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/dotation/%d", quotaID), tok, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestImportExcelFlow(t *testing.T) {
	db, h := newTestServer(t)
	tok := login(t, h, "admin", "admin1234")

	require.NoError(t, db.Create(&models.Service{Nom: "DPA", Direction: "DG"}).Error)

	f := excelize.NewFile()
	header := []any{"N° POLICE", "N° CIVIL", "MARQUE", "CARBURANT", "KM", "SERVICE", "NOM", "QTE", "FONCTION"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	row := []any{"IM001", "77777", "Hyundai", "diesel", "12000", "DPA", "Import Agent", "150", "Chauffeur"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &row))
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "dotations.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/dotation/import-excel/analyze", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report importer.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Rows, 1)
	assert.True(t, report.Rows[0].Valid, report.Rows[0].Errors)
	assert.Equal(t, importer.StatusCreate, report.Rows[0].VehicleStatus)

	t.Run("analyze writes nothing", func(t *testing.T) {
		var count int64
		db.Model(&models.Vehicle{}).Count(&count)
		assert.Zero(t, count)
	})

	rec = doJSON(t, h, http.MethodPost, "/api/dotation/import-excel/execute?mois=6&annee=2025", tok,
		map[string]any{"rows": report.Rows})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res importer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Created.Dotations)

	var v models.Vehicle
	require.NoError(t, db.First(&v, "police = ?", "IM001").Error)
	assert.Equal(t, "gazoil", v.Carburant)
	var q models.Quota
	require.NoError(t, db.First(&q, "vehicule_id = ?", v.ID).Error)
	assert.True(t, q.Qte.Equal(decimal.NewFromInt(150)))

	t.Run("empty rows rejected", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/dotation/import-excel/execute?mois=6&annee=2025", tok,
			map[string]any{"rows": []importer.Row{}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Aucune ligne à importer", decodeBody(t, rec)["detail"])
	})
}

func TestTokenFormLogin(t *testing.T) {
	_, h := newTestServer(t)

	postForm := func(username, password string) *httptest.ResponseRecorder {
		form := url.Values{"username": {username}, "password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/api/auth/token",
			strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("issues the same bearer token as the JSON login", func(t *testing.T) {
		rec := postForm("admin", "admin1234")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "bearer", body["token_type"])
		tok, _ := body["access_token"].(string)
		require.NotEmpty(t, tok)

		rec2 := doJSON(t, h, http.MethodGet, "/api/auth/me", tok, nil)
		require.Equal(t, http.StatusOK, rec2.Code)
		assert.Equal(t, "admin", decodeBody(t, rec2)["username"])
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := postForm("admin", "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
