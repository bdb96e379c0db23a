package importer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fleetfuel/internal/models"
)

const (
	StatusExists   = "exists"
	StatusCreate   = "create"
	StatusNotFound = "not_found"
)

// Row is one analyzed spreadsheet line. The client echoes these back
// verbatim to the execute endpoint; nothing is persisted between phases.
type Row struct {
	RowNumber     int             `json:"row_number"`
	Police        string          `json:"police"`
	Civil         string          `json:"civil"`
	Marque        string          `json:"marque"`
	Carburant     string          `json:"carburant"`
	Km            int             `json:"km"`
	ServiceName   string          `json:"service_name"`
	ServiceID     *int            `json:"service_id"`
	ServiceStatus string          `json:"service_status"`
	Nom           string          `json:"nom"`
	Qte           decimal.Decimal `json:"qte"`
	Fonction      string          `json:"fonction"`
	VehicleID     *int            `json:"vehicle_id"`
	VehicleStatus string          `json:"vehicle_status"`
	BenefID       *int            `json:"benef_id"`
	BenefStatus   string          `json:"benef_status"`
	Errors        []string        `json:"errors"`
	Warnings      []string        `json:"warnings"`
	Valid         bool            `json:"valid"`
}

type Summary struct {
	TotalRows             int `json:"total_rows"`
	ValidRows             int `json:"valid_rows"`
	InvalidRows           int `json:"invalid_rows"`
	VehiclesToCreate      int `json:"vehicles_to_create"`
	BeneficiairesToCreate int `json:"beneficiaires_to_create"`
}

type Report struct {
	Success bool    `json:"success"`
	Summary Summary `json:"summary"`
	Rows    []Row   `json:"rows"`
}

// Civility prefixes stripped before beneficiary matching.
var nomPrefixes = []string{"MR ", "MME ", "M. ", "MME. ", "MONSIEUR ", "MADAME "}

// Analyze classifies parsed rows against the current store state without
// mutating it. Running it twice over the same file and store yields the
// same report.
func Analyze(db *gorm.DB, parsed []RawRow) Report {
	rows := make([]Row, 0, len(parsed))
	for _, raw := range parsed {
		row := Row{
			RowNumber:   raw.RowNumber,
			Police:      raw.Police,
			Civil:       raw.Civil,
			Marque:      raw.Marque,
			Carburant:   raw.Carburant,
			Km:          raw.Km,
			ServiceName: raw.Service,
			Nom:         raw.Nom,
			Qte:         raw.Qte,
			Fonction:    raw.Fonction,
			Errors:      []string{},
			Warnings:    []string{},
		}

		var vehicle models.Vehicle
		if err := db.First(&vehicle, "police = ?", raw.Police).Error; err == nil {
			row.VehicleID = &vehicle.ID
			row.VehicleStatus = StatusExists
		} else {
			row.VehicleStatus = StatusCreate
			if raw.Civil == "" {
				row.Errors = append(row.Errors, "N° CIVIL requis pour créer véhicule")
			}
			if raw.Marque == "" {
				row.Errors = append(row.Errors, "MARQUE requise pour créer véhicule")
			}
			if raw.Carburant == "" {
				row.Errors = append(row.Errors, "CARBURANT requis pour créer véhicule")
			}
		}

		if svc := matchService(db, raw.Service); svc != nil {
			row.ServiceID = &svc.ID
			row.ServiceStatus = StatusExists
		} else {
			row.ServiceStatus = StatusNotFound
			row.Errors = append(row.Errors, fmt.Sprintf("Service '%s' introuvable", raw.Service))
		}

		if benef := matchBeneficiary(db, raw.Nom); benef != nil {
			row.BenefID = &benef.ID
			row.BenefStatus = StatusExists
		} else {
			row.BenefStatus = StatusCreate
			if row.ServiceID == nil {
				row.Errors = append(row.Errors, "Service requis pour créer bénéficiaire")
			}
		}

		row.Valid = len(row.Errors) == 0
		rows = append(rows, row)
	}

	sum := Summary{TotalRows: len(rows)}
	for _, r := range rows {
		if r.Valid {
			sum.ValidRows++
			if r.VehicleStatus == StatusCreate {
				sum.VehiclesToCreate++
			}
			if r.BenefStatus == StatusCreate {
				sum.BeneficiairesToCreate++
			}
		} else {
			sum.InvalidRows++
		}
	}
	return Report{Success: true, Summary: sum, Rows: rows}
}

// matchService resolves a free-text service name: exact match on name or
// direction, then each slash-separated part, then substring. First hit
// wins.
func matchService(db *gorm.DB, name string) *models.Service {
	var svc models.Service
	exact := func(s string) bool {
		return db.Where("LOWER(nom) = LOWER(?) OR LOWER(direction) = LOWER(?)", s, s).
			First(&svc).Error == nil
	}
	if exact(name) {
		return &svc
	}
	if strings.Contains(name, "/") {
		for _, part := range strings.Split(name, "/") {
			if part = strings.TrimSpace(part); part != "" && exact(part) {
				return &svc
			}
		}
	}
	pattern := "%" + strings.ToLower(name) + "%"
	if db.Where("LOWER(nom) LIKE ? OR LOWER(direction) LIKE ?", pattern, pattern).
		First(&svc).Error == nil {
		return &svc
	}
	return nil
}

// matchBeneficiary resolves a beneficiary name: exact, then with the
// civility prefix stripped, then substring.
func matchBeneficiary(db *gorm.DB, nom string) *models.Beneficiary {
	var b models.Beneficiary
	exact := func(s string) bool {
		return db.Where("LOWER(nom) = LOWER(?)", s).First(&b).Error == nil
	}
	nom = strings.TrimSpace(nom)
	if exact(nom) {
		return &b
	}
	stripped := nom
	upper := strings.ToUpper(nom)
	for _, prefix := range nomPrefixes {
		if strings.HasPrefix(upper, prefix) {
			stripped = strings.TrimSpace(nom[len(prefix):])
			break
		}
	}
	if stripped != nom && exact(stripped) {
		return &b
	}
	pattern := "%" + strings.ToLower(stripped) + "%"
	if db.Where("LOWER(nom) LIKE ?", pattern).First(&b).Error == nil {
		return &b
	}
	return nil
}
