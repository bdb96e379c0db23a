package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// API clients expect plain JSON numbers for litre quantities.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"

	StatutActif   = "ACTIF"
	StatutInactif = "INACTIF"

	CarburantGazoil  = "gazoil"
	CarburantEssence = "essence"
)

type User struct {
	ID           int       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;default:USER" json:"role"`
	Statut       string    `gorm:"not null;default:ACTIF" json:"statut"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Service is static organisational reference data: a unit plus the
// direction it belongs to.
type Service struct {
	ID        int    `gorm:"primaryKey;autoIncrement" json:"id"`
	Nom       string `gorm:"not null;index" json:"nom"`
	Direction string `gorm:"not null" json:"direction"`
}

type Beneficiary struct {
	ID        int    `gorm:"primaryKey;autoIncrement" json:"id"`
	Matricule string `gorm:"uniqueIndex;not null" json:"matricule"`
	Nom       string `gorm:"not null" json:"nom"`
	Fonction  string `json:"fonction"`
	ServiceID int    `gorm:"index" json:"service_id"`
}

// Vehicle is never hard-deleted; Actif=false retires it from searches
// and quota assignment.
type Vehicle struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	Police    string    `gorm:"uniqueIndex;not null" json:"police"`
	NCivil    string    `json:"nCivil"`
	Marque    string    `json:"marque"`
	Carburant string    `gorm:"not null" json:"carburant"`
	Km        int       `gorm:"not null;default:0" json:"km"`
	ServiceID int       `gorm:"index" json:"service_id"`
	Actif     bool      `gorm:"not null;default:true" json:"actif"`
	CreatedAt time.Time `json:"created_at"`
}

// Quota is one monthly fuel allotment (dotation) for a vehicle and its
// beneficiary. QteConsomme and Reste are maintained by the reconciliation
// engine, never written directly by handlers. Reste can go negative when
// a refill overshoots; callers treat that as "over quota", not an error.
type Quota struct {
	ID             int             `gorm:"primaryKey;autoIncrement" json:"id"`
	NumOrdre       int             `json:"NumOrdre"`
	VehiculeID     int             `gorm:"index;uniqueIndex:idx_dotation_mois,priority:1" json:"vehicule_id"`
	BeneficiaireID int             `gorm:"index" json:"benificiaire_id"`
	Mois           int             `gorm:"uniqueIndex:idx_dotation_mois,priority:2" json:"mois"`
	Annee          int             `gorm:"uniqueIndex:idx_dotation_mois,priority:3" json:"annee"`
	Qte            decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"qte"`
	QteConsomme    decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"qte_consomme"`
	Reste          decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"reste"`
	Cloture        bool            `gorm:"not null;default:false" json:"cloture"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Joined reporting queries reference tables by name; pin them so a gorm
// naming-strategy change cannot silently break the raw SELECT fragments.
func (User) TableName() string        { return "users" }
func (Service) TableName() string     { return "services" }
func (Beneficiary) TableName() string { return "beneficiaries" }
func (Vehicle) TableName() string     { return "vehicles" }
func (Quota) TableName() string       { return "quotas" }
func (Refill) TableName() string      { return "refills" }

const (
	RefillDotation = "DOTATION"
	RefillMission  = "MISSION"
)

// Refill stores both subtypes in one table; the API layer exposes them
// as distinct DOTATION and MISSION payloads. DOTATION rows reference a
// Quota, MISSION rows reference organisational entities by free text
// because missions may involve vehicles outside the fleet. Receipt
// numbers are unique per type at the store level, so two concurrent
// postings that compute the same next number cannot both commit.
type Refill struct {
	ID           int             `gorm:"primaryKey;autoIncrement" json:"id"`
	TypeApprovi  string          `gorm:"column:type_approvi;not null;index;uniqueIndex:idx_refill_num_bon,priority:1" json:"type_approvi"`
	Date         time.Time       `gorm:"not null;index" json:"date"`
	Qte          decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"qte"`
	KmPrecedent  int             `gorm:"not null" json:"km_precedent"`
	Km           int             `gorm:"not null" json:"km"`
	NumBon       int             `gorm:"not null;uniqueIndex:idx_refill_num_bon,priority:2" json:"num_bon"`
	Anomalie     bool            `gorm:"not null;default:false" json:"anomalie"`
	Observations *string         `json:"observations,omitempty"`

	// DOTATION variant
	DotationID    *int    `gorm:"index" json:"dotation_id,omitempty"`
	VhcProvisoire *string `json:"vhc_provisoire,omitempty"`
	KmProvisoire  *int    `json:"km_provisoire,omitempty"`

	// MISSION variant
	MatriculeConducteur *string `json:"matricule_conducteur,omitempty"`
	ServiceExterne      *string `json:"service_externe,omitempty"`
	VilleOrigine        *string `json:"ville_origine,omitempty"`
	OrdreMission        *string `json:"ordre_mission,omitempty"`
	PoliceVehicule      *string `gorm:"index" json:"police_vehicule,omitempty"`
}
