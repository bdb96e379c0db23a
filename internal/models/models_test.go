package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Quota{}, &Refill{}))
	return db
}

func refill(typeApprovi string, numBon int) Refill {
	return Refill{
		TypeApprovi: typeApprovi,
		Date:        time.Now(),
		Qte:         decimal.NewFromInt(40),
		KmPrecedent: 1000,
		Km:          1200,
		NumBon:      numBon,
	}
}

// Two postings that computed the same next receipt number must not both
// commit; the store rejects the second one.
func TestRefillReceiptNumberUniquePerType(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Create(ptr(refill(RefillMission, 1))).Error)
	assert.Error(t, db.Create(ptr(refill(RefillMission, 1))).Error)

	// the sequence is scoped per type, so the same number is free for
	// the other type
	assert.NoError(t, db.Create(ptr(refill(RefillDotation, 1))).Error)
	assert.NoError(t, db.Create(ptr(refill(RefillMission, 2))).Error)
}

func TestQuotaUniquePerVehicleMonth(t *testing.T) {
	db := newTestDB(t)

	q := Quota{VehiculeID: 1, BeneficiaireID: 1, Mois: 6, Annee: 2025,
		Qte: decimal.NewFromInt(120), Reste: decimal.NewFromInt(120)}
	require.NoError(t, db.Create(&q).Error)

	dup := Quota{VehiculeID: 1, BeneficiaireID: 2, Mois: 6, Annee: 2025,
		Qte: decimal.NewFromInt(90), Reste: decimal.NewFromInt(90)}
	assert.Error(t, db.Create(&dup).Error)

	next := Quota{VehiculeID: 1, BeneficiaireID: 1, Mois: 7, Annee: 2025,
		Qte: decimal.NewFromInt(120), Reste: decimal.NewFromInt(120)}
	assert.NoError(t, db.Create(&next).Error)
}

func ptr(r Refill) *Refill { return &r }
