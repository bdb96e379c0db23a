// Package fuel holds the quota reconciliation rules that the legacy
// system buried in database triggers. Everything here is pure: callers
// load the quota row, apply an operation, and persist the result inside
// their own transaction.
package fuel

import (
	"errors"

	"github.com/shopspring/decimal"

	"fleetfuel/internal/models"
)

var (
	ErrQuotaClosed     = errors.New("dotation clôturée : approvisionnement refusé")
	ErrInvalidQuantity = errors.New("quantité invalide")
	ErrInvalidOdometer = errors.New("kilométrage actuel doit dépasser le kilométrage précédent")
)

// AnomalyPolicy defines the plausible odometer progression per refill,
// in km. Deltas outside [MinKmDelta, MaxKmDelta] flag the refill.
type AnomalyPolicy struct {
	MinKmDelta int
	MaxKmDelta int
}

func DefaultAnomalyPolicy() AnomalyPolicy {
	return AnomalyPolicy{MinKmDelta: 1, MaxKmDelta: 1000}
}

func (p AnomalyPolicy) Anomalous(kmPrecedent, km int) bool {
	delta := km - kmPrecedent
	return delta < p.MinKmDelta || delta > p.MaxKmDelta
}

// Posting is a scheduled refill against an open quota.
type Posting struct {
	Qte         decimal.Decimal
	KmPrecedent int
	Km          int
}

// Verdict is the anomaly judgement for one posting.
type Verdict struct {
	Anomalie bool
	KmDelta  int
}

// ApplyRefill consumes a posting against the quota. The remaining value
// is never clamped: overshooting records a negative Reste and closes the
// period. Closure happens exactly when consumed >= allotted.
func ApplyRefill(q models.Quota, p Posting, pol AnomalyPolicy) (models.Quota, Verdict, error) {
	if q.Cloture {
		return q, Verdict{}, ErrQuotaClosed
	}
	if !p.Qte.IsPositive() {
		return q, Verdict{}, ErrInvalidQuantity
	}
	if p.Km <= p.KmPrecedent {
		return q, Verdict{}, ErrInvalidOdometer
	}
	q.QteConsomme = q.QteConsomme.Add(p.Qte)
	q.Reste = q.Qte.Sub(q.QteConsomme)
	q.Cloture = q.QteConsomme.GreaterThanOrEqual(q.Qte)
	v := Verdict{
		Anomalie: pol.Anomalous(p.KmPrecedent, p.Km),
		KmDelta:  p.Km - p.KmPrecedent,
	}
	return q, v, nil
}

// RevertRefill undoes a deleted refill's consumption. A period that was
// auto-closed by the reverted refill reopens once consumption drops back
// below the allotment.
func RevertRefill(q models.Quota, qte decimal.Decimal) models.Quota {
	q.QteConsomme = q.QteConsomme.Sub(qte)
	q.Reste = q.Qte.Sub(q.QteConsomme)
	q.Cloture = q.QteConsomme.GreaterThanOrEqual(q.Qte)
	return q
}

// AdjustRefill replaces a refill's quantity and re-derives the quota
// totals, for the admin quantity-correction path.
func AdjustRefill(q models.Quota, oldQte, newQte decimal.Decimal) (models.Quota, error) {
	if !newQte.IsPositive() {
		return q, ErrInvalidQuantity
	}
	q.QteConsomme = q.QteConsomme.Sub(oldQte).Add(newQte)
	q.Reste = q.Qte.Sub(q.QteConsomme)
	q.Cloture = q.QteConsomme.GreaterThanOrEqual(q.Qte)
	return q, nil
}

// NewQuota initialises the derived fields of a fresh allotment.
func NewQuota(q models.Quota) models.Quota {
	q.QteConsomme = decimal.Zero
	q.Reste = q.Qte
	q.Cloture = false
	return q
}
