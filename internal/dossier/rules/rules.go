// Package rules holds the per-disease capability table. Evaluator, state
// machine and certificate impact decider stay branch-free on disease codes;
// every disease-specific behavior is a field here.
package rules

import (
	"sync"
	"time"

	id "immuna/pkg/domain"
	dErrors "immuna/pkg/domain-errors"
)

// Product describes one vaccine product eligible for a disease.
type Product struct {
	ID            id.ProductID
	Name          string
	RequiredDoses int
}

// Ruleset is the capability entry for one disease.
type Ruleset struct {
	Disease id.DiseaseID

	SupportsCertificates bool
	SupportsRecovery     bool
	// AllowsRepeatedRoles permits two counted doses with the same mandatory
	// sequence role. When false such a history is ambiguous and rejected.
	AllowsRepeatedRoles bool

	// ProtectionLeadTime is the delay between the completing dose and the
	// start of protection.
	ProtectionLeadTime time.Duration
	// ProtectionDuration bounds the protection window; zero means indefinite.
	ProtectionDuration time.Duration
	// BoosterInterval is the time after the last dose at which the next dose
	// unlocks; zero means the disease has no booster concept.
	BoosterInterval time.Duration

	Products map[id.ProductID]Product
	// NextDoseProducts are the products allowed for the next dose once
	// protection is granted.
	NextDoseProducts []id.ProductID

	// DefaultRequiredDoses applies to products missing from the catalog, so
	// an incomplete catalog never under-counts a course.
	DefaultRequiredDoses int
}

// RequiredDoses returns the base-course length for a product.
func (r Ruleset) RequiredDoses(product id.ProductID) int {
	if p, ok := r.Products[product]; ok {
		return p.RequiredDoses
	}
	if r.DefaultRequiredDoses > 0 {
		return r.DefaultRequiredDoses
	}
	return 2
}

// Registry looks up rulesets by disease. Entries come from supplied catalog
// data; Register replaces an existing entry wholesale.
type Registry struct {
	mu        sync.RWMutex
	byDisease map[id.DiseaseID]Ruleset
}

func NewRegistry() *Registry {
	return &Registry{byDisease: make(map[id.DiseaseID]Ruleset)}
}

func (r *Registry) Register(rs Ruleset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDisease[rs.Disease] = rs
}

// Lookup returns the ruleset for a disease.
func (r *Registry) Lookup(disease id.DiseaseID) (Ruleset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.byDisease[disease]
	if !ok {
		return Ruleset{}, dErrors.Newf(dErrors.CodeNotFound, "no ruleset for disease %q", disease)
	}
	return rs, nil
}

// Default returns a registry seeded with the development catalog. Production
// deployments load the catalog from reference data at startup.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Ruleset{
		Disease:              "covid-19",
		SupportsCertificates: true,
		SupportsRecovery:     true,
		ProtectionLeadTime:   14 * 24 * time.Hour,
		ProtectionDuration:   270 * 24 * time.Hour,
		BoosterInterval:      180 * 24 * time.Hour,
		Products: map[id.ProductID]Product{
			"comirnaty": {ID: "comirnaty", Name: "Comirnaty", RequiredDoses: 2},
			"spikevax":  {ID: "spikevax", Name: "Spikevax", RequiredDoses: 2},
			"jcovden":   {ID: "jcovden", Name: "Jcovden", RequiredDoses: 1},
		},
		NextDoseProducts:     []id.ProductID{"comirnaty", "spikevax"},
		DefaultRequiredDoses: 2,
	})
	r.Register(Ruleset{
		Disease:              "measles",
		SupportsCertificates: false,
		SupportsRecovery:     false,
		ProtectionLeadTime:   0,
		ProtectionDuration:   0, // lifelong
		BoosterInterval:      0,
		Products: map[id.ProductID]Product{
			"mmr-vax": {ID: "mmr-vax", Name: "MMR combination", RequiredDoses: 2},
		},
		DefaultRequiredDoses: 2,
	})
	return r
}
