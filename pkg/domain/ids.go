// Package domain defines the typed identifiers shared across features.
// Distinct types keep a registrant ID from ever being passed where a dossier
// ID is expected; the compiler enforces what reviews used to catch.
package domain

import (
	"github.com/google/uuid"

	dErrors "immuna/pkg/domain-errors"
)

// UUID-backed identifiers.
type (
	// RegistrantID identifies a person registered in the vaccination portal.
	RegistrantID uuid.UUID
	// DossierID identifies one (registrant, disease) vaccination dossier.
	DossierID uuid.UUID
	// EventID identifies a single recorded dose.
	EventID uuid.UUID
	// CertificateID identifies an issued immunity certificate.
	CertificateID uuid.UUID
)

// Catalog-code identifiers. These come from supplied reference data, not from
// this service, so they stay opaque strings.
type (
	// DiseaseID is the catalog code of a disease, e.g. "covid-19".
	DiseaseID string
	// ProductID is the catalog code of a vaccine product.
	ProductID string
)

func (id RegistrantID) String() string  { return uuid.UUID(id).String() }
func (id DossierID) String() string     { return uuid.UUID(id).String() }
func (id EventID) String() string       { return uuid.UUID(id).String() }
func (id CertificateID) String() string { return uuid.UUID(id).String() }

func (id RegistrantID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id DossierID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id DiseaseID) String() string { return string(id) }
func (id DiseaseID) IsNil() bool    { return id == "" }
func (id ProductID) String() string { return string(id) }
func (id ProductID) IsNil() bool    { return id == "" }

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

// ParseRegistrantID validates and converts a string to a RegistrantID.
func ParseRegistrantID(s string) (RegistrantID, error) {
	u, err := parseUUID(s)
	return RegistrantID(u), err
}

// ParseDossierID validates and converts a string to a DossierID.
func ParseDossierID(s string) (DossierID, error) {
	u, err := parseUUID(s)
	return DossierID(u), err
}

// ParseEventID validates and converts a string to an EventID.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s)
	return EventID(u), err
}

// ParseCertificateID validates and converts a string to a CertificateID.
func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s)
	return CertificateID(u), err
}

// ParseDiseaseID validates a disease catalog code.
func ParseDiseaseID(s string) (DiseaseID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "disease id must not be empty")
	}
	return DiseaseID(s), nil
}
