package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "immuna/pkg/domain-errors"
)

func TestRegistryLookup(t *testing.T) {
	r := Default()

	rs, err := r.Lookup("covid-19")
	require.NoError(t, err)
	assert.True(t, rs.SupportsCertificates)
	assert.True(t, rs.SupportsRecovery)

	_, err = r.Lookup("smallpox")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(Ruleset{Disease: "covid-19", DefaultRequiredDoses: 2})
	r.Register(Ruleset{Disease: "covid-19", DefaultRequiredDoses: 3})

	rs, err := r.Lookup("covid-19")
	require.NoError(t, err)
	assert.Equal(t, 3, rs.DefaultRequiredDoses)
}

func TestRequiredDoses(t *testing.T) {
	r := Default()
	rs, err := r.Lookup("covid-19")
	require.NoError(t, err)

	assert.Equal(t, 2, rs.RequiredDoses("comirnaty"))
	assert.Equal(t, 1, rs.RequiredDoses("jcovden"))
	// Unknown products fall back to the disease default so an incomplete
	// catalog never under-counts a course.
	assert.Equal(t, 2, rs.RequiredDoses("novel-product"))
}
