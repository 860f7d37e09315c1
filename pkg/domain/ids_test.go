package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "immuna/pkg/domain-errors"
)

func TestParseRegistrantID(t *testing.T) {
	raw := uuid.NewString()
	parsed, err := ParseRegistrantID(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, parsed.String())
	assert.False(t, parsed.IsNil())

	for _, bad := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		_, err := ParseRegistrantID(bad)
		require.Error(t, err, "input %q", bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}
}

func TestParseDiseaseID(t *testing.T) {
	parsed, err := ParseDiseaseID("covid-19")
	require.NoError(t, err)
	assert.Equal(t, "covid-19", parsed.String())

	_, err = ParseDiseaseID("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
