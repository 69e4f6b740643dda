package pydeps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	assert.Equal(t, Version{2, 31, 0}, ParseVersion("2.31.0"))
	assert.Equal(t, Version{1, 0}, ParseVersion("1.0b2"))
	assert.Equal(t, Version{3}, ParseVersion("3.dev1"))
	assert.Empty(t, ParseVersion("garbage"))
}

func TestVersionCompare(t *testing.T) {
	assert.Equal(t, 0, ParseVersion("2.0").Compare(ParseVersion("2.0.0")))
	assert.Equal(t, -1, ParseVersion("2.9").Compare(ParseVersion("2.10")))
	assert.Equal(t, 1, ParseVersion("3.0.1").Compare(ParseVersion("3.0")))
}

func TestParseSpecifierBareName(t *testing.T) {
	spec, err := ParseSpecifier("Requests")
	require.NoError(t, err)
	assert.Equal(t, "requests", spec.Name)
	assert.Empty(t, spec.Constraints)
	assert.True(t, spec.SatisfiedBy(ParseVersion("0.1")))
}

func TestParseSpecifierCompoundRange(t *testing.T) {
	spec, err := ParseSpecifier("requests>=2,<3")
	require.NoError(t, err)
	assert.Equal(t, "requests", spec.Name)
	require.Len(t, spec.Constraints, 2)

	assert.False(t, spec.SatisfiedBy(ParseVersion("1.9")))
	assert.True(t, spec.SatisfiedBy(ParseVersion("2.0")))
	assert.True(t, spec.SatisfiedBy(ParseVersion("2.31.0")))
	assert.False(t, spec.SatisfiedBy(ParseVersion("3.0")))
}

func TestParseSpecifierOperators(t *testing.T) {
	cases := []struct {
		spec      string
		installed string
		want      bool
	}{
		{"pkg==1.2", "1.2.0", true},
		{"pkg==1.2", "1.3", false},
		{"pkg!=1.2", "1.3", true},
		{"pkg!=1.2", "1.2", false},
		{"pkg>1.0", "1.0", false},
		{"pkg>1.0", "1.0.1", true},
		{"pkg<=2.0", "2.0", true},
		{"pkg<=2.0", "2.0.1", false},
	}
	for _, tc := range cases {
		spec, err := ParseSpecifier(tc.spec)
		require.NoError(t, err, tc.spec)
		assert.Equal(t, tc.want, spec.SatisfiedBy(ParseVersion(tc.installed)),
			"%s against %s", tc.spec, tc.installed)
	}
}

func TestParseSpecifierNormalizesName(t *testing.T) {
	spec, err := ParseSpecifier("Flask_SQLAlchemy>=3")
	require.NoError(t, err)
	assert.Equal(t, "flask-sqlalchemy", spec.Name)
}

func TestParseSpecifierStripsExtras(t *testing.T) {
	spec, err := ParseSpecifier("requests[socks]>=2")
	require.NoError(t, err)
	assert.Equal(t, "requests", spec.Name)
}

func TestParseSpecifierRejectsGarbage(t *testing.T) {
	_, err := ParseSpecifier("")
	assert.Error(t, err)

	_, err = ParseSpecifier(">=2")
	assert.Error(t, err)

	_, err = ParseSpecifier("pkg>=")
	assert.Error(t, err)
}
