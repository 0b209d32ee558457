package xmlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeIgnoresFormatting(t *testing.T) {
	compact := `<record><title>Carte des sols</title><date>2024-01-01</date></record>`
	sprawling := `<record>
		<title>Carte des sols</title>


		   <date>2024-01-01</date>
	</record>`

	a, err := Canonicalize(compact)
	require.NoError(t, err)

	b, err := Canonicalize(sprawling)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestCanonicalizePreservesContentDifferences(t *testing.T) {
	a, err := Canonicalize(`<record><title>Carte des sols</title></record>`)
	require.NoError(t, err)

	b, err := Canonicalize(`<record><title>Carte des vents</title></record>`)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	once, err := Canonicalize(`<a><b/><c>x</c></a>`)
	require.NoError(t, err)

	twice, err := Canonicalize(once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("this is not xml <")

	assert.Error(t, err)
}
