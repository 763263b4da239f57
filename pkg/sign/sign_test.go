package sign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string
	Age  int
}

func TestFingerprintDeterministic(t *testing.T) {
	p := payload{Name: "Peti", Age: 34}

	a, err := Fingerprint(p)
	require.NoError(t, err)
	b, err := Fingerprint(p)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 40) // hex SHA-1 is 20 bytes
}

func TestFingerprintDiffersOnChange(t *testing.T) {
	a, err := Fingerprint(payload{Name: "Peti", Age: 34})
	require.NoError(t, err)
	b, err := Fingerprint(payload{Name: "Peti", Age: 35})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerify(t *testing.T) {
	p := payload{Name: "Peti", Age: 34}
	digest, err := Fingerprint(p)
	require.NoError(t, err)

	ok, err := Verify(p, digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(payload{Name: "Peti", Age: 35}, digest)
	require.NoError(t, err)
	assert.False(t, ok)
}
