package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretBoxRoundTrip(t *testing.T) {
	t.Parallel()

	box, err := NewSecretBox("correct horse battery staple")
	require.NoError(t, err)

	sealed, err := box.Seal("okx-api-secret-value")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "okx-api-secret-value")

	plaintext, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "okx-api-secret-value", plaintext)
}

func TestSecretBoxSealIsNonDeterministic(t *testing.T) {
	t.Parallel()

	box, err := NewSecretBox("pw")
	require.NoError(t, err)

	a, err := box.Seal("same secret")
	require.NoError(t, err)
	b, err := box.Seal("same secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSecretBoxWrongPassword(t *testing.T) {
	t.Parallel()

	box, err := NewSecretBox("right")
	require.NoError(t, err)
	sealed, err := box.Seal("secret")
	require.NoError(t, err)

	wrong, err := NewSecretBox("wrong")
	require.NoError(t, err)
	_, err = wrong.Open(sealed)
	assert.Error(t, err)
}

func TestSecretBoxRejectsEmptyInputs(t *testing.T) {
	t.Parallel()

	_, err := NewSecretBox("")
	assert.Error(t, err)

	box, err := NewSecretBox("pw")
	require.NoError(t, err)
	_, err = box.Seal("")
	assert.Error(t, err)

	_, err = box.Open("not json")
	assert.Error(t, err)
}
