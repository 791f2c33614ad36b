package sec

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *ValueCipher {
	t.Helper()
	c, err := NewValueCipher(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	return c
}

func TestValueCipher_RoundTrip(t *testing.T) {
	c := testCipher(t)
	sealed, err := c.Seal("jane_formData_form_1", `{"staffName":"Bob"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, SealedPrefix))
	assert.NotContains(t, sealed, "Bob")

	plain, err := c.Open("jane_formData_form_1", sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"staffName":"Bob"}`, plain)
}

func TestValueCipher_KeyBinding(t *testing.T) {
	c := testCipher(t)
	sealed, err := c.Seal("jane_formList", "[]")
	require.NoError(t, err)
	_, err = c.Open("bob_formList", sealed)
	assert.Error(t, err)
}

func TestValueCipher_PlaintextPassThrough(t *testing.T) {
	c := testCipher(t)
	plain, err := c.Open("k", "form_1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "form_1700000000000", plain)
}

func TestNewValueCipher_KeyLength(t *testing.T) {
	_, err := NewValueCipher([]byte("short"))
	assert.Error(t, err)

	_, err = NewValueCipherBase64(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32)))
	assert.NoError(t, err)
}
