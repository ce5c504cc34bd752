package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefault(t *testing.T) *Codec {
	t.Helper()
	c, err := New([]byte(DefaultKey), []byte(DefaultIV))
	require.NoError(t, err)
	return c
}

func TestEncryptDecrypt(t *testing.T) {
	t.Parallel()

	c := newDefault(t)
	payload := `{"seat_id":"7001","segment":"1402553"}`
	ct, err := c.Encrypt(payload)
	require.NoError(t, err)
	assert.NotContains(t, ct, "seat_id")

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	assert.Zero(t, len(raw)%16)

	pt, err := c.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, payload, pt)
}

func TestEncryptIsDeterministic(t *testing.T) {
	t.Parallel()

	c := newDefault(t)
	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBlockAlignedPlaintextGetsFullPadBlock(t *testing.T) {
	t.Parallel()

	c := newDefault(t)
	ct, err := c.Encrypt("0123456789abcdef")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	t.Parallel()

	c := newDefault(t)
	_, err := c.Decrypt("not base64!")
	assert.Error(t, err)
	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestNewValidatesSizes(t *testing.T) {
	t.Parallel()

	_, err := New([]byte("short"), []byte(DefaultIV))
	assert.Error(t, err)
	_, err = New([]byte(DefaultKey), []byte("short"))
	assert.Error(t, err)
}
