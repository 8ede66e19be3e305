package cryptoutil

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(TokenBytes)
	require.NoError(t, err)
	b, err := RandomToken(TokenBytes)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, TokenBytes)
	assert.NotEqual(t, a, b)

	def, err := RandomToken(0)
	require.NoError(t, err)
	assert.Len(t, def, len(a))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("abc", "abc"))
	assert.False(t, Equal("abc", "abd"))
	assert.False(t, Equal("abc", "ab"))
	assert.False(t, Equal("", "x"))
}

func TestAESGCMEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewAESGCMEncryptor(KeyFromString("a passphrase that gets hashed"))
	require.NoError(t, err)

	ct, err := enc.Encrypt([]byte(`{"access_token":"at"}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ct, "v1:"))
	assert.NotContains(t, ct, "access_token")

	pt, err := enc.Decrypt(ct)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"at"}`, string(pt))
}

func TestAESGCMEncryptor_ReadsNoopValues(t *testing.T) {
	enc, err := NewAESGCMEncryptor(make([]byte, 32))
	require.NoError(t, err)

	ct, err := NoopEncryptor{}.Encrypt([]byte("legacy"))
	require.NoError(t, err)
	pt, err := enc.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "legacy", string(pt))
}

func TestAESGCMEncryptor_Rejects(t *testing.T) {
	_, err := NewAESGCMEncryptor([]byte("short"))
	require.Error(t, err)

	enc, err := NewAESGCMEncryptor(make([]byte, 32))
	require.NoError(t, err)
	_, err = enc.Decrypt("v2:whatever")
	require.Error(t, err)
	_, err = enc.Decrypt("v1:" + base64.StdEncoding.EncodeToString([]byte("x")))
	require.Error(t, err)

	other, err := NewAESGCMEncryptor(KeyFromString("other"))
	require.NoError(t, err)
	ct, err := other.Encrypt([]byte("secret"))
	require.NoError(t, err)
	_, err = enc.Decrypt(ct)
	require.Error(t, err)
}

func TestKeyFromString_Hex(t *testing.T) {
	hexKey := strings.Repeat("ab", 32)
	key := KeyFromString(hexKey)
	assert.Len(t, key, 32)
	assert.Equal(t, byte(0xab), key[0])
	assert.Len(t, KeyFromString("short"), 32)
}
