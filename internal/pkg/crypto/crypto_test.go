package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrypto_EncryptDecrypt(t *testing.T) {
	t.Parallel()
	c, err := New("0123456789abcdef0123456789abcdef", "salt")
	require.NoError(t, err)

	testCases := []struct {
		name  string
		plain string
	}{
		{name: "普通字符串", plain: "+15551234567"},
		{name: "中文", plain: "张三"},
		{name: "空字符串", plain: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			encrypted, err := c.Encrypt(tc.plain)
			require.NoError(t, err)
			if tc.plain != "" {
				assert.NotEqual(t, tc.plain, encrypted)
			}
			decrypted, err := c.Decrypt(encrypted)
			require.NoError(t, err)
			assert.Equal(t, tc.plain, decrypted)
		})
	}
}

func TestCrypto_DecryptWithWrongKey(t *testing.T) {
	t.Parallel()
	c1, err := New("key-1", "salt")
	require.NoError(t, err)
	c2, err := New("key-2", "salt")
	require.NoError(t, err)

	encrypted, err := c1.Encrypt("secret")
	require.NoError(t, err)
	_, err = c2.Decrypt(encrypted)
	assert.Error(t, err)

	_, err = c1.Decrypt("YWJj")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestCrypto_Hash(t *testing.T) {
	t.Parallel()
	c, err := New("key", "salt")
	require.NoError(t, err)
	other, err := New("key", "another-salt")
	require.NoError(t, err)

	assert.Equal(t, c.Hash("abc"), c.Hash(" abc "))
	assert.NotEqual(t, c.Hash("abc"), other.Hash("abc"))
	assert.Equal(t, c.HashEmail("Foo@Example.com"), c.HashEmail("foo@example.com"))
	assert.Empty(t, c.Hash(""))
}

func TestVerify(t *testing.T) {
	t.Parallel()
	sig := Sign("secret", "u1")
	assert.True(t, Verify("secret", "u1", sig))
	assert.False(t, Verify("secret", "u2", sig))
	assert.False(t, Verify("other", "u1", sig))
}
