package adbkey

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/pem"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sharedKey     *KeyPair
	sharedKeyOnce sync.Once
)

// testKey returns one generated key pair for the whole package run.
func testKey(t *testing.T) *KeyPair {
	t.Helper()
	sharedKeyOnce.Do(func() {
		kp, err := Generate()
		if err != nil {
			panic(err)
		}
		sharedKey = kp
	})
	return sharedKey
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerate(t *testing.T) {
	kp := testKey(t)
	assert.Equal(t, KeyBits, kp.Private.N.BitLen())
	assert.Contains(t, kp.Comment, "@")
}

func TestSignVerify(t *testing.T) {
	kp := testKey(t)
	token := make([]byte, TokenSize)
	_, err := rand.Read(token)
	require.NoError(t, err)

	sig, err := kp.Sign(token)
	require.NoError(t, err)
	assert.Len(t, sig, KeyBits/8)
	assert.NoError(t, Verify(kp.Public(), token, sig))

	token[0] ^= 0xFF
	assert.Error(t, Verify(kp.Public(), token, sig))
}

func TestSignRejectsWrongTokenSize(t *testing.T) {
	_, err := testKey(t).Sign([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPublicKeyEncoding(t *testing.T) {
	kp := testKey(t)
	kp2 := &KeyPair{Private: kp.Private, Comment: "tester@host"}

	encoded := kp2.EncodedPublicKey()
	assert.True(t, bytes.HasSuffix(encoded, []byte(" tester@host")))

	b64, _, _ := strings.Cut(string(encoded), " ")
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	assert.Len(t, raw, encodedSize)

	pub, comment, err := ParsePublicKey(append(encoded, '\n'))
	require.NoError(t, err)
	assert.Equal(t, "tester@host", comment)
	assert.True(t, pub.Equal(kp.Public()))
}

func TestPublicKeyEncodingN0Inv(t *testing.T) {
	kp := testKey(t)
	raw, err := base64.StdEncoding.DecodeString(string(EncodePublicKey(kp.Public(), "")))
	require.NoError(t, err)

	// n0inv * n[0] == -1 mod 2^32
	n0inv := uint32(raw[4]) | uint32(raw[5])<<8 | uint32(raw[6])<<16 | uint32(raw[7])<<24
	n0 := uint32(raw[8]) | uint32(raw[9])<<8 | uint32(raw[10])<<16 | uint32(raw[11])<<24
	assert.Equal(t, uint32(0xFFFFFFFF), n0inv*n0)
}

func TestParsePublicKeyErrors(t *testing.T) {
	_, _, err := ParsePublicKey([]byte("!!!not-base64"))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	_, _, err = ParsePublicKey([]byte(base64.StdEncoding.EncodeToString([]byte("short"))))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestFingerprint(t *testing.T) {
	fp, err := testKey(t).Fingerprint()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fp, "SHA256:"), fp)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "keys", "adbkey")
	pub := filepath.Join(dir, "keys", "adbkey.pub")

	kp := testKey(t)
	require.NoError(t, kp.Save(priv, pub))

	info, err := os.Stat(priv)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	privData, err := os.ReadFile(priv)
	require.NoError(t, err)
	block, _ := pem.Decode(privData)
	require.NotNil(t, block)
	assert.Equal(t, "RSA PRIVATE KEY", block.Type)

	loaded, err := Load(priv, pub)
	require.NoError(t, err)
	assert.True(t, loaded.Private.Equal(kp.Private))
	assert.Equal(t, kp.Comment, loaded.Comment)
}

func TestLoadRejectsMismatchedFiles(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "adbkey")
	pub := filepath.Join(dir, "adbkey.pub")

	kp := testKey(t)
	require.NoError(t, kp.Save(priv, pub))

	other, err := rsa.GenerateKey(rand.Reader, KeyBits)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pub, EncodePublicKey(&other.PublicKey, "x@y"), 0644))

	_, err = Load(priv, pub)
	assert.Error(t, err)
}

func TestLoadOrGenerate(t *testing.T) {
	t.Run("generates when missing", func(t *testing.T) {
		dir := t.TempDir()
		priv := filepath.Join(dir, "adbkey")
		pub := filepath.Join(dir, "adbkey.pub")

		kp, err := LoadOrGenerate(priv, pub, quietLogger())
		require.NoError(t, err)
		assert.FileExists(t, priv)
		assert.FileExists(t, pub)

		again, err := LoadOrGenerate(priv, pub, quietLogger())
		require.NoError(t, err)
		assert.True(t, again.Private.Equal(kp.Private), "second call should load the saved pair")
	})

	t.Run("regenerates when corrupt", func(t *testing.T) {
		dir := t.TempDir()
		priv := filepath.Join(dir, "adbkey")
		pub := filepath.Join(dir, "adbkey.pub")
		require.NoError(t, os.WriteFile(priv, []byte("garbage"), 0600))

		kp, err := LoadOrGenerate(priv, pub, nil)
		require.NoError(t, err)

		loaded, err := Load(priv, pub)
		require.NoError(t, err)
		assert.True(t, loaded.Private.Equal(kp.Private))
	})

	t.Run("private and public go to distinct files", func(t *testing.T) {
		dir := t.TempDir()
		priv := filepath.Join(dir, "adbkey")
		pub := filepath.Join(dir, "adbkey.pub")

		_, err := LoadOrGenerate(priv, pub, quietLogger())
		require.NoError(t, err)

		privData, err := os.ReadFile(priv)
		require.NoError(t, err)
		pubData, err := os.ReadFile(pub)
		require.NoError(t, err)
		assert.Contains(t, string(privData), "RSA PRIVATE KEY")
		assert.NotContains(t, string(pubData), "PRIVATE KEY")
	})
}
