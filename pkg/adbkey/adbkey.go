package adbkey

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyBits is the RSA modulus size ADB uses.
const KeyBits = 2048

// TokenSize is the size of an AUTH token; the token is signed as if it were
// a SHA-1 digest.
const TokenSize = 20

// Key errors.
var (
	ErrInvalidPEM       = errors.New("invalid PEM data")
	ErrInvalidPublicKey = errors.New("invalid ADB public key")
	ErrUnsupportedKey   = errors.New("unsupported key")
	ErrInvalidToken     = errors.New("token must be 20 bytes")
)

// KeyPair is an RSA key pair plus the comment appended to its public key.
type KeyPair struct {
	Private *rsa.PrivateKey
	Comment string
}

// Generate creates a new 2048-bit key pair.
func Generate() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}
	return &KeyPair{Private: priv, Comment: defaultComment()}, nil
}

// Public returns the public half.
func (k *KeyPair) Public() *rsa.PublicKey {
	return &k.Private.PublicKey
}

// Sign signs an AUTH token.
func (k *KeyPair) Sign(token []byte) ([]byte, error) {
	if len(token) != TokenSize {
		return nil, ErrInvalidToken
	}
	return rsa.SignPKCS1v15(rand.Reader, k.Private, crypto.SHA1, token)
}

// EncodedPublicKey returns the public key in ADB format, with its comment.
func (k *KeyPair) EncodedPublicKey() []byte {
	return EncodePublicKey(k.Public(), k.Comment)
}

// Fingerprint returns the SHA256 fingerprint of the public key.
func (k *KeyPair) Fingerprint() (string, error) {
	return Fingerprint(k.Public())
}

// Verify checks a token signature against pub.
func Verify(pub *rsa.PublicKey, token, sig []byte) error {
	if len(token) != TokenSize {
		return ErrInvalidToken
	}
	return rsa.VerifyPKCS1v15(pub, crypto.SHA1, token, sig)
}

// Fingerprint returns the SHA256 fingerprint of pub in the
// "SHA256:..." form ssh-keygen prints.
func Fingerprint(pub *rsa.PublicKey) (string, error) {
	sshKey, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("convert public key: %w", err)
	}
	return ssh.FingerprintSHA256(sshKey), nil
}
