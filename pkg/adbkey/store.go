package adbkey

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const pemTypeRSA = "RSA PRIVATE KEY"

// EncodePrivateKeyPEM encodes priv as a PKCS#1 PEM block.
func EncodePrivateKeyPEM(priv *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeRSA,
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
}

// DecodePrivateKeyPEM decodes a PKCS#1 PEM private key. PKCS#8 blocks
// holding an RSA key are accepted too.
func DecodePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}

	switch block.Type {
	case pemTypeRSA:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("%w: block type %q", ErrInvalidPEM, block.Type)
	}
}

// Load reads a key pair from privPath and pubPath. The public key file
// must hold the public half of the private key.
func Load(privPath, pubPath string) (*KeyPair, error) {
	privData, err := os.ReadFile(privPath)
	if err != nil {
		return nil, err
	}
	priv, err := DecodePrivateKeyPEM(privData)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", privPath, err)
	}

	pubData, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, err
	}
	pub, comment, err := ParsePublicKey(pubData)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pubPath, err)
	}
	if !pub.Equal(&priv.PublicKey) {
		return nil, fmt.Errorf("%s does not match %s", pubPath, privPath)
	}

	return &KeyPair{Private: priv, Comment: comment}, nil
}

// Save writes the private key to privPath (mode 0600) and the public key
// to pubPath (mode 0644), creating parent directories.
func (k *KeyPair) Save(privPath, pubPath string) error {
	for _, p := range []string{privPath, pubPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return err
		}
	}
	if err := os.WriteFile(privPath, EncodePrivateKeyPEM(k.Private), 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, append(k.EncodedPublicKey(), '\n'), 0644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}
	return nil
}

// LoadOrGenerate loads the key pair at privPath and pubPath. If it cannot
// be loaded for any reason a new one is generated and saved there.
func LoadOrGenerate(privPath, pubPath string, logger *slog.Logger) (*KeyPair, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kp, err := Load(privPath, pubPath)
	if err == nil {
		logger.Debug("loaded key pair", "private", privPath, "public", pubPath)
		return kp, nil
	}
	logger.Debug("generating key pair", "reason", err)

	kp, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := kp.Save(privPath, pubPath); err != nil {
		return nil, err
	}
	logger.Info("generated key pair", "private", privPath, "public", pubPath)
	return kp, nil
}
