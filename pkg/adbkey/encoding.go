package adbkey

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"
	"os"
	"os/user"
)

const (
	modulusWords = KeyBits / 32
	modulusBytes = KeyBits / 8

	// word count, n0inv, modulus, R^2, exponent
	encodedSize = 4 + 4 + modulusBytes + modulusBytes + 4
)

// EncodePublicKey returns pub in ADB format: base64 of the RSAPublicKey
// struct (little-endian words), then " comment" when comment is non-empty.
func EncodePublicKey(pub *rsa.PublicKey, comment string) []byte {
	raw := make([]byte, encodedSize)

	n := pub.N
	r32 := new(big.Int).Lsh(big.NewInt(1), 32)
	n0 := new(big.Int).Mod(n, r32)
	inv := new(big.Int).ModInverse(n0, r32)
	n0inv := new(big.Int).Sub(r32, inv)

	rr := new(big.Int).Lsh(big.NewInt(1), 2*KeyBits)
	rr.Mod(rr, n)

	binary.LittleEndian.PutUint32(raw[0:], modulusWords)
	binary.LittleEndian.PutUint32(raw[4:], uint32(n0inv.Uint64()))
	putLittleEndian(raw[8:8+modulusBytes], n)
	putLittleEndian(raw[8+modulusBytes:8+2*modulusBytes], rr)
	binary.LittleEndian.PutUint32(raw[8+2*modulusBytes:], uint32(pub.E))

	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	if comment != "" {
		out = append(out, ' ')
		out = append(out, comment...)
	}
	return out
}

// ParsePublicKey parses an ADB-format public key. A trailing comment and
// NUL or newline terminators are ignored.
func ParsePublicKey(data []byte) (*rsa.PublicKey, string, error) {
	data = bytes.TrimRight(data, "\x00\r\n")
	encoded, comment, _ := bytes.Cut(data, []byte(" "))

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(raw, encoded)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	raw = raw[:n]
	if len(raw) != encodedSize {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrInvalidPublicKey, len(raw))
	}
	if words := binary.LittleEndian.Uint32(raw[0:]); words != modulusWords {
		return nil, "", fmt.Errorf("%w: %d-word modulus", ErrUnsupportedKey, words)
	}

	pub := &rsa.PublicKey{
		N: fromLittleEndian(raw[8 : 8+modulusBytes]),
		E: int(binary.LittleEndian.Uint32(raw[8+2*modulusBytes:])),
	}
	if pub.N.Sign() == 0 || pub.E < 3 {
		return nil, "", ErrInvalidPublicKey
	}
	return pub, string(comment), nil
}

func putLittleEndian(dst []byte, v *big.Int) {
	be := v.FillBytes(make([]byte, len(dst)))
	for i, b := range be {
		dst[len(dst)-1-i] = b
	}
}

func fromLittleEndian(src []byte) *big.Int {
	be := make([]byte, len(src))
	for i, b := range src {
		be[len(src)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

func defaultComment() string {
	name := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return name + "@" + host
}
