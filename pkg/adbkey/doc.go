// Package adbkey manages the RSA key pair the server authenticates with
// when it bridges to a networked device.
//
// The private key is stored as a PKCS#1 PEM file. The public key is stored
// in the ADB format: the base64 encoding of the Android RSAPublicKey struct
// followed by a " user@host" comment.
package adbkey
