// Package wire defines the CBOR message types exchanged by the fake ADB
// server's control channel and by its downstream device link.
//
// All maps use integer keys. Messages travel inside length-prefixed frames
// (see package transport).
//
// # Control Channel
//
// A client sends a Request naming an Operation and its operands; the server
// answers with a Response carrying a Status. Two failure statuses are kept
// apart on purpose:
//
//   - StatusDeviceFailure: a declared device-side failure (FailWith).
//   - StatusAssertion: a harness assertion (unexpected operation, content
//     mismatch). The system under test is misbehaving.
//
// # Device Link
//
// A Packet carries one link command (CNXN, AUTH, OPEN, OKAY, WRTE, CLSE).
// The command names follow ADB; the encoding does not.
package wire
