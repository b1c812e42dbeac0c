// Package transport carries the fake ADB server's two connections.
//
// The control channel (Server, Client) serves device operations to the
// system under test. Each request is answered from a Directory, usually a
// registry.Registry.
//
// The device link (Link) connects the server to a real or emulated
// networked device, and carries multiplexed service streams.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│  CBOR Request/Response/Packet  │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│             TCP                │
//	└────────────────────────────────┘
//
// # Link Handshake
//
// The host sends CNXN. The device answers AUTH(token); the host signs it.
// If the device does not know the signer it sends a second token, and the
// host answers with its public key. The device accepts with CNXN(banner).
//
// # Streams
//
// OPEN(local, 0, service) is answered by OKAY(local', local). Every WRTE is
// acknowledged with OKAY before the next one is sent. Either end may CLSE.
package transport
