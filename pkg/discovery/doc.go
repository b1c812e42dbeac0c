// Package discovery implements mDNS/DNS-SD discovery of networked ADB
// devices.
//
// Devices reachable over the network are advertised as _adb-tls-connect._tcp
// services, one instance per device serial. TXT records carry:
//   - serial: the device serial
//   - state:  the connection state ("device", "offline", ...)
//   - v:      the TXT format version
//
// The fake server can advertise the devices it simulates (Advertiser) and
// find real ones to bridge (Browser).
package discovery
