// Package device provides the simulated devices a fake ADB server answers for.
//
// A Scripted device satisfies every operation from declared expectations.
// A Bridge device forwards shell commands over a live downstream link to a
// real device and matches everything else against expectations, the same
// way a Scripted device does. Both embed Expectations, which owns the queues
// and the matching rules.
package device
