// Package registry is the fake ADB server harness: it owns the simulated
// devices, lets a test declare what each device should see, answers the
// transport's directory queries, and verifies at the end that every
// expectation was met.
//
// A typical test:
//
//	reg := registry.New(registry.Config{})
//	reg.Add("emulator-5554")
//	exp, _ := reg.ExpectShell("emulator-5554", "getprop ro.build.version.sdk")
//	exp.Returns("34\n")
//
//	// ... run the system under test against a transport.Server using reg ...
//
//	reg.Verify(t)
package registry
