// Package log provides structured protocol event capture for the fake ADB server.
//
// This package defines the Logger interface and Event types for recording
// what the server saw and did at each layer: raw frames on the transport,
// operations dispatched to simulated devices, and device link state changes.
// It is separate from operational logging (slog); the event trace is a
// machine-readable record of a test run for debugging failing expectations.
//
// # Basic Usage
//
//	// During development: print events via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// In CI: keep a binary trace next to the test report
//	cfg.ProtocolLogger, _ = log.NewFileLogger("run.alog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Transport: raw frame bytes (FrameEvent)
//   - Device: dispatched operations and their outcome (OperationEvent)
//   - Link: bridge connection state (StateChangeEvent)
//
// Errors at any layer have a dedicated ErrorEventData payload.
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events with integer keys.
// Use Reader with a Filter to iterate over them.
package log
