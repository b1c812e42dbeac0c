//go:build tools

package tools

// mockery is used as an installed binary (not via go run), so no import is
// needed here. Run: mockery (from the module root) to regenerate
// pkg/device/mocks after changing Downstream or Stream.
