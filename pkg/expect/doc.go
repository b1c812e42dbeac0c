// Package expect holds the declared expectations of a simulated device and
// the per-kind queues they wait in until a matching operation consumes them.
//
// Matching is first-declared-first-matched among entries with an equal key:
// several expectations may share a path or command, and each dispatch with
// that key consumes the oldest one still queued. Entries with other keys keep
// their relative order.
//
// Two error classes come out of matching and must stay distinct:
//
//   - DeviceError: the expectation declared a failure (FailWith). The
//     operation fails the way a real device-side error would.
//   - AssertionError: nothing matched, pushed content differed from the
//     declared content, or an expectation was never consumed. These are
//     test failures.
package expect
