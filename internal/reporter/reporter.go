// Package reporter formats verification results.
package reporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/expect"
)

// Result is the outcome of verifying a registry.
type Result struct {
	// Scenario names the run; may be empty.
	Scenario string

	// Duration is how long the server ran.
	Duration time.Duration

	// Devices are the registered devices in registration order.
	Devices []device.Info

	// Failures are the verification failures, as registry.Unmet returns them.
	Failures []*expect.AssertionError
}

// Passed reports whether there are no failures.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// DeviceResult groups the failures of one device.
type DeviceResult struct {
	Serial   string
	State    string
	Failures []*expect.AssertionError
}

// ByDevice groups failures per device, in registration order. A failure for
// a device no longer registered gets its own group at the end.
func (r *Result) ByDevice() []DeviceResult {
	out := make([]DeviceResult, 0, len(r.Devices))
	index := make(map[string]int, len(r.Devices))
	for _, d := range r.Devices {
		index[d.Serial] = len(out)
		out = append(out, DeviceResult{Serial: d.Serial, State: d.State})
	}
	for _, f := range r.Failures {
		i, ok := index[f.Serial]
		if !ok {
			i = len(out)
			index[f.Serial] = i
			out = append(out, DeviceResult{Serial: f.Serial})
		}
		out[i].Failures = append(out[i].Failures, f)
	}
	return out
}

// Reporter writes a verification result.
type Reporter interface {
	Report(result *Result)
}

// TextReporter outputs human-readable text reports.
type TextReporter struct {
	writer  io.Writer
	verbose bool
}

// NewTextReporter creates a new text reporter. In verbose mode devices
// without failures are listed too.
func NewTextReporter(w io.Writer, verbose bool) *TextReporter {
	return &TextReporter{writer: w, verbose: verbose}
}

// Report writes the result in text format.
func (r *TextReporter) Report(result *Result) {
	name := result.Scenario
	if name == "" {
		name = "adbfake"
	}
	fmt.Fprintf(r.writer, "\n=== Verification: %s ===\n", name)
	if result.Duration > 0 {
		fmt.Fprintf(r.writer, "Duration: %s\n", result.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(r.writer)

	failed := 0
	for _, dr := range result.ByDevice() {
		if len(dr.Failures) == 0 {
			if r.verbose {
				fmt.Fprintf(r.writer, "[PASS] %s (%s)\n", dr.Serial, dr.State)
			}
			continue
		}
		failed++
		fmt.Fprintf(r.writer, "[FAIL] %s (%d %s)\n", dr.Serial, len(dr.Failures), plural(len(dr.Failures), "failure"))
		for _, f := range dr.Failures {
			fmt.Fprintf(r.writer, "       %s\n", f.Error())
		}
	}

	fmt.Fprintf(r.writer, "\n--- Summary ---\n")
	fmt.Fprintf(r.writer, "Devices:  %d\n", len(result.Devices))
	fmt.Fprintf(r.writer, "Failed:   %d\n", failed)
	fmt.Fprintf(r.writer, "Failures: %d\n", len(result.Failures))
}

// JSONReporter outputs JSON-formatted reports.
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{writer: w, pretty: pretty}
}

// JSONResult is the JSON representation of a verification result.
type JSONResult struct {
	Scenario string       `json:"scenario,omitempty"`
	Duration string       `json:"duration,omitempty"`
	Passed   bool         `json:"passed"`
	Failures int          `json:"failures"`
	Devices  []JSONDevice `json:"devices"`
}

// JSONDevice is the JSON representation of one device.
type JSONDevice struct {
	Serial   string        `json:"serial"`
	State    string        `json:"state,omitempty"`
	Status   string        `json:"status"`
	Failures []JSONFailure `json:"failures,omitempty"`
}

// JSONFailure is the JSON representation of one failure.
type JSONFailure struct {
	Operation string `json:"operation"`
	Key       string `json:"key"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

// Report writes the result as one JSON document.
func (r *JSONReporter) Report(result *Result) {
	jr := JSONResult{
		Scenario: result.Scenario,
		Passed:   result.Passed(),
		Failures: len(result.Failures),
		Devices:  []JSONDevice{},
	}
	if result.Duration > 0 {
		jr.Duration = result.Duration.Round(time.Millisecond).String()
	}

	for _, dr := range result.ByDevice() {
		jd := JSONDevice{Serial: dr.Serial, State: dr.State, Status: "PASS"}
		if len(dr.Failures) > 0 {
			jd.Status = "FAIL"
		}
		for _, f := range dr.Failures {
			jd.Failures = append(jd.Failures, JSONFailure{
				Operation: f.Kind.String(),
				Key:       f.Key,
				Reason:    Reason(f),
				Message:   f.Error(),
			})
		}
		jr.Devices = append(jr.Devices, jd)
	}

	r.writeJSON(jr)
}

func (r *JSONReporter) writeJSON(v any) {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		fmt.Fprintf(r.writer, `{"error": "failed to marshal: %s"}`, err)
		return
	}

	fmt.Fprintln(r.writer, string(data))
}

// JUnitReporter outputs JUnit XML, one test case per device.
type JUnitReporter struct {
	writer io.Writer
}

// NewJUnitReporter creates a new JUnit reporter.
func NewJUnitReporter(w io.Writer) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

// Report writes the result in JUnit XML format.
func (r *JUnitReporter) Report(result *Result) {
	devices := result.ByDevice()
	failed := 0
	for _, dr := range devices {
		if len(dr.Failures) > 0 {
			failed++
		}
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")
	fmt.Fprintf(&b, `<testsuite name="%s" tests="%d" failures="%d" time="%.3f">`,
		escapeXML(result.Scenario), len(devices), failed, result.Duration.Seconds())
	b.WriteString("\n")

	for _, dr := range devices {
		fmt.Fprintf(&b, `  <testcase name="%s" classname="device">`, escapeXML(dr.Serial))
		b.WriteString("\n")
		if len(dr.Failures) > 0 {
			fmt.Fprintf(&b, `    <failure message="%s">`, escapeXML(dr.Failures[0].Error()))
			b.WriteString("\n      <![CDATA[")
			for _, f := range dr.Failures {
				b.WriteString(f.Error())
				b.WriteString("\n")
			}
			b.WriteString("]]>\n    </failure>\n")
		}
		b.WriteString("  </testcase>\n")
	}
	b.WriteString("</testsuite>\n")

	fmt.Fprint(r.writer, b.String())
}

// Reason names the class of an assertion failure: "unexpected", "mismatch" or "unmet".
func Reason(err *expect.AssertionError) string {
	switch {
	case errors.Is(err, expect.ErrUnexpected):
		return "unexpected"
	case errors.Is(err, expect.ErrContentMismatch):
		return "mismatch"
	case errors.Is(err, expect.ErrUnmet):
		return "unmet"
	default:
		return "unknown"
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
