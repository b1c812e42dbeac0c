// Package scenario loads device and expectation scripts from YAML and applies
// them to a registry.
package scenario

import (
	"strconv"

	"github.com/adbfake/adbfake-go/pkg/expect"
	"gopkg.in/yaml.v3"
)

// Scenario is a named set of simulated devices and their expectations.
type Scenario struct {
	// Name identifies the scenario in reports.
	Name string `yaml:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty"`

	// Devices are registered in order.
	Devices []Device `yaml:"devices"`
}

// Device declares one simulated device.
type Device struct {
	Serial string `yaml:"serial"`

	// State defaults to "device".
	State string `yaml:"state,omitempty"`

	// Expect lists expectations in declaration order.
	Expect []Step `yaml:"expect,omitempty"`

	line int
}

// UnmarshalYAML records the line the device starts on.
func (d *Device) UnmarshalYAML(node *yaml.Node) error {
	type plain Device
	if err := node.Decode((*plain)(d)); err != nil {
		return err
	}
	d.line = node.Line
	return nil
}

// Step is one expectation. Exactly one of Push, Pull, Shell, List and Tcpip
// must be set.
type Step struct {
	Push  string `yaml:"push,omitempty"`
	Pull  string `yaml:"pull,omitempty"`
	Shell string `yaml:"shell,omitempty"`
	List  string `yaml:"list,omitempty"`
	Tcpip *int   `yaml:"tcpip,omitempty"`

	// Content is the pushed content to check, or the content a pull returns.
	Content *string `yaml:"content,omitempty"`

	// Output is the shell output.
	Output string `yaml:"output,omitempty"`

	// Entries is the listing.
	Entries []expect.RemoteFile `yaml:"entries,omitempty"`

	// Fail makes the device report this message instead of succeeding.
	Fail string `yaml:"fail,omitempty"`

	line int
}

// UnmarshalYAML records the line the step starts on.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	type plain Step
	if err := node.Decode((*plain)(s)); err != nil {
		return err
	}
	s.line = node.Line
	return nil
}

// Kind returns the operation kind the step declares, or false when it
// declares none or more than one.
func (s *Step) Kind() (expect.Kind, bool) {
	var kinds []expect.Kind
	if s.Push != "" {
		kinds = append(kinds, expect.KindPush)
	}
	if s.Pull != "" {
		kinds = append(kinds, expect.KindPull)
	}
	if s.Shell != "" {
		kinds = append(kinds, expect.KindShell)
	}
	if s.List != "" {
		kinds = append(kinds, expect.KindList)
	}
	if s.Tcpip != nil {
		kinds = append(kinds, expect.KindTcpip)
	}
	if len(kinds) != 1 {
		return 0, false
	}
	return kinds[0], true
}

// LoadError provides details about a scenario loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	loc := e.File
	if e.Line > 0 {
		if loc == "" {
			loc = "line " + strconv.Itoa(e.Line)
		} else {
			loc += ":" + strconv.Itoa(e.Line)
		}
	}
	if loc == "" {
		return msg
	}
	return loc + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
