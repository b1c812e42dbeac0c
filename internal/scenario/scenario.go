package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adbfake/adbfake-go/pkg/expect"
	"gopkg.in/yaml.v3"
)

// Target is what a scenario is applied to. *registry.Registry implements it.
type Target interface {
	Add(serial string, state ...string) error
	ExpectPush(serial, path string) (*expect.FileExpectation, error)
	ExpectPull(serial, path string) (*expect.FileExpectation, error)
	ExpectShell(serial, command string) (*expect.ShellExpectation, error)
	ExpectList(serial, path string) (*expect.ListExpectation, error)
	ExpectTcpip(serial string, port int) error
}

// Parse parses and validates a scenario from YAML bytes.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load loads a scenario from a file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	sc, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Validate checks that every device has a unique serial and every step
// declares exactly one operation.
func (sc *Scenario) Validate() error {
	seen := make(map[string]bool, len(sc.Devices))
	for _, d := range sc.Devices {
		if d.Serial == "" {
			return &LoadError{Line: d.line, Message: "device serial is required"}
		}
		if seen[d.Serial] {
			return &LoadError{Line: d.line, Message: fmt.Sprintf("duplicate device %q", d.Serial)}
		}
		seen[d.Serial] = true

		for _, s := range d.Expect {
			if err := s.validate(); err != nil {
				return &LoadError{Line: s.line, Message: fmt.Sprintf("device %s: %s", d.Serial, err)}
			}
		}
	}
	return nil
}

func (s *Step) validate() error {
	kind, ok := s.Kind()
	if !ok {
		return errors.New("expectation must name exactly one of push, pull, shell, list, tcpip")
	}
	switch kind {
	case expect.KindTcpip:
		if *s.Tcpip <= 0 || *s.Tcpip > 65535 {
			return fmt.Errorf("invalid tcpip port %d", *s.Tcpip)
		}
		if s.Fail != "" {
			return errors.New("tcpip cannot fail")
		}
	case expect.KindShell:
		if s.Content != nil || len(s.Entries) > 0 {
			return errors.New("shell takes output, not content or entries")
		}
	case expect.KindList:
		if s.Content != nil || s.Output != "" {
			return errors.New("list takes entries, not content or output")
		}
	default:
		if s.Output != "" || len(s.Entries) > 0 {
			return fmt.Errorf("%s takes content, not output or entries", kind)
		}
	}
	return nil
}

// Apply registers every device and declares its expectations in order.
// It stops at the first error.
func (sc *Scenario) Apply(t Target) error {
	for _, d := range sc.Devices {
		var states []string
		if d.State != "" {
			states = append(states, d.State)
		}
		if err := t.Add(d.Serial, states...); err != nil {
			return fmt.Errorf("add %s: %w", d.Serial, err)
		}
		for _, s := range d.Expect {
			if err := s.apply(t, d.Serial); err != nil {
				return fmt.Errorf("device %s: %w", d.Serial, err)
			}
		}
	}
	return nil
}

func (s *Step) apply(t Target, serial string) error {
	kind, _ := s.Kind()
	switch kind {
	case expect.KindPush, expect.KindPull:
		declare, path := t.ExpectPush, s.Push
		if kind == expect.KindPull {
			declare, path = t.ExpectPull, s.Pull
		}
		e, err := declare(serial, path)
		if err != nil {
			return err
		}
		if s.Content != nil {
			e.WithContentString(*s.Content)
		}
		if s.Fail != "" {
			e.FailWith(s.Fail)
		}

	case expect.KindShell:
		e, err := t.ExpectShell(serial, s.Shell)
		if err != nil {
			return err
		}
		e.Returns(s.Output)
		if s.Fail != "" {
			e.FailWith(s.Fail)
		}

	case expect.KindList:
		e, err := t.ExpectList(serial, s.List)
		if err != nil {
			return err
		}
		for _, f := range s.Entries {
			if f.Dir {
				e.WithDir(f.Path, f.ModTime)
			} else {
				e.WithFile(f.Path, f.Size, f.ModTime)
			}
		}
		if s.Fail != "" {
			e.FailWith(s.Fail)
		}

	case expect.KindTcpip:
		return t.ExpectTcpip(serial, *s.Tcpip)
	}
	return nil
}

// Expectations returns the number of declared expectations across devices.
func (sc *Scenario) Expectations() int {
	n := 0
	for _, d := range sc.Devices {
		n += len(d.Expect)
	}
	return n
}
