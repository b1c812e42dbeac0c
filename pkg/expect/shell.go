package expect

import "slices"

// ShellExpectation is a declared command execution, matched on the exact
// command string.
type ShellExpectation struct {
	outcome

	command string
	stdout  []byte
}

// NewShellExpectation creates an expectation for command.
func NewShellExpectation(command string) *ShellExpectation {
	return &ShellExpectation{command: command}
}

// Returns sets the output the command produces.
func (e *ShellExpectation) Returns(stdout string) *ShellExpectation {
	return e.ReturnsBytes([]byte(stdout))
}

// ReturnsBytes sets raw command output.
func (e *ShellExpectation) ReturnsBytes(stdout []byte) *ShellExpectation {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stdout = slices.Clone(stdout)
	return e
}

// FailWith makes the command fail with message instead of producing output.
func (e *ShellExpectation) FailWith(message string) *ShellExpectation {
	e.setFailure(message)
	return e
}

// Output returns a copy of the declared output.
func (e *ShellExpectation) Output() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := slices.Clone(e.stdout)
	if out == nil {
		out = []byte{}
	}
	return out
}

// Command returns the expected command line.
func (e *ShellExpectation) Command() string { return e.command }

// MatchKey implements Keyed.
func (e *ShellExpectation) MatchKey() string { return e.command }

func (e *ShellExpectation) String() string {
	return "expected shell " + e.command
}
