package expect

import (
	"slices"
)

// FileExpectation is a declared push or pull of one remote path.
// Push and pull expectations share a single queue keyed by path.
type FileExpectation struct {
	outcome

	kind Kind
	path string

	content    []byte
	hasContent bool
}

// NewFileExpectation creates an expectation for a push or pull of path.
func NewFileExpectation(kind Kind, path string) *FileExpectation {
	return &FileExpectation{kind: kind, path: path}
}

// FailWith makes the matching transfer fail with message.
// The content check of a push is skipped when a failure is declared.
func (e *FileExpectation) FailWith(message string) *FileExpectation {
	e.setFailure(message)
	return e
}

// WithContent sets the bytes a pull returns, or a push must carry.
func (e *FileExpectation) WithContent(content []byte) *FileExpectation {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.content = slices.Clone(content)
	if e.content == nil {
		e.content = []byte{}
	}
	e.hasContent = true
	return e
}

// WithContentString is WithContent for UTF-8 text.
func (e *FileExpectation) WithContentString(content string) *FileExpectation {
	return e.WithContent([]byte(content))
}

// Content returns a copy of the declared content and whether any was declared.
func (e *FileExpectation) Content() ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.content), e.hasContent
}

// Kind returns KindPush or KindPull.
func (e *FileExpectation) Kind() Kind { return e.kind }

// Path returns the remote path.
func (e *FileExpectation) Path() string { return e.path }

// MatchKey implements Keyed.
func (e *FileExpectation) MatchKey() string { return e.path }

func (e *FileExpectation) String() string {
	return "expected " + e.kind.String() + " " + e.path
}
