package expect

import "slices"

// RemoteFile is one synthetic directory entry returned by a listing.
type RemoteFile struct {
	// Path is the entry name as the device reports it.
	Path string `json:"path" yaml:"name"`

	// Size in bytes; -1 for directories.
	Size int64 `json:"size" yaml:"size"`

	// ModTime is the modification time in Unix seconds.
	ModTime int64 `json:"mtime" yaml:"mtime"`

	// Dir is set for directories.
	Dir bool `json:"dir" yaml:"dir"`
}

// IsDir reports whether the entry is a directory.
func (f RemoteFile) IsDir() bool { return f.Dir }

// ListExpectation is a declared directory listing of one remote path.
type ListExpectation struct {
	outcome

	path    string
	entries []RemoteFile
}

// NewListExpectation creates an expectation for a listing of path.
func NewListExpectation(path string) *ListExpectation {
	return &ListExpectation{path: path}
}

// WithFile appends a regular file entry.
func (e *ListExpectation) WithFile(name string, size, modTime int64) *ListExpectation {
	return e.withEntry(RemoteFile{Path: name, Size: size, ModTime: modTime})
}

// WithDir appends a directory entry.
func (e *ListExpectation) WithDir(name string, modTime int64) *ListExpectation {
	return e.withEntry(RemoteFile{Path: name, Size: -1, ModTime: modTime, Dir: true})
}

func (e *ListExpectation) withEntry(f RemoteFile) *ListExpectation {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, f)
	return e
}

// FailWith makes the listing fail with message.
func (e *ListExpectation) FailWith(message string) *ListExpectation {
	e.setFailure(message)
	return e
}

// Entries returns a copy of the declared entries in declaration order.
func (e *ListExpectation) Entries() []RemoteFile {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := slices.Clone(e.entries)
	if out == nil {
		out = []RemoteFile{}
	}
	return out
}

// Path returns the listed directory.
func (e *ListExpectation) Path() string { return e.path }

// MatchKey implements Keyed.
func (e *ListExpectation) MatchKey() string { return e.path }

func (e *ListExpectation) String() string {
	return "expected file list " + e.path
}
