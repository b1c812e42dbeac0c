package expect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileExpectationBuilders(t *testing.T) {
	e := NewFileExpectation(KindPull, "/sdcard/log.txt")

	_, ok := e.Content()
	assert.False(t, ok, "no content declared yet")
	_, failed := e.Failure()
	assert.False(t, failed)

	e.WithContentString("first").WithContent([]byte("second"))
	got, ok := e.Content()
	assert.True(t, ok)
	assert.Equal(t, "second", string(got), "last write wins")

	got[0] = 'X'
	again, _ := e.Content()
	assert.Equal(t, "second", string(again), "Content returns a copy")

	e.FailWith("remote object does not exist")
	msg, failed := e.Failure()
	assert.True(t, failed)
	assert.Equal(t, "remote object does not exist", msg)
	assert.Equal(t, "expected pull /sdcard/log.txt", e.String())
}

func TestFileExpectationEmptyContentIsDeclared(t *testing.T) {
	e := NewFileExpectation(KindPush, "/sdcard/empty").WithContent(nil)
	got, ok := e.Content()
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestListExpectationEntries(t *testing.T) {
	e := NewListExpectation("/sdcard").
		WithFile("a.txt", 10, 100).
		WithDir("sub", 200)

	entries := e.Entries()
	assert.Equal(t, []RemoteFile{
		{Path: "a.txt", Size: 10, ModTime: 100},
		{Path: "sub", Size: -1, ModTime: 200, Dir: true},
	}, entries)
	assert.False(t, entries[0].IsDir())
	assert.True(t, entries[1].IsDir())

	entries[0].Path = "changed"
	assert.Equal(t, "a.txt", e.Entries()[0].Path)
}

func TestShellExpectationDefaultsToEmptyOutput(t *testing.T) {
	e := NewShellExpectation("true")
	assert.NotNil(t, e.Output())
	assert.Empty(t, e.Output())
}

func TestAssertionErrorMessages(t *testing.T) {
	tests := []struct {
		err  *AssertionError
		want string
	}{
		{
			err:  &AssertionError{Serial: "emu", Kind: KindPush, Key: "/sdcard/a", Err: ErrUnexpected},
			want: "unexpected push to device emu at /sdcard/a",
		},
		{
			err:  &AssertionError{Serial: "emu", Kind: KindShell, Key: "ls", Err: ErrUnexpected},
			want: "unexpected shell to device emu : ls",
		},
		{
			err:  &AssertionError{Serial: "emu", Kind: KindTcpip, Key: "5555", Err: ErrUnexpected},
			want: "unexpected tcpip to device emu (port) 5555",
		},
		{
			err:  &AssertionError{Serial: "emu", Kind: KindList, Key: "/sdcard", Err: ErrUnmet},
			want: "device emu: expected list in dir /sdcard",
		},
		{
			err:  &AssertionError{Serial: "emu", Kind: KindPush, Key: "/a", Err: ErrContentMismatch, Detail: `want "abc", got "abX"`},
			want: `push to device emu at /a: content mismatch: want "abc", got "abX"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorClassesAreDistinct(t *testing.T) {
	var deviceErr error = &DeviceError{Serial: "emu", Kind: KindPull, Key: "/a", Message: "permission denied"}
	var assertErr error = &AssertionError{Serial: "emu", Kind: KindPull, Key: "/a", Err: ErrUnexpected}

	wrapped := fmt.Errorf("dispatch: %w", deviceErr)
	assert.True(t, IsDeviceError(wrapped))
	assert.False(t, IsAssertion(wrapped))
	assert.Equal(t, "permission denied", deviceErr.Error())

	assert.True(t, IsAssertion(assertErr))
	assert.False(t, IsDeviceError(assertErr))
	assert.True(t, errors.Is(assertErr, ErrUnexpected))
	assert.False(t, errors.Is(assertErr, ErrUnmet))
}
