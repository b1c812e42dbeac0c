package device_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/expect"
	"github.com/adbfake/adbfake-go/pkg/log"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) outcomes() []log.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Outcome
	for _, e := range r.events {
		if e.Operation != nil {
			out = append(out, e.Operation.Outcome)
		}
	}
	return out
}

func TestScriptedDefaults(t *testing.T) {
	d := device.NewScripted("emulator-5554", device.Config{})
	assert.Equal(t, "emulator-5554", d.Serial())
	assert.Equal(t, device.StateDevice, d.State())
	assert.Empty(t, d.Unmet())

	offline := device.NewScripted("emulator-5556", device.Config{State: device.StateOffline})
	assert.Equal(t, device.StateOffline, offline.State())
}

func TestPushConsumesInDeclarationOrder(t *testing.T) {
	ctx := context.Background()
	d := device.NewScripted("emu", device.Config{})

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		d.ExpectPush("/sdcard/a").WithContentString(c)
	}

	for _, c := range contents {
		require.NoError(t, d.Push(ctx, "/sdcard/a", 0644, []byte(c)))
	}

	err := d.Push(ctx, "/sdcard/a", 0644, []byte("fourth"))
	require.Error(t, err)
	assert.ErrorIs(t, err, expect.ErrUnexpected)
	assert.Empty(t, d.Unmet())
}

func TestPushContentMismatch(t *testing.T) {
	ctx := context.Background()
	logger := &recordingLogger{}
	d := device.NewScripted("emu", device.Config{Logger: logger})
	d.ExpectPush("/sdcard/a").WithContentString("abc")

	err := d.Push(ctx, "/sdcard/a", 0644, []byte("abX"))
	require.Error(t, err)
	assert.ErrorIs(t, err, expect.ErrContentMismatch)
	assert.False(t, expect.IsDeviceError(err))

	unmet := d.Unmet()
	require.Len(t, unmet, 1)
	assert.ErrorIs(t, unmet[0], expect.ErrContentMismatch)
	assert.Contains(t, unmet[0].Error(), `want "abc", got "abX"`)
	assert.Equal(t, []log.Outcome{log.OutcomeMismatch}, logger.outcomes())
}

func TestPushFailureTakesPrecedenceOverContent(t *testing.T) {
	d := device.NewScripted("emu", device.Config{})
	d.ExpectPush("/sdcard/a").WithContentString("abc").FailWith("No space left on device")

	err := d.Push(context.Background(), "/sdcard/a", 0644, []byte("abX"))

	var deviceErr *expect.DeviceError
	require.True(t, errors.As(err, &deviceErr))
	assert.Equal(t, "No space left on device", deviceErr.Error())
	assert.Empty(t, d.Unmet(), "no content assertion when a failure is declared")
}

func TestPushWithoutDeclaredContent(t *testing.T) {
	ctx := context.Background()
	d := device.NewScripted("emu", device.Config{})
	d.ExpectPush("/sdcard/empty")
	d.ExpectPush("/sdcard/a")

	require.NoError(t, d.Push(ctx, "/sdcard/empty", 0644, nil))

	err := d.Push(ctx, "/sdcard/a", 0644, []byte("anything"))
	assert.ErrorIs(t, err, expect.ErrContentMismatch)

	unmet := d.Unmet()
	require.Len(t, unmet, 1)
	assert.ErrorIs(t, unmet[0], expect.ErrContentMismatch)
	assert.Contains(t, unmet[0].Error(), `want "", got "anything"`)
}

func TestPushConsumingPullNamesDeclaredKind(t *testing.T) {
	d := device.NewScripted("emu", device.Config{})
	d.ExpectPull("/sdcard/a").WithContentString("remote")

	err := d.Push(context.Background(), "/sdcard/a", 0644, []byte("local"))

	var ae *expect.AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, expect.KindPush, ae.Kind)
	assert.Equal(t, `declared as pull: want "remote", got "local"`, ae.Detail)
}

func TestPull(t *testing.T) {
	ctx := context.Background()
	d := device.NewScripted("emu", device.Config{})
	d.ExpectPull("/sdcard/ok").WithContentString("hello")
	d.ExpectPull("/sdcard/missing").FailWith("remote object '/sdcard/missing' does not exist")

	got, err := d.Pull(ctx, "/sdcard/ok")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = d.Pull(ctx, "/sdcard/missing")
	assert.True(t, expect.IsDeviceError(err))
	assert.EqualError(t, err, "remote object '/sdcard/missing' does not exist")

	_, err = d.Pull(ctx, "/sdcard/other")
	assert.EqualError(t, err, "unexpected pull to device emu at /sdcard/other")
}

func TestUnexpectedLeavesQueuesUnchanged(t *testing.T) {
	ctx := context.Background()
	d := device.NewScripted("emu", device.Config{})
	d.ExpectPush("/sdcard/a")
	d.ExpectShell("ls")
	d.ExpectList("/sdcard")
	d.ExpectTcpip(5555)
	before := d.Pending()

	assert.ErrorIs(t, d.Push(ctx, "/sdcard/b", 0644, nil), expect.ErrUnexpected)
	_, err := d.Pull(ctx, "/sdcard/b")
	assert.ErrorIs(t, err, expect.ErrUnexpected)
	_, err = d.Shell(ctx, "ls -l")
	assert.ErrorIs(t, err, expect.ErrUnexpected)
	_, err = d.List(ctx, "/data")
	assert.ErrorIs(t, err, expect.ErrUnexpected)
	assert.ErrorIs(t, d.Tcpip(ctx, 5556), expect.ErrUnexpected)

	assert.Equal(t, before, d.Pending())
	assert.Len(t, d.Unmet(), 4)
}

func TestShell(t *testing.T) {
	ctx := context.Background()
	d := device.NewScripted("emu", device.Config{})
	d.ExpectShell("getprop ro.product.model").Returns("Pixel\n")
	d.ExpectShell("reboot").FailWith("closed")

	out, err := d.Shell(ctx, "getprop ro.product.model")
	require.NoError(t, err)
	assert.Equal(t, "Pixel\n", string(out))

	_, err = d.Shell(ctx, "reboot")
	assert.True(t, expect.IsDeviceError(err))

	_, err = d.Shell(ctx, "getprop ro.product.model")
	assert.EqualError(t, err, "unexpected shell to device emu : getprop ro.product.model")
}

func TestTcpipMatchesOnce(t *testing.T) {
	ctx := context.Background()
	d := device.NewScripted("emu", device.Config{})
	d.ExpectTcpip(5555)

	require.NoError(t, d.Tcpip(ctx, 5555))
	err := d.Tcpip(ctx, 5555)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected tcpip")
	assert.Contains(t, err.Error(), "5555")
}

func TestListReturnsDeclaredEntries(t *testing.T) {
	ctx := context.Background()
	d := device.NewScripted("emu", device.Config{})
	d.ExpectList("/sdcard").WithFile("a.txt", 10, 100).WithDir("sub", 200)

	entries, err := d.List(ctx, "/sdcard")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Path)
	assert.Equal(t, int64(10), entries[0].Size)
	assert.Equal(t, int64(100), entries[0].ModTime)
	assert.Equal(t, "sub", entries[1].Path)
	assert.Equal(t, int64(200), entries[1].ModTime)
	assert.Equal(t, []bool{false, true}, []bool{entries[0].IsDir(), entries[1].IsDir()})
}

func TestUnmetListsEveryRemainingExpectation(t *testing.T) {
	ctx := context.Background()
	d := device.NewScripted("emu", device.Config{})
	d.ExpectPush("/sdcard/a")
	d.ExpectPull("/sdcard/b")
	d.ExpectShell("ls")
	d.ExpectList("/sdcard")
	d.ExpectTcpip(5555)

	require.NoError(t, d.Push(ctx, "/sdcard/a", 0644, nil))

	unmet := d.Unmet()
	var msgs []string
	for _, u := range unmet {
		assert.ErrorIs(t, u, expect.ErrUnmet)
		msgs = append(msgs, u.Error())
	}
	assert.Equal(t, []string{
		"device emu: expected pull at /sdcard/b",
		"device emu: expected shell : ls",
		"device emu: expected list in dir /sdcard",
		"device emu: expected tcpip (port) 5555",
	}, msgs)

	assert.Len(t, d.Unmet(), 4, "Unmet does not clear")
}

func TestConcurrentDispatch(t *testing.T) {
	ctx := context.Background()
	d := device.NewScripted("emu", device.Config{})
	const n = 50
	for i := 0; i < n; i++ {
		d.ExpectShell("echo").Returns(fmt.Sprint(i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := d.Shell(ctx, "echo")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[string(out)] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n, "each expectation consumed exactly once")
	assert.Zero(t, d.Pending())
}
