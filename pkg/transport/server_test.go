package transport_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/expect"
	"github.com/adbfake/adbfake-go/pkg/transport"
)

// fakeDirectory is a minimal Directory over scripted devices.
type fakeDirectory struct {
	mu         sync.Mutex
	devices    []*device.Scripted
	connectErr error
	connected  []string
}

func (d *fakeDirectory) add(serial string) *device.Scripted {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := device.NewScripted(serial, device.Config{})
	d.devices = append(d.devices, s)
	return s
}

func (d *fakeDirectory) Version() int { return 31 }

func (d *fakeDirectory) Devices() []device.Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]device.Info, 0, len(d.devices))
	for _, s := range d.devices {
		out = append(out, device.Info{Serial: s.Serial(), State: s.State()})
	}
	return out
}

func (d *fakeDirectory) IsDeviceConnected(serial string) bool {
	_, ok := d.Lookup(serial)
	return ok
}

func (d *fakeDirectory) OnDeviceConnect(ctx context.Context, serial string) (bool, error) {
	if d.connectErr != nil {
		return false, d.connectErr
	}
	if !strings.Contains(serial, ":") {
		return false, nil
	}
	d.add(serial)
	d.mu.Lock()
	d.connected = append(d.connected, serial)
	d.mu.Unlock()
	return true, nil
}

func (d *fakeDirectory) Lookup(serial string) (device.Responder, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.devices {
		if s.Serial() == serial {
			return s, true
		}
	}
	return nil, false
}

func startServer(t *testing.T, dir transport.Directory) *transport.Client {
	t.Helper()

	server, err := transport.NewServer(transport.ServerConfig{
		Address:   "127.0.0.1:0",
		Directory: dir,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := transport.Dial(ctx, server.Addr().String(), transport.ClientConfig{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewServerRequiresDirectory(t *testing.T) {
	if _, err := transport.NewServer(transport.ServerConfig{}); err == nil {
		t.Error("expected error without Directory")
	}
}

func TestServerVersionAndDevices(t *testing.T) {
	dir := &fakeDirectory{}
	dir.add("emulator-5554")
	dir.add("emulator-5556")
	client := startServer(t, dir)
	ctx := testCtx(t)

	v, err := client.Version(ctx)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if v != 31 {
		t.Errorf("Version = %d, want 31", v)
	}

	devices, err := client.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	if len(devices) != 2 || devices[0].Serial != "emulator-5554" || devices[1].State != device.StateDevice {
		t.Errorf("Devices = %+v", devices)
	}
}

func TestServerDispatch(t *testing.T) {
	dir := &fakeDirectory{}
	dev := dir.add("emulator-5554")
	dev.ExpectPush("/sdcard/a.txt").WithContentString("hello")
	dev.ExpectPull("/sdcard/b.txt").WithContentString("world")
	dev.ExpectShell("ls /sdcard").Returns("a.txt\nb.txt\n")
	dev.ExpectList("/sdcard").WithFile("a.txt", 5, 1700000000).WithDir("sub", 1700000001)
	dev.ExpectTcpip(5555)

	client := startServer(t, dir)
	ctx := testCtx(t)

	if err := client.Push(ctx, "emulator-5554", "/sdcard/a.txt", 0o644, []byte("hello")); err != nil {
		t.Errorf("Push failed: %v", err)
	}

	data, err := client.Pull(ctx, "emulator-5554", "/sdcard/b.txt")
	if err != nil {
		t.Errorf("Pull failed: %v", err)
	} else if string(data) != "world" {
		t.Errorf("Pull = %q, want world", data)
	}

	out, err := client.Shell(ctx, "emulator-5554", "ls /sdcard")
	if err != nil {
		t.Errorf("Shell failed: %v", err)
	} else if string(out) != "a.txt\nb.txt\n" {
		t.Errorf("Shell = %q", out)
	}

	entries, err := client.List(ctx, "emulator-5554", "/sdcard")
	if err != nil {
		t.Errorf("List failed: %v", err)
	} else {
		if len(entries) != 2 {
			t.Fatalf("List returned %d entries, want 2", len(entries))
		}
		if entries[0].Path != "a.txt" || entries[0].Size != 5 || entries[0].ModTime != 1700000000 {
			t.Errorf("entry 0 = %+v", entries[0])
		}
		if !entries[1].IsDir() || entries[1].Size != -1 {
			t.Errorf("entry 1 = %+v", entries[1])
		}
	}

	if err := client.Tcpip(ctx, "emulator-5554", 5555); err != nil {
		t.Errorf("Tcpip failed: %v", err)
	}

	if unmet := dev.Unmet(); len(unmet) != 0 {
		t.Errorf("Unmet = %v", unmet)
	}
}

func TestServerKeepsErrorClassesApart(t *testing.T) {
	dir := &fakeDirectory{}
	dev := dir.add("emulator-5554")
	dev.ExpectPull("/missing").FailWith("remote object '/missing' does not exist")
	dev.ExpectPush("/checked").WithContentString("expected")

	client := startServer(t, dir)
	ctx := testCtx(t)

	t.Run("device failure", func(t *testing.T) {
		_, err := client.Pull(ctx, "emulator-5554", "/missing")
		var de *expect.DeviceError
		if !errors.As(err, &de) {
			t.Fatalf("got %T %v, want *expect.DeviceError", err, err)
		}
		if de.Message != "remote object '/missing' does not exist" {
			t.Errorf("Message = %q", de.Message)
		}
		if err.Error() != de.Message {
			t.Errorf("Error() = %q, want the declared message verbatim", err.Error())
		}
	})

	t.Run("unexpected", func(t *testing.T) {
		_, err := client.Shell(ctx, "emulator-5554", "reboot")
		var ae *expect.AssertionError
		if !errors.As(err, &ae) {
			t.Fatalf("got %T %v, want *expect.AssertionError", err, err)
		}
		if !errors.Is(err, expect.ErrUnexpected) {
			t.Errorf("got %v, want ErrUnexpected", err)
		}
		if ae.Kind != expect.KindShell || ae.Key != "reboot" || ae.Serial != "emulator-5554" {
			t.Errorf("assertion = %+v", ae)
		}
	})

	t.Run("content mismatch", func(t *testing.T) {
		err := client.Push(ctx, "emulator-5554", "/checked", 0o644, []byte("different"))
		if !errors.Is(err, expect.ErrContentMismatch) {
			t.Fatalf("got %v, want ErrContentMismatch", err)
		}
		var ae *expect.AssertionError
		errors.As(err, &ae)
		if ae.Detail == "" {
			t.Error("mismatch detail was not carried")
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		err := client.Tcpip(ctx, "nope", 5555)
		if !errors.Is(err, transport.ErrDeviceNotFound) {
			t.Errorf("got %v, want ErrDeviceNotFound", err)
		}
	})
}

func TestServerConnect(t *testing.T) {
	dir := &fakeDirectory{}
	client := startServer(t, dir)
	ctx := testCtx(t)

	added, err := client.Connect(ctx, "192.168.1.20:5555")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !added {
		t.Error("Connect reported no device added")
	}
	if !dir.IsDeviceConnected("192.168.1.20:5555") {
		t.Error("device not registered")
	}

	added, err = client.Connect(ctx, "not-an-address")
	if err != nil || added {
		t.Errorf("Connect(non host:port) = %v, %v; want false, nil", added, err)
	}

	dir.connectErr = errors.New("connection refused")
	_, err = client.Connect(ctx, "10.0.0.1:5555")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("got %v, want the dial error", err)
	}
}

func TestServerBadRequest(t *testing.T) {
	dir := &fakeDirectory{}
	dir.add("s")
	client := startServer(t, dir)

	err := client.Tcpip(testCtx(t), "s", 0)
	if err == nil {
		t.Fatal("expected error for port 0")
	}
}

func TestServerLargePush(t *testing.T) {
	dir := &fakeDirectory{}
	dev := dir.add("emulator-5554")
	content := bytes.Repeat([]byte{0xAB}, 4*1024*1024)
	dev.ExpectPush("/big.bin").WithContent(content)

	client := startServer(t, dir)
	if err := client.Push(testCtx(t), "emulator-5554", "/big.bin", 0o644, content); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
}

func TestServerConcurrentClients(t *testing.T) {
	dir := &fakeDirectory{}
	dev := dir.add("emulator-5554")
	const n = 8
	for i := 0; i < n; i++ {
		dev.ExpectShell(fmt.Sprintf("echo %d", i)).Returns(fmt.Sprintf("%d\n", i))
	}

	server, err := transport.NewServer(transport.ServerConfig{Address: "127.0.0.1:0", Directory: dir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := testCtx(t)
			c, err := transport.Dial(ctx, server.Addr().String(), transport.ClientConfig{})
			if err != nil {
				errs <- err
				return
			}
			defer c.Close()
			out, err := c.Shell(ctx, "emulator-5554", fmt.Sprintf("echo %d", i))
			if err != nil {
				errs <- err
				return
			}
			if string(out) != fmt.Sprintf("%d\n", i) {
				errs <- fmt.Errorf("echo %d returned %q", i, out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if dev.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", dev.Pending())
	}
}

func TestServerStopClosesClients(t *testing.T) {
	dir := &fakeDirectory{}
	server, err := transport.NewServer(transport.ServerConfig{Address: "127.0.0.1:0", Directory: dir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx := testCtx(t)
	client, err := transport.Dial(ctx, server.Addr().String(), transport.ClientConfig{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()
	if _, err := client.Version(ctx); err != nil {
		t.Fatalf("Version failed: %v", err)
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if server.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount = %d after Stop", server.ConnectionCount())
	}
	if _, err := client.Version(ctx); err == nil {
		t.Error("expected error after server stopped")
	}
}
