package main

import (
	"bytes"
	"context"
	"crypto/rsa"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adbfake/adbfake-go/pkg/adbkey"
	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/registry"
	"github.com/adbfake/adbfake-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellRespond(t *testing.T) {
	sh := &Shell{Responses: map[string]string{"getprop ro.serialno": "R58M\n"}}

	assert.Equal(t, "R58M\n"+DefaultPrompt, string(sh.Respond("getprop ro.serialno\n")))
	assert.Equal(t, "/system/bin/sh: frob: inaccessible or not found\n"+DefaultPrompt,
		string(sh.Respond("frob --all\r\n")))

	sh.Prompt = "# "
	assert.Equal(t, "R58M\n# ", string(sh.Respond("getprop ro.serialno")))
}

func TestLoadResponses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.yaml")
	require.NoError(t, os.WriteFile(path, []byte("\"echo hi\": \"hi\\n\"\nid: \"uid=2000(shell)\\n\"\n"), 0o644))

	responses, err := LoadResponses(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"echo hi": "hi\n", "id": "uid=2000(shell)\n"}, responses)

	_, err = LoadResponses(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadAuthorizedKeys(t *testing.T) {
	key, err := adbkey.Generate()
	require.NoError(t, err)

	dir := t.TempDir()
	priv, pub := filepath.Join(dir, "adbkey"), filepath.Join(dir, "adbkey.pub")
	require.NoError(t, key.Save(priv, pub))

	keys, err := loadAuthorizedKeys([]string{pub})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, key.Public().Equal(keys[0]))

	_, err = loadAuthorizedKeys([]string{priv})
	assert.Error(t, err)
}

func TestShellServesBridge(t *testing.T) {
	key, err := adbkey.Generate()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connected := make(chan struct{}, 1)
	sh := &Shell{
		Responses:     map[string]string{"id": "uid=2000(shell)\n"},
		HostConnected: func() { connected <- struct{}{} },
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go sh.Serve(ctx, ln, transport.LinkConfig{AuthorizedKeys: []*rsa.PublicKey{key.Public()}}, logger)

	reg := registry.New(registry.Config{KeyPair: key, ReadTimeout: 2 * time.Second})
	t.Cleanup(func() { reg.Close() })

	ok, err := reg.OnDeviceConnect(ctx, ln.Addr().String())
	require.NoError(t, err)
	require.True(t, ok)

	dev, found := reg.Lookup(ln.Addr().String())
	require.True(t, found)
	out, err := dev.Shell(ctx, "id")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("uid=2000(shell)\n")))
	assert.True(t, bytes.HasSuffix(out, []byte(DefaultPrompt)))

	select {
	case <-connected:
	case <-ctx.Done():
		t.Fatal("HostConnected was not called")
	}
}

func TestShellIgnoresOtherServices(t *testing.T) {
	key, err := adbkey.Generate()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sh := &Shell{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go sh.Serve(ctx, ln, transport.LinkConfig{SkipAuth: true}, logger)

	link, err := transport.DialLink(ctx, ln.Addr().String(), key, transport.LinkConfig{})
	require.NoError(t, err)
	defer link.Close()

	stream, err := link.Open(ctx, "sync:")
	require.NoError(t, err)
	_, err = stream.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)

	stream, err = link.Open(ctx, device.ShellService)
	require.NoError(t, err)
	require.NoError(t, stream.Write(ctx, []byte("id\n")))
	out, err := stream.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(out), "inaccessible or not found")
}
