package scenario_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/adbfake/adbfake-go/internal/scenario"
	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/expect"
	"github.com/adbfake/adbfake-go/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExample(t *testing.T) {
	sc, err := scenario.Load(filepath.Join("testdata", "install.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "install flow", sc.Name)
	require.Len(t, sc.Devices, 2)
	assert.Equal(t, "emulator-5554", sc.Devices[0].Serial)
	assert.Equal(t, "unauthorized", sc.Devices[1].State)
	assert.Equal(t, 5, sc.Expectations())

	steps := sc.Devices[0].Expect
	kind, ok := steps[3].Kind()
	require.True(t, ok)
	assert.Equal(t, expect.KindTcpip, kind)
	assert.Equal(t, 5555, *steps[3].Tcpip)
	require.Len(t, steps[2].Entries, 2)
	assert.True(t, steps[2].Entries[1].Dir)
}

func TestLoadNamesScenarioAfterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.yml")
	require.NoError(t, os.WriteFile(path, []byte("devices:\n  - serial: a\n"), 0o644))

	sc, err := scenario.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", sc.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := scenario.Load(filepath.Join(t.TempDir(), "none.yaml"))
	var le *scenario.LoadError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, le.File, "none.yaml")
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		line int
		msg  string
	}{
		{
			name: "no serial",
			yaml: "devices:\n  - state: device\n",
			line: 2,
			msg:  "serial is required",
		},
		{
			name: "duplicate serial",
			yaml: "devices:\n  - serial: a\n  - serial: a\n",
			line: 3,
			msg:  `duplicate device "a"`,
		},
		{
			name: "two kinds",
			yaml: "devices:\n  - serial: a\n    expect:\n      - push: /x\n        shell: ls\n",
			line: 4,
			msg:  "exactly one",
		},
		{
			name: "no kind",
			yaml: "devices:\n  - serial: a\n    expect:\n      - output: hi\n",
			line: 4,
			msg:  "exactly one",
		},
		{
			name: "bad port",
			yaml: "devices:\n  - serial: a\n    expect:\n      - tcpip: 70000\n",
			line: 4,
			msg:  "invalid tcpip port",
		},
		{
			name: "shell with content",
			yaml: "devices:\n  - serial: a\n    expect:\n      - shell: ls\n        content: x\n",
			line: 4,
			msg:  "shell takes output",
		},
		{
			name: "push with entries",
			yaml: "devices:\n  - serial: a\n    expect:\n      - push: /x\n        entries: [{name: f}]\n",
			line: 4,
			msg:  "push takes content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scenario.Parse([]byte(tt.yaml))
			var le *scenario.LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.line, le.Line)
			assert.Contains(t, le.Error(), tt.msg)
		})
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := scenario.Parse([]byte("devices: [\n"))
	var le *scenario.LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Error(), "failed to parse YAML")
}

func TestApplyDeclaresInOrder(t *testing.T) {
	sc, err := scenario.Load(filepath.Join("testdata", "install.yaml"))
	require.NoError(t, err)

	reg := registry.New(registry.Config{})
	require.NoError(t, sc.Apply(reg))

	assert.Equal(t, []device.Info{
		{Serial: "emulator-5554", State: "device"},
		{Serial: "R58M123", State: "unauthorized"},
	}, reg.Devices())

	unmet := reg.Unmet()
	require.Len(t, unmet, 5)
	assert.Equal(t, "device emulator-5554: expected push at /sdcard/app.apk", unmet[0].Error())
	assert.Equal(t, "device emulator-5554: expected pull at /sdcard/log.txt", unmet[1].Error())

	dev, ok := reg.Lookup("emulator-5554")
	require.True(t, ok)
	ctx := context.Background()

	require.NoError(t, dev.Push(ctx, "/sdcard/app.apk", 0o644, []byte("abc")))
	out, err := dev.Shell(ctx, "pm install /sdcard/app.apk")
	require.NoError(t, err)
	assert.Equal(t, "Success\n", string(out))

	entries, err := dev.List(ctx, "/sdcard")
	require.NoError(t, err)
	assert.Equal(t, []expect.RemoteFile{
		{Path: "a.txt", Size: 10, ModTime: 100},
		{Path: "sub", Size: -1, ModTime: 200, Dir: true},
	}, entries)

	require.NoError(t, dev.Tcpip(ctx, 5555))

	_, err = dev.Pull(ctx, "/sdcard/log.txt")
	require.Error(t, err)
	assert.True(t, expect.IsDeviceError(err))
	assert.Equal(t, "remote object does not exist", err.Error())

	assert.Empty(t, reg.Unmet())
}

func TestApplyStopsOnDuplicateDevice(t *testing.T) {
	sc, err := scenario.Parse([]byte("devices:\n  - serial: a\n"))
	require.NoError(t, err)

	reg := registry.New(registry.Config{})
	require.NoError(t, reg.Add("a"))

	err = sc.Apply(reg)
	assert.ErrorIs(t, err, registry.ErrDeviceExists)
}
