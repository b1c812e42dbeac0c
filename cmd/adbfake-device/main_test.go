package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/discovery"
	"github.com/stretchr/testify/assert"
)

type recordingUpdater struct {
	updates []discovery.DeviceInfo
	err     error
}

func (u *recordingUpdater) Update(info *discovery.DeviceInfo) error {
	u.updates = append(u.updates, *info)
	return u.err
}

func TestInitialState(t *testing.T) {
	assert.Equal(t, device.StateDevice, initialState(true))
	assert.Equal(t, device.StateUnauthorized, initialState(false))
}

func TestAuthorizedUpdaterAdvertisesDeviceOnce(t *testing.T) {
	u := &recordingUpdater{}
	info := &discovery.DeviceInfo{Serial: "R58M123", State: device.StateUnauthorized, Port: 5555}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	connected := authorizedUpdater(u, info, logger)
	connected()
	connected()

	assert.Equal(t, []discovery.DeviceInfo{
		{Serial: "R58M123", State: device.StateDevice, Port: 5555},
	}, u.updates)
	assert.Equal(t, device.StateUnauthorized, info.State, "advertised info is not modified in place")
}

func TestAuthorizedUpdaterSkipsWhenAlreadyDevice(t *testing.T) {
	u := &recordingUpdater{}
	info := &discovery.DeviceInfo{Serial: "R58M123", State: device.StateDevice}

	authorizedUpdater(u, info, slog.New(slog.NewTextHandler(io.Discard, nil)))()
	assert.Empty(t, u.updates)
}

func TestAuthorizedUpdaterLogsFailure(t *testing.T) {
	u := &recordingUpdater{err: errors.New("not advertised")}
	info := &discovery.DeviceInfo{Serial: "R58M123", State: device.StateUnauthorized}

	assert.NotPanics(t, authorizedUpdater(u, info, slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Len(t, u.updates, 1)
}
