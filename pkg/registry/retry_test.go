package registry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adbfake/adbfake-go/pkg/device"
	"github.com/adbfake/adbfake-go/pkg/device/mocks"
	"github.com/adbfake/adbfake-go/pkg/registry"
)

func TestBackoffGrowsToMax(t *testing.T) {
	b := registry.NewBackoff(registry.BackoffConfig{
		Initial: 10 * time.Millisecond,
		Max:     40 * time.Millisecond,
	})

	assert.Equal(t, 10*time.Millisecond, b.Next())
	assert.Equal(t, 20*time.Millisecond, b.Next())
	assert.Equal(t, 40*time.Millisecond, b.Next())
	assert.Equal(t, 40*time.Millisecond, b.Next())
	assert.Equal(t, 4, b.Attempts())

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, 10*time.Millisecond, b.Next())
}

func TestBackoffJitterBounds(t *testing.T) {
	b := registry.NewBackoff(registry.BackoffConfig{Initial: 100 * time.Millisecond, Jitter: 0.5})
	d := b.Next()
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.LessOrEqual(t, d, 150*time.Millisecond)
}

func fastBackoff() *registry.Backoff {
	return registry.NewBackoff(registry.BackoffConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond})
}

func TestConnectRetrySucceedsAfterFailures(t *testing.T) {
	link := mocks.NewMockDownstream(t)
	link.EXPECT().Close().Return(nil).Maybe()

	calls := 0
	dialer := registry.DialerFunc(func(ctx context.Context, addr string) (device.Downstream, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("unauthorized")
		}
		return link, nil
	})
	r := newRegistry(t, registry.Config{Dialer: dialer})

	ok, err := r.ConnectRetry(context.Background(), "10.0.0.5:5555", fastBackoff(), 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
	assert.True(t, r.IsDeviceConnected("10.0.0.5:5555"))
}

func TestConnectRetryGivesUp(t *testing.T) {
	dialErr := errors.New("connection refused")
	calls := 0
	dialer := registry.DialerFunc(func(ctx context.Context, addr string) (device.Downstream, error) {
		calls++
		return nil, dialErr
	})
	r := newRegistry(t, registry.Config{Dialer: dialer})

	ok, err := r.ConnectRetry(context.Background(), "10.0.0.5:5555", fastBackoff(), 3)
	assert.False(t, ok)
	assert.Same(t, dialErr, err)
	assert.Equal(t, 3, calls)
}

func TestConnectRetryStopsOnCancel(t *testing.T) {
	dialer := registry.DialerFunc(func(ctx context.Context, addr string) (device.Downstream, error) {
		return nil, errors.New("connection refused")
	})
	r := newRegistry(t, registry.Config{Dialer: dialer})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	b := registry.NewBackoff(registry.BackoffConfig{Initial: 20 * time.Millisecond})

	_, err := r.ConnectRetry(ctx, "10.0.0.5:5555", b, 0)
	assert.Error(t, err)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestConnectRetryDoesNotRetryMissingKey(t *testing.T) {
	r := newRegistry(t, registry.Config{})
	b := fastBackoff()

	_, err := r.ConnectRetry(context.Background(), "127.0.0.1:1", b, 5)
	assert.ErrorIs(t, err, registry.ErrNoKey)
	assert.Equal(t, 0, b.Attempts())
}
