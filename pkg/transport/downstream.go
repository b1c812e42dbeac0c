package transport

import (
	"context"

	"github.com/adbfake/adbfake-go/pkg/device"
)

// Downstream returns l as the link a bridged device forwards over.
func (l *Link) Downstream() device.Downstream {
	return linkDownstream{l}
}

type linkDownstream struct {
	link *Link
}

func (d linkDownstream) Open(ctx context.Context, service string) (device.Stream, error) {
	s, err := d.link.Open(ctx, service)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d linkDownstream) Close() error {
	return d.link.Close()
}

var _ device.Stream = (*Stream)(nil)
