package device

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adbfake/adbfake-go/pkg/expect"
	"github.com/adbfake/adbfake-go/pkg/log"
)

// ShellService is the service name a bridged shell stream is opened with.
const ShellService = "shell:"

// promptMarkers end the output of a bridged shell command.
var promptMarkers = [][]byte{[]byte("$ "), []byte("# ")}

// Downstream is a live connection to a real device.
type Downstream interface {
	// Open opens a stream to a device service.
	Open(ctx context.Context, service string) (Stream, error)

	// Close tears down the connection.
	Close() error
}

// Stream is one service stream on a Downstream.
type Stream interface {
	// Write sends data to the device side of the stream.
	Write(ctx context.Context, p []byte) error

	// Read blocks until the next chunk arrives, the stream closes, or ctx ends.
	Read(ctx context.Context) ([]byte, error)

	// Close closes the stream.
	Close() error
}

// Bridge is a device that forwards shell commands to a real device over a
// Downstream. Every other operation is matched against expectations.
// There is no reconnection: once the link fails, shell fails for good.
type Bridge struct {
	*Expectations

	link        Downstream
	readTimeout time.Duration
}

// NewBridge creates a bridged device on an established link.
func NewBridge(serial string, link Downstream, cfg Config) *Bridge {
	cfg = cfg.withDefaults()
	return &Bridge{
		Expectations: newExpectations(serial, cfg),
		link:         link,
		readTimeout:  cfg.ReadTimeout,
	}
}

// Shell forwards command over a new shell stream and returns everything the
// device writes back, up to and including the first chunk that ends the
// accumulated output with a "$ " or "# " prompt.
func (b *Bridge) Shell(ctx context.Context, command string) ([]byte, error) {
	if b.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.readTimeout)
		defer cancel()
	}

	stream, err := b.link.Open(ctx, ShellService)
	if err != nil {
		return nil, fmt.Errorf("open shell on %s: %w", b.serial, err)
	}
	defer stream.Close()

	line := command
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if err := stream.Write(ctx, []byte(line)); err != nil {
		return nil, fmt.Errorf("write shell command on %s: %w", b.serial, err)
	}

	var out bytes.Buffer
	for {
		chunk, err := stream.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("read shell output on %s: %w", b.serial, err)
		}
		out.Write(chunk)
		if endsWithPrompt(out.Bytes()) {
			break
		}
	}

	b.logOp(expect.KindShell, command, log.OutcomeForwarded, out.Len(), "")
	return out.Bytes(), nil
}

// Close closes the downstream link.
func (b *Bridge) Close() error {
	return b.link.Close()
}

func endsWithPrompt(b []byte) bool {
	for _, m := range promptMarkers {
		if bytes.HasSuffix(b, m) {
			return true
		}
	}
	return false
}
