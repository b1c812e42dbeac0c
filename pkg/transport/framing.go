package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/adbfake/adbfake-go/pkg/log"
	"github.com/adbfake/adbfake-go/pkg/wire"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize leaves room for the CBOR envelope around a
	// maximum-size payload.
	DefaultMaxMessageSize = wire.MaxPayloadSize + 4096

	// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	// ErrMessageTooLarge indicates the message exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates an empty message.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrFrameTruncated indicates the frame was truncated.
	ErrFrameTruncated = errors.New("frame truncated")
)

// Framer reads and writes length-prefixed frames on one stream.
// WriteFrame may be called from several goroutines; ReadFrame may not.
type Framer struct {
	rw             io.ReadWriter
	maxMessageSize uint32
	lengthBuf      [LengthPrefixSize]byte

	writeMu sync.Mutex

	logger log.Logger
	connID string
	layer  log.Layer
}

// NewFramer creates a framer with the default maximum message size.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, DefaultMaxMessageSize)
}

// NewFramerWithMaxSize creates a framer with a custom max message size.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{
		rw:             rw,
		maxMessageSize: maxSize,
		logger:         log.NoopLogger{},
		layer:          log.LayerTransport,
	}
}

// SetLogger configures frame logging. Pass nil to disable it.
func (f *Framer) SetLogger(logger log.Logger, connID string, layer log.Layer) {
	f.logger = log.OrNoop(logger)
	f.connID = connID
	f.layer = layer
}

// WriteFrame writes data as one length-prefixed frame.
func (f *Framer) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if uint64(len(data)) > uint64(f.maxMessageSize) {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), f.maxMessageSize)
	}

	frame := make([]byte, LengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[LengthPrefixSize:], data)

	f.writeMu.Lock()
	_, err := f.rw.Write(frame)
	f.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	f.logger.Log(f.frameEvent(data, log.DirectionOut))
	return nil
}

// ReadFrame reads one frame and returns its payload.
func (f *Framer) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.rw, f.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(f.lengthBuf[:])
	if length == 0 {
		return nil, ErrMessageEmpty
	}
	if length > f.maxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length, f.maxMessageSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(f.rw, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	f.logger.Log(f.frameEvent(payload, log.DirectionIn))
	return payload, nil
}

func (f *Framer) frameEvent(data []byte, direction log.Direction) log.Event {
	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: f.connID,
		Direction:    direction,
		Layer:        f.layer,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      LengthPrefixSize + len(data),
			Data:      frameData,
			Truncated: truncated,
		},
	}
}

// FrameSize returns the total frame size including the length prefix.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}
