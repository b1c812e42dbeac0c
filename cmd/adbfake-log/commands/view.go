// Package commands implements the adbfake-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/adbfake/adbfake-go/pkg/log"
)

// timeFormat is the timestamp layout of view and export.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Serial    string
	Outcome   *log.Outcome
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
		Serial:    f.Serial,
		Outcome:   f.Outcome,
	}
}

// eventType names the payload an event carries.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Operation != nil:
		return "Op:" + event.Operation.Operation
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(timeFormat)
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s", ts, shortenConnID(event.ConnectionID),
		event.Direction.String(), event.Layer.String(), eventType(event))
	if event.Serial != "" {
		fmt.Fprintf(w, " device=%s", event.Serial)
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Operation != nil:
		formatOperationDetails(w, event.Operation)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatOperationDetails(w io.Writer, op *log.OperationEvent) {
	fmt.Fprintf(w, "  Key: %s\n", op.Key)
	fmt.Fprintf(w, "  Outcome: %s\n", op.Outcome.String())
	if op.Size > 0 {
		fmt.Fprintf(w, "  Size: %d\n", op.Size)
	}
	if op.Detail != "" {
		fmt.Fprintf(w, "  Detail: %s\n", op.Detail)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "device":
		return log.LayerDevice, nil
	case "link":
		return log.LayerLink, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, device, or link)", s)
	}
}

// ParseDirectionFlag parses a direction string (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "operation":
		return log.CategoryOperation, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, operation, state, or error)", s)
	}
}

// ParseOutcomeFlag parses an operation outcome (case-insensitive).
func ParseOutcomeFlag(s string) (log.Outcome, error) {
	switch strings.ToLower(s) {
	case "matched":
		return log.OutcomeMatched, nil
	case "device_failure", "failure":
		return log.OutcomeDeviceFailure, nil
	case "unexpected":
		return log.OutcomeUnexpected, nil
	case "mismatch":
		return log.OutcomeMismatch, nil
	case "forwarded":
		return log.OutcomeForwarded, nil
	default:
		return 0, fmt.Errorf("invalid outcome: %s (must be matched, failure, unexpected, mismatch, or forwarded)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
