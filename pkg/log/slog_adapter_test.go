package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame:        &FrameEvent{Size: 256},
	})

	if entry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v, want %q", entry["conn_id"], "conn-123")
	}
	if entry["layer"] != "TRANSPORT" {
		t.Errorf("layer: got %v, want %q", entry["layer"], "TRANSPORT")
	}
	if entry["frame_size"] != float64(256) {
		t.Errorf("frame_size: got %v, want 256", entry["frame_size"])
	}
	if entry["level"] != "DEBUG" {
		t.Errorf("level: got %v, want DEBUG", entry["level"])
	}
}

func TestSlogAdapterRaisesUnexpectedOperations(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp: time.Now(),
		Layer:     LayerDevice,
		Category:  CategoryOperation,
		Serial:    "emulator-5554",
		Operation: &OperationEvent{
			Operation: "tcpip",
			Key:       "5555",
			Outcome:   OutcomeUnexpected,
			Detail:    "unexpected tcpip to device emulator-5554 (port) 5555",
		},
	})

	if entry["level"] != "WARN" {
		t.Errorf("level: got %v, want WARN", entry["level"])
	}
	if entry["serial"] != "emulator-5554" {
		t.Errorf("serial: got %v", entry["serial"])
	}
	if entry["outcome"] != "UNEXPECTED" {
		t.Errorf("outcome: got %v", entry["outcome"])
	}
}
