package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/adbfake/adbfake-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Devices           map[string]*DeviceStats
	Connections       int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// DeviceStats counts the operations dispatched to one device by outcome.
type DeviceStats struct {
	Operations int
	ByOutcome  map[log.Outcome]int
}

// CollectStats reads every event of the log file.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Devices:           make(map[string]*DeviceStats),
	}
	conns := make(map[string]bool)

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if event.ConnectionID != "" {
			conns[event.ConnectionID] = true
		}

		if op := event.Operation; op != nil {
			ds, ok := stats.Devices[event.Serial]
			if !ok {
				ds = &DeviceStats{ByOutcome: make(map[log.Outcome]int)}
				stats.Devices[event.Serial] = ds
			}
			ds.Operations++
			ds.ByOutcome[op.Outcome]++
		}

		if event.Error != nil {
			stats.Errors++
		}
	}
	stats.Connections = len(conns)
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== adbfake Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Connections:  %d\n", stats.Connections)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerDevice, log.LayerLink} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryOperation, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.Devices) > 0 {
		serials := make([]string, 0, len(stats.Devices))
		for s := range stats.Devices {
			serials = append(serials, s)
		}
		sort.Strings(serials)

		fmt.Fprintln(w)
		fmt.Fprintf(w, "Devices: %d\n", len(serials))
		outcomes := []log.Outcome{log.OutcomeMatched, log.OutcomeForwarded, log.OutcomeDeviceFailure, log.OutcomeUnexpected, log.OutcomeMismatch}
		for _, s := range serials {
			ds := stats.Devices[s]
			fmt.Fprintf(w, "  [%s] %d operations\n", s, ds.Operations)
			for _, o := range outcomes {
				if count := ds.ByOutcome[o]; count > 0 {
					fmt.Fprintf(w, "           %-15s %d\n", o.String()+":", count)
				}
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
