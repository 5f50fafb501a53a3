package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aqueductfluidics/aqueduct/internal/printer"
	"github.com/aqueductfluidics/aqueduct/pkg/hub"
)

// OutputFormat selects how StreamActivity renders events.
type OutputFormat string

const (
	// OutputFormatDefault prints one human-readable line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON prints line-delimited JSON
	OutputFormatJSON OutputFormat = "json"
)

// formatter renders hub events to a writer.
type formatter interface {
	FormatRecord(e *hub.RecordEvent) error
	FormatQuery(e *hub.QueryEvent) error
}

// StreamActivity subscribes to the session's record and query channels and
// writes every event to w until ctx is cancelled. Malformed events are
// reported as warnings and skipped.
func StreamActivity(ctx context.Context, client *hub.Client, format OutputFormat, w io.Writer) error {
	var f formatter
	switch format {
	case OutputFormatDefault:
		f = &defaultFormatter{writer: w}
	case OutputFormatJSON:
		f = &jsonFormatter{writer: w}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	records, err := client.SubscribeRecordEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to record events: %w", err)
	}
	defer records.Close()

	queries, err := client.SubscribeQueryEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to query events: %w", err)
	}
	defer queries.Close()

	if format == OutputFormatDefault {
		fmt.Fprintf(w, "Watching session of user '%s' (Ctrl+C to stop)...\n", client.UserID())
	}

	recordEvents, queryEvents := records.Events(), queries.Events()
	recordErrs, queryErrs := records.Errors(), queries.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-recordEvents:
			if !ok {
				return nil
			}
			if err := f.FormatRecord(e); err != nil {
				return err
			}

		case e, ok := <-queryEvents:
			if !ok {
				return nil
			}
			if err := f.FormatQuery(e); err != nil {
				return err
			}

		case err, ok := <-recordErrs:
			if !ok {
				recordErrs = nil
				continue
			}
			printer.Warning("%v\n", err)

		case err, ok := <-queryErrs:
			if !ok {
				queryErrs = nil
				continue
			}
			printer.Warning("%v\n", err)
		}
	}
}

// defaultFormatter writes "[15:04:05] <icon> <text>" lines.
type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatRecord(e *hub.RecordEvent) error {
	var line string
	switch e.Type {
	case hub.EventPut:
		if e.Record == nil {
			return nil
		}
		line = fmt.Sprintf("📈 %s %s = %s (%s, v%d)",
			title(string(e.Class)), e.Name, compact(e.Record.Value), e.Record.Kind, e.Record.Version)
	case hub.EventRemoved:
		line = fmt.Sprintf("🗑️  %s removed: %s", title(string(e.Class)), e.Name)
	default:
		line = fmt.Sprintf("❔ %s event %q: %s", e.Class, e.Type, e.Name)
	}
	return f.write(line)
}

func (f *defaultFormatter) FormatQuery(e *hub.QueryEvent) error {
	var line string
	switch e.Type {
	case hub.EventPut:
		if e.Query == nil {
			return nil
		}
		icon := "💬"
		if e.Query.Type == hub.QueryInput {
			icon = "📝"
		}
		line = fmt.Sprintf("%s %s waiting: id=%s %q", icon, title(string(e.Query.Type)), e.ID, e.Query.Message)
		if e.Query.TimeoutMs > 0 {
			line += fmt.Sprintf(" (timeout %v)", time.Duration(e.Query.TimeoutMs)*time.Millisecond)
		}
	case hub.EventResolved:
		line = fmt.Sprintf("✅ Query resolved: id=%s", e.ID)
		if e.Query != nil && len(e.Query.Value) > 0 {
			line += " value=" + compact(e.Query.Value)
		}
	case hub.EventRemoved:
		line = fmt.Sprintf("🗑️  Query removed: id=%s", e.ID)
	default:
		line = fmt.Sprintf("❔ Query event %q: id=%s", e.Type, e.ID)
	}
	return f.write(line)
}

func (f *defaultFormatter) write(line string) error {
	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", time.Now().Format("15:04:05"), line)
	return err
}

// jsonFormatter writes one JSON object per event.
type jsonFormatter struct {
	writer io.Writer
}

type jsonEvent struct {
	Stream      string      `json:"stream"` // record or query
	TimestampMs int64       `json:"timestamp_ms"`
	Event       interface{} `json:"event"`
}

func (f *jsonFormatter) FormatRecord(e *hub.RecordEvent) error {
	return f.write("record", e)
}

func (f *jsonFormatter) FormatQuery(e *hub.QueryEvent) error {
	return f.write("query", e)
}

func (f *jsonFormatter) write(stream string, event interface{}) error {
	data, err := json.Marshal(jsonEvent{Stream: stream, TimestampMs: time.Now().UnixMilli(), Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", stream, err)
	}
	_, err = fmt.Fprintf(f.writer, "%s\n", data)
	return err
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
