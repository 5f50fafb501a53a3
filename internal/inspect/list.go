package inspect

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aqueductfluidics/aqueduct/pkg/hub"
)

// OutputFormat specifies how listings are written.
type OutputFormat string

const (
	// OutputFormatDefault uses a table with truncated values
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete hub objects as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// ListRecords writes every setpoint followed by every recordable.
func ListRecords(ctx context.Context, client *hub.Client, format OutputFormat, w io.Writer) error {
	var records []*hub.Record
	for _, class := range []hub.RecordClass{hub.ClassSetpoint, hub.ClassRecordable} {
		rs, err := client.ListRecords(ctx, class)
		if err != nil {
			return fmt.Errorf("failed to list %ss: %w", class, err)
		}
		records = append(records, rs...)
	}

	switch format {
	case OutputFormatDefault:
		FormatRecordTable(w, records, client.UserID(), time.Now())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, records); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

// ListQueries writes the session's queries. Unless all is set, dismissed
// and expired queries are left out.
func ListQueries(ctx context.Context, client *hub.Client, all bool, format OutputFormat, w io.Writer) error {
	queries, err := client.ListQueries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list queries: %w", err)
	}

	now := time.Now()
	if !all {
		active := queries[:0]
		for _, q := range queries {
			if q.Active(now) {
				active = append(active, q)
			}
		}
		queries = active
	}

	switch format {
	case OutputFormatDefault:
		FormatQueryTable(w, queries, client.UserID(), now)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, queries); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

// History writes the samples of a recordable between since and until. Zero
// times leave that end open.
func History(ctx context.Context, client *hub.Client, name string, since, until time.Time, format OutputFormat, w io.Writer) error {
	if _, err := client.GetRecord(ctx, hub.ClassRecordable, name); err != nil {
		if hub.IsNotFound(err) {
			return &RecordNotFoundError{Class: hub.ClassRecordable, Name: name}
		}
		return fmt.Errorf("failed to fetch recordable: %w", err)
	}

	samples, err := client.GetSamples(ctx, name, since, until)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}

	switch format {
	case OutputFormatDefault:
		FormatHistoryTable(w, name, samples)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, samples); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}
