package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aqueductfluidics/aqueduct/pkg/hub"
)

// FormatRecordTable writes setpoints and recordables as a table. Columns are
// CLASS, NAME, KIND, VER, AGE and VALUE (truncated). Returns the number of
// rows written.
func FormatRecordTable(w io.Writer, records []*hub.Record, userID string, now time.Time) int {
	if len(records) == 0 {
		fmt.Fprintf(w, "No setpoints or recordables found for user '%s'\n", userID)
		return 0
	}

	fmt.Fprintf(w, "Records for user '%s':\n\n", userID)

	fmt.Fprintf(w, "%-10s %-24s %-8s %-5s %-8s %s\n",
		"CLASS", "NAME", "KIND", "VER", "AGE", "VALUE")
	fmt.Fprintf(w, "%-10s %-24s %-8s %-5s %-8s %s\n",
		"----------", "------------------------", "--------", "-----", "--------", "----------------------------------------")

	for _, r := range records {
		fmt.Fprintf(w, "%-10s %-24s %-8s %-5s %-8s %s\n",
			r.Class,
			truncate(r.Name, 24),
			r.Kind,
			formatVersion(r.Version),
			formatAge(r.TimestampMs, now),
			formatValue(r.Value),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(records), plural(len(records), "record"))
	return len(records)
}

// FormatQueryTable writes prompts and inputs as a table with their state at
// now.
func FormatQueryTable(w io.Writer, queries []*hub.Query, userID string, now time.Time) int {
	if len(queries) == 0 {
		fmt.Fprintf(w, "No queries found for user '%s'\n", userID)
		return 0
	}

	fmt.Fprintf(w, "Queries for user '%s':\n\n", userID)

	fmt.Fprintf(w, "%-10s %-7s %-10s %-10s %-8s %s\n",
		"ID", "TYPE", "STATE", "INPUT", "AGE", "MESSAGE")
	fmt.Fprintf(w, "%-10s %-7s %-10s %-10s %-8s %s\n",
		"----------", "-------", "----------", "----------", "--------", "----------------------------------------")

	for _, q := range queries {
		fmt.Fprintf(w, "%-10s %-7s %-10s %-10s %-8s %s\n",
			formatID(q.ID),
			q.Type,
			QueryState(q, now),
			dash(q.InputType),
			formatAge(q.StartMs, now),
			truncate(firstLine(q.Message), 40),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(queries), plural(len(queries), "query"))
	return len(queries)
}

// FormatHistoryTable writes a recordable's samples oldest first, with
// absolute timestamps.
func FormatHistoryTable(w io.Writer, name string, samples []hub.Sample) int {
	if len(samples) == 0 {
		fmt.Fprintf(w, "No samples found for recordable '%s'\n", name)
		return 0
	}

	fmt.Fprintf(w, "History of '%s':\n\n", name)
	fmt.Fprintf(w, "%-24s %-6s %s\n", "TIMESTAMP", "VER", "VALUE")
	fmt.Fprintf(w, "%-24s %-6s %s\n", "------------------------", "------", "----------------------------------------")

	for _, s := range samples {
		fmt.Fprintf(w, "%-24s %-6d %s\n",
			s.Time().UTC().Format("2006-01-02T15:04:05.000Z"),
			s.Version,
			formatValue(s.Value),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(samples), plural(len(samples), "sample"))
	return len(samples)
}

// FormatJSONL writes items as line-delimited JSON, one object per line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal %T to JSON: %w", item, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes v as pretty-printed JSON followed by a newline.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// QueryState names where a query stands at now: pending, dismissed or
// expired.
func QueryState(q *hub.Query, now time.Time) string {
	switch {
	case q.Dismissed:
		return "dismissed"
	case q.Expired(now):
		return "expired"
	default:
		return "pending"
	}
}

// formatID shortens a query UUID to its first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatValue renders a JSON value on one line, max 40 characters. Strings
// lose their quotes.
func formatValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "-"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return `""`
		}
		return truncate(firstLine(s), 40)
	}
	return truncate(string(raw), 40)
}

// formatVersion shows "v2", "v3"... and "-" for a record never changed
// since creation.
func formatVersion(version uint64) string {
	if version <= 1 {
		return "-"
	}
	return fmt.Sprintf("v%d", version)
}

// formatAge renders a Unix ms timestamp relative to now.
func formatAge(timestampMs int64, now time.Time) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(timestampMs))
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	if strings.HasSuffix(word, "y") {
		return strings.TrimSuffix(word, "y") + "ies"
	}
	return word + "s"
}
