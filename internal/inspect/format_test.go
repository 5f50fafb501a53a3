package inspect

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFormatRecordTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		n := FormatRecordTable(&buf, nil, "7", refNow)
		assert.Equal(t, 0, n)
		assert.Contains(t, buf.String(), "No setpoints or recordables found for user '7'")
	})

	t.Run("rows", func(t *testing.T) {
		records := []*hub.Record{
			{Class: hub.ClassSetpoint, Name: "flow_rate", Kind: "float", Value: json.RawMessage("2.5"),
				TimestampMs: refNow.Add(-90 * time.Second).UnixMilli(), Version: 3},
			{Class: hub.ClassRecordable, Name: "operator", Kind: "str", Value: json.RawMessage(`"Ada"`),
				TimestampMs: refNow.Add(-2 * time.Hour).UnixMilli(), Version: 1},
		}

		var buf bytes.Buffer
		n := FormatRecordTable(&buf, records, "7", refNow)
		require.Equal(t, 2, n)

		out := buf.String()
		assert.Contains(t, out, "Records for user '7'")
		assert.Contains(t, out, "flow_rate")
		assert.Contains(t, out, "v3")
		assert.Contains(t, out, "1m ago")
		assert.Contains(t, out, "2h ago")
		assert.Contains(t, out, "Ada")
		assert.NotContains(t, out, `"Ada"`)
		assert.Contains(t, out, "2 records found")
	})
}

func TestFormatQueryTable(t *testing.T) {
	queries := []*hub.Query{
		{ID: "0f8fad5b-d9cb-469f-a165-70867728950e", Type: hub.QueryPrompt, Message: "Load the column\nthen continue",
			StartMs: refNow.Add(-10 * time.Second).UnixMilli()},
		{ID: "7c9e6679-7425-40de-944b-e07fc1f90ae7", Type: hub.QueryInput, InputType: "dropdown", Message: "Lot?",
			StartMs: refNow.Add(-time.Minute).UnixMilli(), TimeoutMs: 30000},
	}

	var buf bytes.Buffer
	n := FormatQueryTable(&buf, queries, "7", refNow)
	require.Equal(t, 2, n)

	out := buf.String()
	assert.Contains(t, out, "0f8fad5b ")
	assert.NotContains(t, out, "0f8fad5b-d9cb")
	assert.Contains(t, out, "Load the column")
	assert.NotContains(t, out, "then continue")
	assert.Contains(t, out, "expired")
	assert.Contains(t, out, "dropdown")
	assert.Contains(t, out, "2 queries found")
}

func TestFormatHistoryTable(t *testing.T) {
	samples := []hub.Sample{
		{Value: json.RawMessage("7.1"), TimestampMs: refNow.UnixMilli(), Version: 1},
		{Value: json.RawMessage("7.3"), TimestampMs: refNow.Add(time.Second).UnixMilli(), Version: 2},
	}

	var buf bytes.Buffer
	assert.Equal(t, 2, FormatHistoryTable(&buf, "ph", samples))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 8)
	assert.Contains(t, lines[4], "2024-03-01T09:00:00.000Z")
	assert.Contains(t, lines[4], "7.1")
	assert.Contains(t, lines[5], "7.3")
	assert.Equal(t, "2 samples found", lines[len(lines)-1])
}

func TestFormatJSONL(t *testing.T) {
	records := []*hub.Record{
		{Class: hub.ClassSetpoint, Name: "a", Kind: "int", Value: json.RawMessage("1"), Version: 1},
		{Class: hub.ClassSetpoint, Name: "b", Kind: "int", Value: json.RawMessage("2"), Version: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var back hub.Record
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &back))
	assert.Equal(t, "b", back.Name)
}

func TestFormatHelpers(t *testing.T) {
	t.Run("formatValue", func(t *testing.T) {
		assert.Equal(t, "-", formatValue(nil))
		assert.Equal(t, `""`, formatValue(json.RawMessage(`""`)))
		assert.Equal(t, "[1,2,3]", formatValue(json.RawMessage("[1,2,3]")))
		long := json.RawMessage(`"` + strings.Repeat("x", 60) + `"`)
		assert.Len(t, formatValue(long), 40)
	})

	t.Run("formatAge", func(t *testing.T) {
		assert.Equal(t, "-", formatAge(0, refNow))
		assert.Equal(t, "0s ago", formatAge(refNow.Add(time.Minute).UnixMilli(), refNow))
		assert.Equal(t, "3d ago", formatAge(refNow.Add(-72*time.Hour).UnixMilli(), refNow))
	})

	t.Run("QueryState", func(t *testing.T) {
		q := &hub.Query{StartMs: refNow.UnixMilli(), TimeoutMs: 1000}
		assert.Equal(t, "pending", QueryState(q, refNow))
		assert.Equal(t, "expired", QueryState(q, refNow.Add(time.Second)))
		q.Dismissed = true
		assert.Equal(t, "dismissed", QueryState(q, refNow.Add(time.Second)))
	})
}
