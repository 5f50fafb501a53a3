package hub

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Scalar fields map to individual hash fields; values and string lists are
// stored JSON encoded in a single field.

// RecordToHash converts a Record to Redis hash format.
func RecordToHash(r *Record) map[string]interface{} {
	return map[string]interface{}{
		"class":        string(r.Class),
		"name":         r.Name,
		"kind":         r.Kind,
		"value":        string(r.Value),
		"timestamp_ms": r.TimestampMs,
		"version":      r.Version,
	}
}

// HashToRecord converts a Redis hash to a Record.
func HashToRecord(hash map[string]string) (*Record, error) {
	version, err := strconv.ParseUint(hash["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}
	ts, err := strconv.ParseInt(hash["timestamp_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp_ms field: %w", err)
	}
	return &Record{
		Class:       RecordClass(hash["class"]),
		Name:        hash["name"],
		Kind:        hash["kind"],
		Value:       json.RawMessage(hash["value"]),
		TimestampMs: ts,
		Version:     version,
	}, nil
}

// QueryToHash converts a Query to Redis hash format. Options and rows are
// JSON encoded.
func QueryToHash(q *Query) (map[string]interface{}, error) {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	rowsJSON, err := json.Marshal(q.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rows: %w", err)
	}

	return map[string]interface{}{
		"id":          q.ID,
		"type":        string(q.Type),
		"message":     q.Message,
		"timeout_ms":  q.TimeoutMs,
		"start_ms":    q.StartMs,
		"input_type":  q.InputType,
		"options":     string(optionsJSON),
		"rows":        string(rowsJSON),
		"dtype":       q.Kind,
		"dismissed":   strconv.FormatBool(q.Dismissed),
		"value":       string(q.Value),
		"resolved_ms": q.ResolvedMs,
		"version":     q.Version,
	}, nil
}

// HashToQuery converts a Redis hash to a Query.
func HashToQuery(hash map[string]string) (*Query, error) {
	timeout, err := strconv.ParseInt(hash["timeout_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout_ms field: %w", err)
	}
	start, err := strconv.ParseInt(hash["start_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start_ms field: %w", err)
	}
	dismissed, err := strconv.ParseBool(hash["dismissed"])
	if err != nil {
		return nil, fmt.Errorf("invalid dismissed field: %w", err)
	}

	var options, rows []string
	if s := hash["options"]; s != "" {
		if err := json.Unmarshal([]byte(s), &options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal options: %w", err)
		}
	}
	if s := hash["rows"]; s != "" {
		if err := json.Unmarshal([]byte(s), &rows); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rows: %w", err)
		}
	}

	resolved, _ := strconv.ParseInt(hash["resolved_ms"], 10, 64)
	version, _ := strconv.ParseUint(hash["version"], 10, 64)

	q := &Query{
		ID:         hash["id"],
		Type:       QueryType(hash["type"]),
		Message:    hash["message"],
		TimeoutMs:  timeout,
		StartMs:    start,
		InputType:  hash["input_type"],
		Options:    options,
		Rows:       rows,
		Kind:       hash["dtype"],
		Dismissed:  dismissed,
		ResolvedMs: resolved,
		Version:    version,
	}
	if v := hash["value"]; v != "" {
		q.Value = json.RawMessage(v)
	}
	return q, nil
}
