package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the hub's copy of a setpoint or recordable. Value is kept as
// JSON so the hub never needs to know Go types; Kind says how to read it.
type Record struct {
	Class       RecordClass     `json:"class"`
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`         // int, float, bool, list, datetime, str
	Value       json.RawMessage `json:"value"`        // JSON encoded payload
	TimestampMs int64           `json:"timestamp_ms"` // Unix ms of the last change
	Version     uint64          `json:"version"`      // Per-record change counter, starts at 1
}

// RecordClass says which registry a record belongs to.
type RecordClass string

const (
	ClassSetpoint   RecordClass = "setpoint"
	ClassRecordable RecordClass = "recordable"
)

// Sample is one point of a recordable's history.
type Sample struct {
	Value       json.RawMessage `json:"value"`
	TimestampMs int64           `json:"timestamp_ms"`
	Version     uint64          `json:"version"`
}

// Time returns the sample timestamp.
func (s Sample) Time() time.Time { return time.UnixMilli(s.TimestampMs) }

// Query is the hub's copy of a prompt or input awaiting the operator.
type Query struct {
	ID         string          `json:"id"`   // UUID
	Type       QueryType       `json:"type"` // prompt or input
	Message    string          `json:"message"`
	TimeoutMs  int64           `json:"timeout_ms"` // 0 means no timeout
	StartMs    int64           `json:"start_ms"`
	InputType  string          `json:"input_type,omitempty"`
	Options    []string        `json:"options,omitempty"`
	Rows       []string        `json:"rows,omitempty"`
	Kind       string          `json:"dtype,omitempty"` // dtype an input answer is coerced to
	Dismissed  bool            `json:"dismissed"`
	Value      json.RawMessage `json:"value,omitempty"`
	ResolvedMs int64           `json:"resolved_ms,omitempty"`
	Version    uint64          `json:"version"`
}

// QueryType distinguishes prompts from inputs.
type QueryType string

const (
	QueryPrompt QueryType = "prompt"
	QueryInput  QueryType = "input"
)

// Expired reports whether the query's timeout has elapsed at now.
func (q *Query) Expired(now time.Time) bool {
	return q.TimeoutMs > 0 && now.UnixMilli()-q.StartMs >= q.TimeoutMs
}

// Active is true while the operator can still answer the query.
func (q *Query) Active(now time.Time) bool {
	return !q.Dismissed && !q.Expired(now)
}

// Edit is an operator change to a setpoint, queued for the recipe to apply.
type Edit struct {
	Name     string          `json:"name"`
	Value    json.RawMessage `json:"value"`
	QueuedMs int64           `json:"queued_ms"`
}

// Resolution is an operator answer to a query, queued for the recipe.
type Resolution struct {
	QueryID    string          `json:"query_id"`
	Value      json.RawMessage `json:"value,omitempty"`
	ResolvedMs int64           `json:"resolved_ms"`
}

// EventType describes what happened to a record or query.
type EventType string

const (
	EventPut      EventType = "put"
	EventRemoved  EventType = "removed"
	EventResolved EventType = "resolved"
)

// RecordEvent is published on the record events channel.
type RecordEvent struct {
	Type   EventType   `json:"type"`
	Class  RecordClass `json:"class"`
	Name   string      `json:"name"`
	Record *Record     `json:"record,omitempty"` // nil for removals
}

// QueryEvent is published on the query events channel.
type QueryEvent struct {
	Type  EventType `json:"type"`
	ID    string    `json:"id"`
	Query *Query    `json:"query,omitempty"` // nil for removals
}

// Validate checks that the record can be stored.
func (r *Record) Validate() error {
	if err := r.Class.Validate(); err != nil {
		return fmt.Errorf("invalid class: %w", err)
	}
	if r.Name == "" {
		return fmt.Errorf("record name cannot be empty")
	}
	if r.Kind == "" {
		return fmt.Errorf("record kind cannot be empty")
	}
	if !json.Valid(r.Value) {
		return fmt.Errorf("record value is not valid JSON")
	}
	if r.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", r.Version)
	}
	return nil
}

// Validate checks the class is known.
func (c RecordClass) Validate() error {
	switch c {
	case ClassSetpoint, ClassRecordable:
		return nil
	default:
		return fmt.Errorf("unknown record class: %q", c)
	}
}

// Validate checks that the query can be stored.
func (q *Query) Validate() error {
	if !isValidUUID(q.ID) {
		return fmt.Errorf("invalid query ID: not a valid UUID")
	}
	if err := q.Type.Validate(); err != nil {
		return fmt.Errorf("invalid query type: %w", err)
	}
	if q.TimeoutMs < 0 {
		return fmt.Errorf("invalid timeout: must be >= 0, got %d", q.TimeoutMs)
	}
	if len(q.Value) > 0 && !json.Valid(q.Value) {
		return fmt.Errorf("query value is not valid JSON")
	}
	return nil
}

// Validate checks the query type is known.
func (t QueryType) Validate() error {
	switch t {
	case QueryPrompt, QueryInput:
		return nil
	default:
		return fmt.Errorf("unknown query type: %q", t)
	}
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
