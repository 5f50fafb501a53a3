package aqueduct

import (
	"context"
	"encoding/json"
	"time"
)

// RecordClass distinguishes the two record registries of a session.
type RecordClass string

const (
	ClassSetpoint   RecordClass = "setpoint"
	ClassRecordable RecordClass = "recordable"
)

// RecordRef identifies a record within a session.
type RecordRef struct {
	Class RecordClass
	Name  string
}

// RecordState is a consistent view of a record: value, kind and timestamp
// are always read under the same lock.
type RecordState struct {
	Class     RecordClass
	Name      string
	Value     Value
	Timestamp time.Time
	Version   uint64
}

// Sample is one recordable update retained for charting.
type Sample struct {
	Value     Value
	Timestamp time.Time
	Version   uint64
}

// SampleBatch holds the samples drained from one recordable during a tick,
// in the order the recipe issued them.
type SampleBatch struct {
	Name    string
	Samples []Sample
}

// QueryType distinguishes prompts from inputs.
type QueryType string

const (
	QueryPrompt QueryType = "prompt"
	QueryInput  QueryType = "input"
)

// QueryState is what the hub needs to render a prompt or input.
type QueryState struct {
	ID        string
	Type      QueryType
	Message   string
	Timeout   time.Duration
	StartTime time.Time
	InputType InputType
	Options   []string
	Rows      []string
	Kind      Kind
	Dismissed bool
	Value     Value
	Version   uint64
}

// Batch is everything one push sends to the hub. Sinks must apply removals
// before puts so that a record re-created under a removed name survives.
type Batch struct {
	Records        []RecordState
	Samples        []SampleBatch
	Removed        []RecordRef
	Queries        []QueryState
	RemovedQueries []string
}

// Empty reports whether the batch carries nothing.
func (b *Batch) Empty() bool {
	return len(b.Records) == 0 && len(b.Samples) == 0 && len(b.Removed) == 0 &&
		len(b.Queries) == 0 && len(b.RemovedQueries) == 0
}

// SetpointEdit is a controller-side change to a setpoint value. Value is the
// JSON payload the operator entered; it is coerced to the setpoint's kind.
type SetpointEdit struct {
	Name  string
	Value json.RawMessage
}

// Resolution is a controller-side dismissal of a prompt or answer to an input.
type Resolution struct {
	QueryID string
	Value   json.RawMessage
}

// Changes is what one pull returns.
type Changes struct {
	Edits       []SetpointEdit
	Resolutions []Resolution
}

// Sink is the transport to the hub. Push must be idempotent: a batch that
// failed is resent, merged with newer state, on the next tick.
type Sink interface {
	Push(ctx context.Context, b *Batch) error
	Pull(ctx context.Context) (*Changes, error)
}

// TickStats summarises one pass of the update loop.
type TickStats struct {
	Duration      time.Duration
	RecordsPushed int
	SamplesPushed int
	QueriesPushed int
	EditsApplied  int
	Resolutions   int
	PushErr       error
	PullErr       error
}

// Observer receives update loop statistics, typically for metrics.
type Observer interface {
	ObserveTick(TickStats)
}
