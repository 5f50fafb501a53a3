package aqueduct

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultPollInterval is the minimum pause Pending takes between checks.
const DefaultPollInterval = 500 * time.Millisecond

// InputType selects the widget the hub renders for an Input.
type InputType string

const (
	InputText     InputType = "text_input"
	InputDropdown InputType = "dropdown"
	InputButtons  InputType = "buttons"
	InputTable    InputType = "table"
	InputCSV      InputType = "csv"
)

// Validate checks the input type is one the hub can render.
func (t InputType) Validate() error {
	switch t {
	case InputText, InputDropdown, InputButtons, InputTable, InputCSV:
		return nil
	default:
		return fmt.Errorf("unknown input type: %q", string(t))
	}
}

// ParseTimeout parses a timeout in seconds. The empty string means no
// timeout. Negative or non-numeric values fail with ErrInvalidTimeout.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number of seconds", ErrInvalidTimeout, s)
	}
	d := time.Duration(secs * float64(time.Second))
	if err := validateTimeout(d); err != nil {
		return 0, err
	}
	return d, nil
}

func validateTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %v is negative", ErrInvalidTimeout, d)
	}
	return nil
}

// query holds the state machine shared by Prompt and Input:
// Pending -> Dismissed, with Expired derived from the clock on every read.
type query struct {
	id      string
	message string
	timeout time.Duration
	start   time.Time
	poll    time.Duration
	owner   *Session

	mu        sync.Mutex
	dismissed bool
	value     Value
	version   uint64
	pushed    uint64
	consumed  bool
	done      chan struct{}
}

func newQuery(owner *Session, id, message string, timeout time.Duration) query {
	return query{
		id:      id,
		message: message,
		timeout: timeout,
		start:   owner.now(),
		poll:    owner.pollInterval,
		owner:   owner,
		version: 1,
		done:    make(chan struct{}),
	}
}

// ID returns the identifier the hub uses to resolve the query.
func (q *query) ID() string { return q.id }

// Message returns the text shown to the operator.
func (q *query) Message() string { return q.message }

// Timeout returns the configured timeout; zero means none.
func (q *query) Timeout() time.Duration { return q.timeout }

// StartTime returns when the query was created.
func (q *query) StartTime() time.Time { return q.start }

// IsDismissed reports whether the operator has resolved the query.
func (q *query) IsDismissed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dismissed
}

// Expired reports whether the timeout has elapsed. It is recomputed on
// every call.
func (q *query) Expired() bool {
	return q.timeout > 0 && q.owner.now().Sub(q.start) >= q.timeout
}

// IsActive is true until the query is dismissed or expires.
func (q *query) IsActive() bool {
	return !q.IsDismissed() && !q.Expired()
}

// Pending is meant for loops that keep working while waiting:
//
//	for p.Pending() {
//		monitor()
//	}
//
// It pauses for the poll interval, returning early if the query is
// resolved, and then reports IsActive.
func (q *query) Pending() bool {
	if !q.IsActive() {
		return false
	}
	t := time.NewTimer(q.poll)
	defer t.Stop()
	select {
	case <-t.C:
	case <-q.done:
	}
	return q.IsActive()
}

// Wait blocks until the query is resolved, expires, or ctx ends. It reports
// whether the query was resolved.
func (q *query) Wait(ctx context.Context) (bool, error) {
	var expiry <-chan time.Time
	if q.timeout > 0 {
		remaining := q.timeout - q.owner.now().Sub(q.start)
		if remaining <= 0 {
			return q.IsDismissed(), nil
		}
		t := time.NewTimer(remaining)
		defer t.Stop()
		expiry = t.C
	}
	select {
	case <-q.done:
		return true, nil
	case <-expiry:
		return q.IsDismissed(), nil
	case <-ctx.Done():
		return q.IsDismissed(), ctx.Err()
	}
}

// resolve stores v and dismisses the query in one step. Later calls lose.
func (q *query) resolve(v Value) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.dismissed {
		return false
	}
	q.value = v
	q.dismissed = true
	q.version++
	close(q.done)
	return true
}

// reopen marks a still pending query dirty so its next push rewrites the
// hub copy as undismissed.
func (q *query) reopen() {
	q.mu.Lock()
	if !q.dismissed {
		q.version++
	}
	q.mu.Unlock()
}

func (q *query) markPushed(version uint64) {
	q.mu.Lock()
	if version > q.pushed {
		q.pushed = version
	}
	q.mu.Unlock()
}

func (q *query) baseState(t QueryType) (QueryState, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueryState{
		ID:        q.id,
		Type:      t,
		Message:   q.message,
		Timeout:   q.timeout,
		StartTime: q.start,
		Dismissed: q.dismissed,
		Value:     q.value,
		Version:   q.version,
	}, q.version > q.pushed
}

// userQuery is how the session and update loop see prompts and inputs.
type userQuery interface {
	ID() string
	state() (QueryState, bool)
	markPushed(version uint64)
	resolveRaw(raw json.RawMessage) error
}

// PromptOptions configures Session.Prompt.
type PromptOptions struct {
	// Timeout after which the prompt expires. Zero means never.
	Timeout time.Duration
	// PauseRecipe blocks Session.Prompt until the prompt is dismissed or
	// expires.
	PauseRecipe bool
}

// Prompt is an acknowledgment request shown to the operator.
type Prompt struct {
	query
}

func (p *Prompt) state() (QueryState, bool) { return p.baseState(QueryPrompt) }

// resolveRaw dismisses the prompt; any payload is ignored.
func (p *Prompt) resolveRaw(json.RawMessage) error {
	if p.resolve(Value{}) {
		p.owner.forgetQuery(p.id)
	}
	return nil
}

// InputOptions configures Session.Input.
type InputOptions struct {
	Timeout     time.Duration
	PauseRecipe bool
	// Type defaults to InputText.
	Type    InputType
	Options []string
	Rows    []string
	// Kind, when set, is the dtype the operator's answer is coerced to.
	Kind Kind
}

// Input is a request for a value from the operator.
type Input struct {
	query

	inputType InputType
	options   []string
	rows      []string
	kind      Kind
}

// Type returns the widget type.
func (in *Input) Type() InputType { return in.inputType }

// Options returns the choices for dropdown and buttons inputs.
func (in *Input) Options() []string { return append([]string(nil), in.options...) }

// Rows returns the row labels for table inputs.
func (in *Input) Rows() []string { return append([]string(nil), in.rows...) }

// Kind returns the dtype answers are coerced to, or "" if untyped.
func (in *Input) Kind() Kind { return in.kind }

// IsSet reports whether the operator has entered a value.
func (in *Input) IsSet() bool { return in.IsDismissed() }

// GetValue returns the operator's answer once the input is resolved. With
// deleteIfSet the input is removed from the session after this read and
// later calls return false.
func (in *Input) GetValue(deleteIfSet bool) (Value, bool) {
	in.mu.Lock()
	if !in.dismissed || in.consumed {
		in.mu.Unlock()
		return Value{}, false
	}
	v := in.value
	if deleteIfSet {
		in.consumed = true
	}
	in.mu.Unlock()

	if deleteIfSet {
		in.owner.forgetQuery(in.id)
	}
	return v, true
}

func (in *Input) state() (QueryState, bool) {
	st, dirty := in.baseState(QueryInput)
	st.InputType = in.inputType
	st.Options = in.options
	st.Rows = in.rows
	st.Kind = in.kind
	return st, dirty
}

// resolveRaw coerces the operator's answer and resolves the input. A payload
// that does not fit the declared kind leaves the input pending and is
// pushed again so the hub drops the rejected answer.
func (in *Input) resolveRaw(raw json.RawMessage) error {
	v, err := ParseValue(in.kind, raw)
	if err != nil {
		in.reopen()
		return fmt.Errorf("input %s: %w", in.id, err)
	}
	in.resolve(v)
	return nil
}
