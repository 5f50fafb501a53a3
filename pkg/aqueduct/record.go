package aqueduct

import (
	"fmt"
	"sync"
	"time"
)

// record is the value model shared by Setpoint and Recordable. Value,
// timestamp and version only change together under mu.
type record struct {
	class RecordClass
	name  string
	owner *Session

	mu        sync.RWMutex
	value     Value
	timestamp time.Time
	version   uint64
	pushed    uint64
}

func newRecord(owner *Session, class RecordClass, name string, v Value) record {
	return record{
		class:     class,
		name:      name,
		owner:     owner,
		value:     v,
		timestamp: owner.now(),
		version:   1,
	}
}

// Name returns the record name.
func (r *record) Name() string { return r.name }

// Kind returns the dtype fixed at creation.
func (r *record) Kind() Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value.kind
}

// Get returns the current value.
func (r *record) Get() Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Timestamp returns the time of the last change.
func (r *record) Timestamp() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timestamp
}

// Snapshot returns value, timestamp and version read together.
func (r *record) Snapshot() RecordState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *record) snapshotLocked() RecordState {
	return RecordState{
		Class:     r.class,
		Name:      r.name,
		Value:     r.value,
		Timestamp: r.timestamp,
		Version:   r.version,
	}
}

// dirty returns the snapshot if it has not been pushed yet.
func (r *record) dirty() (RecordState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(), r.version > r.pushed
}

func (r *record) markPushed(version uint64) {
	r.mu.Lock()
	if version > r.pushed {
		r.pushed = version
	}
	r.mu.Unlock()
}

// prepare converts an update to the record's kind. An int written to a float
// record is widened; anything else of a different kind is rejected.
func (r *record) prepare(v any) (Value, error) {
	kind := r.Kind()
	val, err := ValueOf(v)
	if err != nil {
		return Value{}, err
	}
	if val.kind == kind {
		return val, nil
	}
	if kind == KindFloat && val.kind == KindInt {
		return val, nil
	}
	return Value{}, fmt.Errorf("%w: %s %q holds %s, got %s", ErrInvalidValueType, r.class, r.name, kind, val.kind)
}

// set stores val with a fresh timestamp and returns the new state and the
// value it replaced.
func (r *record) set(val Value) (RecordState, Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.value
	val.kind = r.value.kind
	r.value = val
	r.touchLocked()
	return r.snapshotLocked(), prev
}

// touchLocked advances the timestamp and version. Timestamps never go
// backwards even if the wall clock does.
func (r *record) touchLocked() {
	if ts := r.owner.now(); ts.After(r.timestamp) {
		r.timestamp = ts
	}
	r.version++
}

// Setpoint is a named parameter a recipe reads and an operator may edit
// through the hub. Edits made by the operator fire the change callback;
// the recipe's own Update does not.
type Setpoint struct {
	record

	cbMu     sync.Mutex
	onChange ChangeFunc
}

// ChangeFunc is called after an operator edit has been applied. Extra
// arguments are captured by closure.
type ChangeFunc func(sp *Setpoint, previous Value)

// OnChange registers the callback fired when the hub edits the setpoint.
// Passing nil clears it.
func (sp *Setpoint) OnChange(fn ChangeFunc) {
	sp.cbMu.Lock()
	sp.onChange = fn
	sp.cbMu.Unlock()
}

// Update replaces the value from the recipe side.
func (sp *Setpoint) Update(v any) error {
	val, err := sp.prepare(v)
	if err != nil {
		return err
	}
	sp.set(val)
	return nil
}

// Dispose removes the setpoint from its session. Disposing twice, or after
// another setpoint has taken the name, is a no-op.
func (sp *Setpoint) Dispose() {
	sp.owner.dispose(RecordRef{Class: ClassSetpoint, Name: sp.name}, sp)
}

// applyEdit stores an operator edit and fires the callback outside any lock.
func (sp *Setpoint) applyEdit(raw []byte) error {
	val, err := ParseValue(sp.Kind(), raw)
	if err != nil {
		return fmt.Errorf("setpoint %q: %w", sp.name, err)
	}
	_, prev := sp.set(val)

	sp.cbMu.Lock()
	fn := sp.onChange
	sp.cbMu.Unlock()
	if fn != nil {
		fn(sp, prev)
	}
	return nil
}

// Recordable is a timestamped value stream shown as a chart on the hub.
// Every Update is retained in a bounded buffer until the update loop ships
// it, so the hub sees each sample in order.
type Recordable struct {
	record

	maxSamples int
	samples    []Sample
	dropped    int
}

// Update appends a new sample and makes it the current value.
func (rc *Recordable) Update(v any) error {
	val, err := rc.prepare(v)
	if err != nil {
		return err
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	val.kind = rc.value.kind
	rc.value = val
	rc.touchLocked()
	rc.appendSampleLocked()
	return nil
}

func (rc *Recordable) appendSampleLocked() {
	rc.samples = append(rc.samples, Sample{Value: rc.value, Timestamp: rc.timestamp, Version: rc.version})
	if over := len(rc.samples) - rc.maxSamples; rc.maxSamples > 0 && over > 0 {
		rc.samples = append(rc.samples[:0], rc.samples[over:]...)
		rc.dropped += over
	}
}

// drainSamples hands the buffered samples to the caller.
func (rc *Recordable) drainSamples() ([]Sample, int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out, dropped := rc.samples, rc.dropped
	rc.samples, rc.dropped = nil, 0
	return out, dropped
}

// requeueSamples puts back samples whose push failed, ahead of newer ones.
func (rc *Recordable) requeueSamples(s []Sample) {
	if len(s) == 0 {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.samples = append(append([]Sample(nil), s...), rc.samples...)
	if over := len(rc.samples) - rc.maxSamples; rc.maxSamples > 0 && over > 0 {
		rc.samples = rc.samples[over:]
		rc.dropped += over
	}
}

// Dispose removes the recordable from its session.
func (rc *Recordable) Dispose() {
	rc.owner.dispose(RecordRef{Class: ClassRecordable, Name: rc.name}, rc)
}
