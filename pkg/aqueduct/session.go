package aqueduct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultUpdateInterval is the update loop period.
	DefaultUpdateInterval = time.Second

	// DefaultPushTimeout bounds the synchronous push made by factories.
	DefaultPushTimeout = 2 * time.Second

	// DefaultSampleBuffer is the number of recordable samples kept between
	// ticks before the oldest are dropped.
	DefaultSampleBuffer = 1024

	// LogTimeFormat is the prefix Log writes before every entry.
	LogTimeFormat = "2006-01-02 15:04:05.000000"
)

// Options configures a Session. Only UserID is required.
type Options struct {
	UserID string
	PID    int

	// Out and Err receive Printf/Println and Errorf output. They default to
	// os.Stdout and os.Stderr.
	Out io.Writer
	Err io.Writer
	// LogWriter receives Log entries. Defaults to io.Discard.
	LogWriter io.Writer
	// LogSaver implements SaveLogFile. Optional.
	LogSaver LogSaver

	// LabModeUserID is the user id that marks a lab-mode run.
	LabModeUserID string
	// HubSerial is the serial number of the hub running the recipe.
	HubSerial string

	UpdateInterval time.Duration
	PollInterval   time.Duration
	PushTimeout    time.Duration
	SampleBuffer   int

	// Sink is the hub transport. A nil sink keeps everything local.
	Sink     Sink
	Observer Observer
	Logger   *log.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// LogSaver persists the session log under a permanent name.
type LogSaver interface {
	Save(filename string, timestamp, overwrite bool) (string, error)
}

// Session is the single entry point a recipe uses: it owns the setpoint,
// recordable and query registries and the background update loop that
// keeps them in sync with the hub.
type Session struct {
	userID        string
	pid           int
	labModeUserID string
	hubSerial     string

	out       io.Writer
	errOut    io.Writer
	logWriter io.Writer
	logMu     sync.Mutex
	logSaver  LogSaver

	updateInterval time.Duration
	pollInterval   time.Duration
	pushTimeout    time.Duration
	sampleBuffer   int

	sink     Sink
	observer Observer
	logger   *log.Logger
	now      func() time.Time

	// mu guards the registries and pending removals.
	mu             sync.RWMutex
	setpoints      map[string]*Setpoint
	recordables    map[string]*Recordable
	queries        map[string]userQuery
	removed        map[RecordRef]struct{}
	removedQueries map[string]struct{}

	// pushMu serialises pushes so per-record order is kept on the hub.
	pushMu sync.Mutex
	// syncMu keeps ticks from overlapping when Sync is also called directly.
	syncMu sync.Mutex

	startOnce sync.Once
	baseCtx   context.Context
	cancel    context.CancelFunc
	loopDone  chan struct{}
}

// NewSession builds a session. The update loop does not run until Start.
func NewSession(opts Options) (*Session, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	s := &Session{
		userID:         opts.UserID,
		pid:            opts.PID,
		labModeUserID:  opts.LabModeUserID,
		hubSerial:      opts.HubSerial,
		out:            opts.Out,
		errOut:         opts.Err,
		logWriter:      opts.LogWriter,
		logSaver:       opts.LogSaver,
		updateInterval: opts.UpdateInterval,
		pollInterval:   opts.PollInterval,
		pushTimeout:    opts.PushTimeout,
		sampleBuffer:   opts.SampleBuffer,
		sink:           opts.Sink,
		observer:       opts.Observer,
		logger:         opts.Logger,
		now:            opts.Now,
		setpoints:      make(map[string]*Setpoint),
		recordables:    make(map[string]*Recordable),
		queries:        make(map[string]userQuery),
		removed:        make(map[RecordRef]struct{}),
		removedQueries: make(map[string]struct{}),
		baseCtx:        context.Background(),
	}
	if s.pid == 0 {
		s.pid = os.Getpid()
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.errOut == nil {
		s.errOut = os.Stderr
	}
	if s.logWriter == nil {
		s.logWriter = io.Discard
	}
	if s.updateInterval <= 0 {
		s.updateInterval = DefaultUpdateInterval
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if s.pushTimeout <= 0 {
		s.pushTimeout = DefaultPushTimeout
	}
	if s.sampleBuffer <= 0 {
		s.sampleBuffer = DefaultSampleBuffer
	}
	if s.logger == nil {
		s.logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// UserID returns the session user.
func (s *Session) UserID() string { return s.userID }

// PID returns the id of the process executing the recipe.
func (s *Session) PID() int { return s.pid }

// HubSerial returns the serial number of the hub, or "" when unknown.
func (s *Session) HubSerial() string { return s.hubSerial }

// IsLabMode reports whether the recipe runs in lab mode rather than sim mode.
func (s *Session) IsLabMode() bool {
	return s.labModeUserID != "" && s.userID == s.labModeUserID
}

// Setpoint creates a setpoint and registers it under name, replacing any
// previous setpoint with that name. An empty kind is inferred from value.
// The initial value is pushed to the hub before Setpoint returns.
func (s *Session) Setpoint(name string, value any, kind Kind) (*Setpoint, error) {
	val, err := newRecordValue(name, value, kind)
	if err != nil {
		return nil, fmt.Errorf("setpoint %q: %w", name, err)
	}
	sp := &Setpoint{record: newRecord(s, ClassSetpoint, name, val)}

	s.mu.Lock()
	s.setpoints[name] = sp
	delete(s.removed, RecordRef{Class: ClassSetpoint, Name: name})
	s.mu.Unlock()

	s.pushRecord(&sp.record, nil)
	return sp, nil
}

// Recordable creates a recordable and registers it under name, replacing
// any previous recordable with that name.
func (s *Session) Recordable(name string, value any, kind Kind) (*Recordable, error) {
	val, err := newRecordValue(name, value, kind)
	if err != nil {
		return nil, fmt.Errorf("recordable %q: %w", name, err)
	}
	rc := &Recordable{record: newRecord(s, ClassRecordable, name, val), maxSamples: s.sampleBuffer}
	rc.appendSampleLocked()

	s.mu.Lock()
	s.recordables[name] = rc
	delete(s.removed, RecordRef{Class: ClassRecordable, Name: name})
	s.mu.Unlock()

	s.pushRecord(&rc.record, rc)
	return rc, nil
}

func newRecordValue(name string, value any, kind Kind) (Value, error) {
	if name == "" {
		return Value{}, ErrEmptyName
	}
	return ValueAs(value, kind)
}

// LookupSetpoint returns the setpoint registered under name.
func (s *Session) LookupSetpoint(name string) (*Setpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.setpoints[name]
	return sp, ok
}

// LookupRecordable returns the recordable registered under name.
func (s *Session) LookupRecordable(name string) (*Recordable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.recordables[name]
	return rc, ok
}

// Setpoints returns the names of all registered setpoints.
func (s *Session) Setpoints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.setpoints))
	for name := range s.setpoints {
		names = append(names, name)
	}
	return names
}

// Recordables returns the names of all registered recordables.
func (s *Session) Recordables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.recordables))
	for name := range s.recordables {
		names = append(names, name)
	}
	return names
}

// RemoveSetpoint removes the named setpoint. It returns ErrUnknownRecordName
// if none is registered.
func (s *Session) RemoveSetpoint(name string) error {
	if !s.remove(RecordRef{Class: ClassSetpoint, Name: name}, nil) {
		return fmt.Errorf("setpoint %q: %w", name, ErrUnknownRecordName)
	}
	return nil
}

// RemoveRecordable removes the named recordable. It returns
// ErrUnknownRecordName if none is registered.
func (s *Session) RemoveRecordable(name string) error {
	if !s.remove(RecordRef{Class: ClassRecordable, Name: name}, nil) {
		return fmt.Errorf("recordable %q: %w", name, ErrUnknownRecordName)
	}
	return nil
}

// dispose is the Dispose path: absence is not an error.
func (s *Session) dispose(ref RecordRef, owner any) {
	if !s.remove(ref, owner) {
		s.logger.Printf("[DEBUG] %s %q already removed", ref.Class, ref.Name)
	}
}

// remove deletes ref from its registry. When want is non-nil the entry is
// only removed if it is still that exact record.
func (s *Session) remove(ref RecordRef, want any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ref.Class {
	case ClassSetpoint:
		sp, ok := s.setpoints[ref.Name]
		if !ok || (want != nil && want != any(sp)) {
			return false
		}
		delete(s.setpoints, ref.Name)
	case ClassRecordable:
		rc, ok := s.recordables[ref.Name]
		if !ok || (want != nil && want != any(rc)) {
			return false
		}
		delete(s.recordables, ref.Name)
	default:
		return false
	}
	s.removed[ref] = struct{}{}
	return true
}

// Prompt shows a message to the operator. With PauseRecipe it blocks until
// the prompt is dismissed, expires, or ctx ends.
func (s *Session) Prompt(ctx context.Context, message string, opts PromptOptions) (*Prompt, error) {
	if err := validateTimeout(opts.Timeout); err != nil {
		return nil, err
	}
	p := &Prompt{query: newQuery(s, uuid.New().String(), message, opts.Timeout)}
	s.registerQuery(p)

	if opts.PauseRecipe {
		if _, err := p.Wait(ctx); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Input asks the operator for a value. With PauseRecipe it blocks until the
// input is answered, expires, or ctx ends.
func (s *Session) Input(ctx context.Context, message string, opts InputOptions) (*Input, error) {
	if err := validateTimeout(opts.Timeout); err != nil {
		return nil, err
	}
	if opts.Type == "" {
		opts.Type = InputText
	}
	if err := opts.Type.Validate(); err != nil {
		return nil, err
	}
	if opts.Kind != "" {
		if err := opts.Kind.Validate(); err != nil {
			return nil, err
		}
	}
	in := &Input{
		query:     newQuery(s, uuid.New().String(), message, opts.Timeout),
		inputType: opts.Type,
		options:   append([]string(nil), opts.Options...),
		rows:      append([]string(nil), opts.Rows...),
		kind:      opts.Kind,
	}
	s.registerQuery(in)

	if opts.PauseRecipe {
		if _, err := in.Wait(ctx); err != nil {
			return in, err
		}
	}
	return in, nil
}

func (s *Session) registerQuery(q userQuery) {
	s.mu.Lock()
	s.queries[q.ID()] = q
	s.mu.Unlock()
	s.pushQuery(q)
}

func (s *Session) lookupQuery(id string) (userQuery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[id]
	return q, ok
}

// forgetQuery drops a query once it has served its purpose.
func (s *Session) forgetQuery(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[id]; ok {
		delete(s.queries, id)
		s.removedQueries[id] = struct{}{}
	}
}

// Printf writes recipe output to the session's output writer.
func (s *Session) Printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

// Println writes a line of recipe output.
func (s *Session) Println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

// Errorf writes to the session's error writer.
func (s *Session) Errorf(format string, a ...any) {
	fmt.Fprintf(s.errOut, format, a...)
}

// Log appends a timestamped line to the session log.
func (s *Session) Log(data string) {
	line := s.now().Format(LogTimeFormat) + ": " + data + "\n"
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if _, err := io.WriteString(s.logWriter, line); err != nil {
		s.logger.Printf("[WARN] failed to write session log: %v", err)
	}
}

// SaveLogFile keeps the session log under filename. With timestamp a time
// suffix is added; without overwrite an existing file gets a numbered name.
func (s *Session) SaveLogFile(filename string, timestamp, overwrite bool) (string, error) {
	if s.logSaver == nil {
		return "", errors.New("log saving is not configured for this session")
	}
	return s.logSaver.Save(filename, timestamp, overwrite)
}

// pushRecord sends one record (and, for recordables, its samples) right
// away. Failures leave the record dirty for the next tick.
func (s *Session) pushRecord(r *record, rc *Recordable) {
	if s.sink == nil {
		return
	}
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	st, dirty := r.dirty()
	if !dirty {
		return
	}
	b := &Batch{Records: []RecordState{st}}
	var samples []Sample
	if rc != nil {
		samples, _ = rc.drainSamples()
		if len(samples) > 0 {
			b.Samples = []SampleBatch{{Name: r.name, Samples: samples}}
		}
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, s.pushTimeout)
	defer cancel()
	if err := s.sink.Push(ctx, b); err != nil {
		s.logger.Printf("[WARN] initial push of %s %q failed, retrying next tick: %v", r.class, r.name, err)
		if rc != nil {
			rc.requeueSamples(samples)
		}
		return
	}
	r.markPushed(st.Version)
}

func (s *Session) pushQuery(q userQuery) {
	if s.sink == nil {
		return
	}
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	st, dirty := q.state()
	if !dirty {
		return
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, s.pushTimeout)
	defer cancel()
	if err := s.sink.Push(ctx, &Batch{Queries: []QueryState{st}}); err != nil {
		s.logger.Printf("[WARN] push of %s %s failed, retrying next tick: %v", st.Type, st.ID, err)
		return
	}
	q.markPushed(st.Version)
}
