package aqueduct

import (
	"context"
	"encoding/json"
	"time"
)

// Start launches the background update loop. It runs until ctx is cancelled
// or Finish is called; the recipe never needs to wait for it. Calling Start
// more than once has no effect.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.loopDone = make(chan struct{})
		go s.run(loopCtx)
	})
}

// Finish stops the update loop, if running, and flushes outstanding state
// to the hub one last time.
func (s *Session) Finish(ctx context.Context) error {
	s.startOnce.Do(func() {}) // a later Start must not launch a loop
	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.loopDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Sync(ctx).PushErr
}

func (s *Session) run(ctx context.Context) {
	defer close(s.loopDone)
	s.logger.Printf("[INFO] Update loop starting for user '%s' (interval %v)", s.userID, s.updateInterval)

	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("[INFO] Update loop stopped for user '%s'", s.userID)
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}

// Sync runs one tick of the update loop: push everything that changed since
// the last successful push, then pull and apply operator edits and query
// resolutions. Errors are logged and reported in the stats; state that failed
// to push stays dirty for the next tick.
func (s *Session) Sync(ctx context.Context) TickStats {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	start := time.Now()
	var stats TickStats
	if s.sink != nil {
		s.push(ctx, &stats)
		s.pull(ctx, &stats)
	}
	stats.Duration = time.Since(start)

	if stats.PushErr != nil {
		s.logEvent("push_failed", map[string]interface{}{"error": stats.PushErr.Error()})
	}
	if stats.PullErr != nil {
		s.logEvent("pull_failed", map[string]interface{}{"error": stats.PullErr.Error()})
	}
	if s.observer != nil {
		s.observer.ObserveTick(stats)
	}
	return stats
}

type pendingRecordable struct {
	rc      *Recordable
	samples []Sample
}

func (s *Session) push(ctx context.Context, stats *TickStats) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	// Registry snapshot: copy pointers and drain removals under the lock,
	// read each record under its own lock afterwards.
	s.mu.Lock()
	setpoints := make([]*Setpoint, 0, len(s.setpoints))
	for _, sp := range s.setpoints {
		setpoints = append(setpoints, sp)
	}
	recordables := make([]*Recordable, 0, len(s.recordables))
	for _, rc := range s.recordables {
		recordables = append(recordables, rc)
	}
	queries := make([]userQuery, 0, len(s.queries))
	for _, q := range s.queries {
		queries = append(queries, q)
	}
	removed := s.removed
	removedQueries := s.removedQueries
	s.removed = make(map[RecordRef]struct{})
	s.removedQueries = make(map[string]struct{})
	s.mu.Unlock()

	batch := &Batch{}
	var pushed []func()

	for ref := range removed {
		batch.Removed = append(batch.Removed, ref)
	}
	for id := range removedQueries {
		batch.RemovedQueries = append(batch.RemovedQueries, id)
	}
	for _, sp := range setpoints {
		if st, dirty := sp.dirty(); dirty {
			batch.Records = append(batch.Records, st)
			r := &sp.record
			pushed = append(pushed, func() { r.markPushed(st.Version) })
		}
	}
	var drained []pendingRecordable
	for _, rc := range recordables {
		if st, dirty := rc.dirty(); dirty {
			batch.Records = append(batch.Records, st)
			r := &rc.record
			pushed = append(pushed, func() { r.markPushed(st.Version) })
		}
		samples, dropped := rc.drainSamples()
		if dropped > 0 {
			s.logger.Printf("[WARN] Recordable %q dropped %d samples before they reached the hub", rc.name, dropped)
		}
		if len(samples) > 0 {
			batch.Samples = append(batch.Samples, SampleBatch{Name: rc.name, Samples: samples})
			drained = append(drained, pendingRecordable{rc: rc, samples: samples})
		}
	}
	for _, q := range queries {
		if st, dirty := q.state(); dirty {
			batch.Queries = append(batch.Queries, st)
			pushed = append(pushed, func() { q.markPushed(st.Version) })
		}
	}

	if batch.Empty() {
		return
	}

	if err := s.sink.Push(ctx, batch); err != nil {
		stats.PushErr = err
		s.requeue(removed, removedQueries)
		for _, d := range drained {
			d.rc.requeueSamples(d.samples)
		}
		return
	}
	for _, mark := range pushed {
		mark()
	}
	stats.RecordsPushed = len(batch.Records)
	for _, sb := range batch.Samples {
		stats.SamplesPushed += len(sb.Samples)
	}
	stats.QueriesPushed = len(batch.Queries)
}

// requeue restores removals whose push failed, unless the name has been
// registered again in the meantime.
func (s *Session) requeue(removed map[RecordRef]struct{}, removedQueries map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref := range removed {
		switch ref.Class {
		case ClassSetpoint:
			if _, ok := s.setpoints[ref.Name]; ok {
				continue
			}
		case ClassRecordable:
			if _, ok := s.recordables[ref.Name]; ok {
				continue
			}
		}
		s.removed[ref] = struct{}{}
	}
	for id := range removedQueries {
		s.removedQueries[id] = struct{}{}
	}
}

func (s *Session) pull(ctx context.Context, stats *TickStats) {
	changes, err := s.sink.Pull(ctx)
	if err != nil {
		stats.PullErr = err
		return
	}
	if changes == nil {
		return
	}

	for _, edit := range changes.Edits {
		sp, ok := s.LookupSetpoint(edit.Name)
		if !ok {
			s.logger.Printf("[WARN] Ignoring edit for unknown setpoint %q", edit.Name)
			continue
		}
		if err := sp.applyEdit(edit.Value); err != nil {
			s.logger.Printf("[WARN] Rejected edit: %v", err)
			continue
		}
		stats.EditsApplied++
		s.logEvent("setpoint_edited", map[string]interface{}{
			"name":  edit.Name,
			"value": json.RawMessage(edit.Value),
		})
	}

	for _, res := range changes.Resolutions {
		q, ok := s.lookupQuery(res.QueryID)
		if !ok {
			s.logger.Printf("[DEBUG] Ignoring resolution for unknown query %s", res.QueryID)
			continue
		}
		if err := q.resolveRaw(res.Value); err != nil {
			s.logger.Printf("[WARN] Rejected resolution: %v", err)
			continue
		}
		stats.Resolutions++
		s.logEvent("query_resolved", map[string]interface{}{"query_id": res.QueryID})
	}
}

// logEvent logs a structured loop event as one JSON line.
func (s *Session) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["component"] = "update_loop"
	data["event_type"] = eventType
	data["user_id"] = s.userID

	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("[ERROR] Failed to marshal log event: %v", err)
		return
	}
	s.logger.Println(string(jsonData))
}
