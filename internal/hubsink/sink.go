// Package hubsink connects a recipe session to the Redis hub data plane.
package hubsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aqueductfluidics/aqueduct/pkg/aqueduct"
	"github.com/aqueductfluidics/aqueduct/pkg/hub"
)

// Sink implements aqueduct.Sink over a hub client.
type Sink struct {
	client *hub.Client
	logger *log.Logger
}

// New wraps client. A nil logger logs to the standard logger.
func New(client *hub.Client, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{client: client, logger: logger}
}

// Push writes a batch to the hub: removals first, then record snapshots,
// samples and queries. A record, sample or query that cannot be encoded is
// logged and skipped so it does not hold back the rest of the batch. Any
// Redis failure stops the push; every write is idempotent, so the session
// simply resends on the next tick.
func (s *Sink) Push(ctx context.Context, b *aqueduct.Batch) error {
	for _, ref := range b.Removed {
		if err := s.client.DeleteRecord(ctx, hub.RecordClass(ref.Class), ref.Name); err != nil {
			return err
		}
	}
	for _, id := range b.RemovedQueries {
		if err := s.client.DeleteQuery(ctx, id); err != nil {
			return err
		}
	}

	for _, st := range b.Records {
		r, err := toRecord(st)
		if err != nil {
			s.logger.Printf("[WARN] Skipping record: %v", err)
			continue
		}
		if err := s.client.PutRecord(ctx, r); err != nil {
			return err
		}
	}

	for _, sb := range b.Samples {
		samples, errs := toSamples(sb.Samples)
		for _, err := range errs {
			s.logger.Printf("[WARN] Skipping sample of recordable %q: %v", sb.Name, err)
		}
		if len(samples) == 0 {
			continue
		}
		if err := s.client.AppendSamples(ctx, sb.Name, samples); err != nil {
			return err
		}
	}

	for _, qs := range b.Queries {
		q, err := toQuery(qs)
		if err != nil {
			s.logger.Printf("[WARN] Skipping query: %v", err)
			continue
		}
		if err := s.client.PutQuery(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Pull drains the operator's queued setpoint edits and query resolutions.
// Malformed queue entries are logged and dropped.
func (s *Sink) Pull(ctx context.Context) (*aqueduct.Changes, error) {
	edits, err := s.client.DrainEdits(ctx)
	if err != nil {
		if edits == nil {
			return nil, err
		}
		s.logger.Printf("[WARN] Dropped malformed setpoint edits: %v", err)
	}
	resolutions, err := s.client.DrainResolutions(ctx)
	if err != nil {
		if resolutions == nil {
			// Edits are already drained; hand them over rather than lose them.
			s.logger.Printf("[ERROR] Failed to drain resolutions: %v", err)
		} else {
			s.logger.Printf("[WARN] Dropped malformed resolutions: %v", err)
		}
	}

	changes := &aqueduct.Changes{}
	for _, e := range edits {
		changes.Edits = append(changes.Edits, aqueduct.SetpointEdit{Name: e.Name, Value: e.Value})
	}
	for _, r := range resolutions {
		changes.Resolutions = append(changes.Resolutions, aqueduct.Resolution{QueryID: r.QueryID, Value: r.Value})
	}
	return changes, nil
}

func toRecord(st aqueduct.RecordState) (*hub.Record, error) {
	value, err := json.Marshal(st.Value)
	if err != nil {
		return nil, fmt.Errorf("%s %q: failed to encode value: %w", st.Class, st.Name, err)
	}
	return &hub.Record{
		Class:       hub.RecordClass(st.Class),
		Name:        st.Name,
		Kind:        string(st.Value.Kind()),
		Value:       value,
		TimestampMs: st.Timestamp.UnixMilli(),
		Version:     st.Version,
	}, nil
}

// toSamples converts every sample it can encode and reports the rest.
func toSamples(in []aqueduct.Sample) ([]hub.Sample, []error) {
	out := make([]hub.Sample, 0, len(in))
	var errs []error
	for _, smp := range in {
		value, err := json.Marshal(smp.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("version %d: failed to encode value: %w", smp.Version, err))
			continue
		}
		out = append(out, hub.Sample{
			Value:       value,
			TimestampMs: smp.Timestamp.UnixMilli(),
			Version:     smp.Version,
		})
	}
	return out, errs
}

func toQuery(qs aqueduct.QueryState) (*hub.Query, error) {
	q := &hub.Query{
		ID:        qs.ID,
		Type:      hub.QueryType(qs.Type),
		Message:   qs.Message,
		TimeoutMs: qs.Timeout.Milliseconds(),
		StartMs:   qs.StartTime.UnixMilli(),
		InputType: string(qs.InputType),
		Options:   qs.Options,
		Rows:      qs.Rows,
		Kind:      string(qs.Kind),
		Dismissed: qs.Dismissed,
		Version:   qs.Version,
	}
	if !qs.Value.IsZero() {
		value, err := json.Marshal(qs.Value)
		if err != nil {
			return nil, fmt.Errorf("query %s: failed to encode value: %w", qs.ID, err)
		}
		q.Value = value
	}
	return q, nil
}
