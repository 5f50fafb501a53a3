package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/aqueductfluidics/aqueduct/pkg/hub"
)

// pollInterval is how often the Poll functions re-read the hub.
const pollInterval = 200 * time.Millisecond

// PollForPendingQuery polls until the session has a query the operator can
// still answer and returns the oldest one. Returns an error if timeout
// elapses first.
func PollForPendingQuery(ctx context.Context, client *hub.Client, timeout time.Duration) (*hub.Query, error) {
	return poll(ctx, timeout, "pending query", func() (*hub.Query, error) {
		queries, err := client.ListQueries(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list queries: %w", err)
		}
		now := time.Now()
		for _, q := range queries {
			if q.Active(now) {
				return q, nil
			}
		}
		return nil, nil
	})
}

// PollForResolution polls until the query with the given id is dismissed
// and returns it. A query the hub does not know yet is waited for.
func PollForResolution(ctx context.Context, client *hub.Client, queryID string, timeout time.Duration) (*hub.Query, error) {
	return poll(ctx, timeout, "resolution of query "+queryID, func() (*hub.Query, error) {
		q, err := client.GetQuery(ctx, queryID)
		if err != nil {
			if hub.IsNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to read query: %w", err)
		}
		if !q.Dismissed {
			return nil, nil
		}
		return q, nil
	})
}

// poll calls check every pollInterval until it returns a query or an error.
func poll(ctx context.Context, timeout time.Duration, what string, check func() (*hub.Query, error)) (*hub.Query, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for %s after %v", what, timeout)

		case <-ticker.C:
			q, err := check()
			if err != nil {
				return nil, err
			}
			if q != nil {
				return q, nil
			}
		}
	}
}
