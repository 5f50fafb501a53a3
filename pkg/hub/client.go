package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aqueductfluidics/aqueduct/pkg/aqueduct"
)

// ErrAlreadyResolved is returned when resolving a query that has already
// been dismissed.
var ErrAlreadyResolved = errors.New("query already resolved")

// ErrInvalidAnswer is returned when an input's answer does not fit its dtype.
var ErrInvalidAnswer = errors.New("answer does not match input dtype")

// Client provides user-scoped Redis operations for the hub data plane.
// All keys and channels are namespaced with the user id. The client is safe
// for concurrent use.
type Client struct {
	rdb    *redis.Client
	userID string
	now    func() time.Time
}

// NewClient creates a hub client for the given user.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - userID: session user id (must not be empty)
func NewClient(redisOpts *redis.Options, userID string) (*Client, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	return &Client{
		rdb:    redis.NewClient(redisOpts),
		userID: userID,
		now:    time.Now,
	}, nil
}

// UserID returns the user the client is scoped to.
func (c *Client) UserID() string { return c.userID }

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Used by health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PutRecord stores a record snapshot, adds it to its class index and
// publishes a put event. Writing the same snapshot twice is safe.
func (c *Client) PutRecord(ctx context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	key := RecordKey(c.userID, r.Class, r.Name)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, RecordToHash(r))
		pipe.SAdd(ctx, RecordIndexKey(c.userID, r.Class), r.Name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write record to Redis: %w", err)
	}

	return c.publish(ctx, RecordEventsChannel(c.userID), &RecordEvent{
		Type:   EventPut,
		Class:  r.Class,
		Name:   r.Name,
		Record: r,
	})
}

// DeleteRecord removes a record, its history and its index entry, then
// publishes a removal event. Deleting a missing record is not an error.
func (c *Client) DeleteRecord(ctx context.Context, class RecordClass, name string) error {
	if err := class.Validate(); err != nil {
		return fmt.Errorf("invalid class: %w", err)
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, RecordKey(c.userID, class, name))
		if class == ClassRecordable {
			pipe.Del(ctx, SamplesKey(c.userID, name))
		}
		pipe.SRem(ctx, RecordIndexKey(c.userID, class), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete record from Redis: %w", err)
	}

	return c.publish(ctx, RecordEventsChannel(c.userID), &RecordEvent{
		Type:  EventRemoved,
		Class: class,
		Name:  name,
	})
}

// GetRecord retrieves a record by class and name.
// Returns (nil, redis.Nil) if it doesn't exist; use IsNotFound to check.
func (c *Client) GetRecord(ctx context.Context, class RecordClass, name string) (*Record, error) {
	hashData, err := c.rdb.HGetAll(ctx, RecordKey(c.userID, class, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read record from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	r, err := HashToRecord(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize record: %w", err)
	}
	return r, nil
}

// ListRecords returns every record of a class, sorted by name.
func (c *Client) ListRecords(ctx context.Context, class RecordClass) ([]*Record, error) {
	names, err := c.rdb.SMembers(ctx, RecordIndexKey(c.userID, class)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s index: %w", class, err)
	}
	sort.Strings(names)

	cmds := make([]*redis.MapStringStringCmd, len(names))
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.HGetAll(ctx, RecordKey(c.userID, class, name))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read records from Redis: %w", err)
	}

	records := make([]*Record, 0, len(names))
	for i, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			// Index entry outlived the record.
			continue
		}
		r, err := HashToRecord(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize record %q: %w", names[i], err)
		}
		records = append(records, r)
	}
	return records, nil
}

// AppendSamples adds samples to a recordable's history and trims it to the
// most recent MaxSamples entries.
func (c *Client) AppendSamples(ctx context.Context, name string, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(samples))
	for _, s := range samples {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal sample: %w", err)
		}
		members = append(members, redis.Z{Score: float64(s.TimestampMs), Member: string(data)})
	}

	key := SamplesKey(c.userID, name)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, members...)
		pipe.ZRemRangeByRank(ctx, key, 0, -(MaxSamples + 1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append samples: %w", err)
	}
	return nil
}

// GetSamples returns a recordable's history between since and until,
// inclusive, ordered by timestamp then version. Zero times leave that end
// open.
func (c *Client) GetSamples(ctx context.Context, name string, since, until time.Time) ([]Sample, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !since.IsZero() {
		rng.Min = strconv.FormatInt(since.UnixMilli(), 10)
	}
	if !until.IsZero() {
		rng.Max = strconv.FormatInt(until.UnixMilli(), 10)
	}

	members, err := c.rdb.ZRangeByScore(ctx, SamplesKey(c.userID, name), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	samples := make([]Sample, 0, len(members))
	for _, m := range members {
		var s Sample
		if err := json.Unmarshal([]byte(m), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sample: %w", err)
		}
		samples = append(samples, s)
	}
	// Members sharing a millisecond sort lexically; restore update order.
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].TimestampMs != samples[j].TimestampMs {
			return samples[i].TimestampMs < samples[j].TimestampMs
		}
		return samples[i].Version < samples[j].Version
	})
	return samples, nil
}

// PutQuery stores a query, adds it to the query index and publishes a put
// event.
func (c *Client) PutQuery(ctx context.Context, q *Query) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	hash, err := QueryToHash(q)
	if err != nil {
		return fmt.Errorf("failed to serialize query: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, QueryKey(c.userID, q.ID), hash)
		pipe.SAdd(ctx, QueryIndexKey(c.userID), q.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write query to Redis: %w", err)
	}

	return c.publish(ctx, QueryEventsChannel(c.userID), &QueryEvent{Type: EventPut, ID: q.ID, Query: q})
}

// GetQuery retrieves a query by id.
// Returns (nil, redis.Nil) if it doesn't exist.
func (c *Client) GetQuery(ctx context.Context, id string) (*Query, error) {
	hashData, err := c.rdb.HGetAll(ctx, QueryKey(c.userID, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read query from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	q, err := HashToQuery(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize query: %w", err)
	}
	return q, nil
}

// ListQueries returns every stored query, oldest first.
func (c *Client) ListQueries(ctx context.Context) ([]*Query, error) {
	ids, err := c.rdb.SMembers(ctx, QueryIndexKey(c.userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read query index: %w", err)
	}

	queries := make([]*Query, 0, len(ids))
	for _, id := range ids {
		q, err := c.GetQuery(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	sort.Slice(queries, func(i, j int) bool {
		if queries[i].StartMs != queries[j].StartMs {
			return queries[i].StartMs < queries[j].StartMs
		}
		return queries[i].ID < queries[j].ID
	})
	return queries, nil
}

// DeleteQuery removes a query and publishes a removal event.
func (c *Client) DeleteQuery(ctx context.Context, id string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, QueryKey(c.userID, id))
		pipe.SRem(ctx, QueryIndexKey(c.userID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete query from Redis: %w", err)
	}

	return c.publish(ctx, QueryEventsChannel(c.userID), &QueryEvent{Type: EventRemoved, ID: id})
}

// PushEdit queues an operator edit for a setpoint. The setpoint must exist;
// otherwise redis.Nil is returned.
func (c *Client) PushEdit(ctx context.Context, name string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("edit value is not valid JSON")
	}
	exists, err := c.rdb.Exists(ctx, RecordKey(c.userID, ClassSetpoint, name)).Result()
	if err != nil {
		return fmt.Errorf("failed to check setpoint existence: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("setpoint %q: %w", name, redis.Nil)
	}

	data, err := json.Marshal(&Edit{Name: name, Value: value, QueuedMs: c.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal edit: %w", err)
	}
	if err := c.rdb.RPush(ctx, EditsKey(c.userID), data).Err(); err != nil {
		return fmt.Errorf("failed to queue edit: %w", err)
	}
	return nil
}

// DrainEdits atomically takes every queued edit, in the order they were
// pushed. Entries that fail to decode are skipped and reported in the
// returned error alongside the decoded edits.
func (c *Client) DrainEdits(ctx context.Context) ([]Edit, error) {
	raw, err := c.drain(ctx, EditsKey(c.userID))
	if err != nil {
		return nil, fmt.Errorf("failed to drain edits: %w", err)
	}

	edits := make([]Edit, 0, len(raw))
	var errs []error
	for _, item := range raw {
		var e Edit
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			errs = append(errs, fmt.Errorf("failed to unmarshal edit: %w", err))
			continue
		}
		edits = append(edits, e)
	}
	return edits, errors.Join(errs...)
}

// ResolveQuery dismisses a prompt or answers an input on behalf of the
// operator: the query hash is updated, the resolution queued for the recipe
// and a resolved event published. Returns redis.Nil if the query does not
// exist, ErrAlreadyResolved if it has already been dismissed and
// ErrInvalidAnswer if an input's value cannot be read as its dtype. A
// refused answer leaves the query untouched.
func (c *Client) ResolveQuery(ctx context.Context, id string, value json.RawMessage) error {
	if len(value) > 0 && !json.Valid(value) {
		return fmt.Errorf("resolution value is not valid JSON")
	}
	q, err := c.GetQuery(ctx, id)
	if err != nil {
		return fmt.Errorf("query %s: %w", id, err)
	}
	if q.Dismissed {
		return fmt.Errorf("query %s: %w", id, ErrAlreadyResolved)
	}
	if q.Type == QueryInput {
		if _, err := aqueduct.ParseValue(aqueduct.Kind(q.Kind), value); err != nil {
			return fmt.Errorf("query %s: %w: %w", id, ErrInvalidAnswer, err)
		}
	}

	res := &Resolution{QueryID: id, Value: value, ResolvedMs: c.now().UnixMilli()}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution: %w", err)
	}

	q.Dismissed = true
	q.Value = value
	q.ResolvedMs = res.ResolvedMs
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, QueryKey(c.userID, id),
			"dismissed", "true",
			"value", string(value),
			"resolved_ms", res.ResolvedMs)
		pipe.RPush(ctx, ResolutionsKey(c.userID), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to resolve query: %w", err)
	}

	return c.publish(ctx, QueryEventsChannel(c.userID), &QueryEvent{Type: EventResolved, ID: id, Query: q})
}

// DrainResolutions atomically takes every queued resolution, oldest first.
func (c *Client) DrainResolutions(ctx context.Context) ([]Resolution, error) {
	raw, err := c.drain(ctx, ResolutionsKey(c.userID))
	if err != nil {
		return nil, fmt.Errorf("failed to drain resolutions: %w", err)
	}

	out := make([]Resolution, 0, len(raw))
	var errs []error
	for _, item := range raw {
		var r Resolution
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			errs = append(errs, fmt.Errorf("failed to unmarshal resolution: %w", err))
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}

// drain reads and deletes a list in one transaction.
func (c *Client) drain(ctx context.Context, key string) ([]string, error) {
	var items *redis.StringSliceCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items.Val(), nil
}

func (c *Client) publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
