package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Subscription is an active Pub/Sub subscription delivering decoded events.
// Caller must call Close() when done.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of events. It is closed when the subscription
// is closed or its context is cancelled.
func (s *Subscription[T]) Events() <-chan *T {
	return s.events
}

// Errors returns the channel of decoding errors. The subscription continues
// after errors; the offending message is skipped.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeRecordEvents subscribes to record puts and removals for this user.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a slow subscriber may miss events.
func (c *Client) SubscribeRecordEvents(ctx context.Context) (*Subscription[RecordEvent], error) {
	return subscribe[RecordEvent](ctx, c, RecordEventsChannel(c.userID), "record")
}

// SubscribeQueryEvents subscribes to query puts, resolutions and removals.
func (c *Client) SubscribeQueryEvents(ctx context.Context) (*Subscription[QueryEvent], error) {
	return subscribe[QueryEvent](ctx, c, QueryEventsChannel(c.userID), "query")
}

func subscribe[T any](ctx context.Context, c *Client, channel, what string) (*Subscription[T], error) {
	pubsub := c.rdb.Subscribe(ctx, channel)
	// Wait for the confirmation so no event published after return is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event T
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal %s event: %w", what, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
