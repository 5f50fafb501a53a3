package hub

import "fmt"

// Redis key pattern helpers
//
// All keys and Pub/Sub channels are namespaced by the session user id so
// several users can share one Redis server.
//
// Key pattern: aqueduct:{user}:{entity}:{name-or-id}
// Channel pattern: aqueduct:{user}:{event_type}_events

// MaxSamples caps the history kept per recordable.
const MaxSamples = 10000

// RecordKey returns the key of a setpoint or recordable hash.
// Pattern: aqueduct:{user}:{class}:{name}
func RecordKey(user string, class RecordClass, name string) string {
	return fmt.Sprintf("aqueduct:%s:%s:%s", user, class, name)
}

// RecordIndexKey returns the set of names registered for a class.
// Pattern: aqueduct:{user}:{class}s
func RecordIndexKey(user string, class RecordClass) string {
	return fmt.Sprintf("aqueduct:%s:%ss", user, class)
}

// SamplesKey returns the ZSET holding a recordable's history, scored by
// timestamp in milliseconds.
// Pattern: aqueduct:{user}:recordable:{name}:samples
func SamplesKey(user, name string) string {
	return fmt.Sprintf("aqueduct:%s:recordable:%s:samples", user, name)
}

// QueryKey returns the key of a query hash.
// Pattern: aqueduct:{user}:query:{id}
func QueryKey(user, id string) string {
	return fmt.Sprintf("aqueduct:%s:query:%s", user, id)
}

// QueryIndexKey returns the set of live query ids.
// Pattern: aqueduct:{user}:queries
func QueryIndexKey(user string) string {
	return fmt.Sprintf("aqueduct:%s:queries", user)
}

// EditsKey returns the list of queued setpoint edits.
// Pattern: aqueduct:{user}:setpoint_edits
func EditsKey(user string) string {
	return fmt.Sprintf("aqueduct:%s:setpoint_edits", user)
}

// ResolutionsKey returns the list of queued query resolutions.
// Pattern: aqueduct:{user}:resolutions
func ResolutionsKey(user string) string {
	return fmt.Sprintf("aqueduct:%s:resolutions", user)
}

// RecordEventsChannel returns the channel carrying record puts and removals.
// Pattern: aqueduct:{user}:record_events
func RecordEventsChannel(user string) string {
	return fmt.Sprintf("aqueduct:%s:record_events", user)
}

// QueryEventsChannel returns the channel carrying query changes.
// Pattern: aqueduct:{user}:query_events
func QueryEventsChannel(user string) string {
	return fmt.Sprintf("aqueduct:%s:query_events", user)
}
