// Package hub provides the Redis data plane shared by recipe runtimes and the
// hub controller.
//
// # Overview
//
// A running recipe pushes its setpoints, recordables and pending queries into
// Redis; the controller (the hub UI, or the aqueduct CLI) reads them, queues
// setpoint edits and query resolutions, and the recipe drains those queues on
// its next update tick.
//
// # Key Schema
//
// All keys and channels are namespaced by the session user id:
//
//	aqueduct:{user}:setpoint:{name}              hash  (class, name, kind, value, timestamp_ms, version)
//	aqueduct:{user}:recordable:{name}            hash  (same fields)
//	aqueduct:{user}:recordable:{name}:samples    zset  score=timestamp_ms, member=sample JSON
//	aqueduct:{user}:setpoints                    set   setpoint names
//	aqueduct:{user}:recordables                  set   recordable names
//	aqueduct:{user}:query:{id}                   hash  prompt or input state
//	aqueduct:{user}:queries                      set   query ids
//	aqueduct:{user}:setpoint_edits               list  edit JSON, oldest first
//	aqueduct:{user}:resolutions                  list  resolution JSON, oldest first
//	aqueduct:{user}:record_events                channel
//	aqueduct:{user}:query_events                 channel
//
// Values are stored as JSON together with their dtype name, so the hub never
// depends on Go types.
//
// # Usage Example
//
//	client, err := hub.NewClient(&redis.Options{Addr: "localhost:6379"}, "1")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	// Controller side: change a setpoint and answer a query.
//	err = client.PushEdit(ctx, "flow_rate", json.RawMessage("3.5"))
//	err = client.ResolveQuery(ctx, queryID, json.RawMessage(`"lot-42"`))
//
//	// Recipe side: collect what the controller queued.
//	edits, err := client.DrainEdits(ctx)
//	resolutions, err := client.DrainResolutions(ctx)
package hub
