// Package aqueduct is the recipe-side runtime of the Aqueduct lab automation
// platform.
//
// # Overview
//
// A recipe is an ordinary Go program that drives lab hardware. It talks to
// the operator, and to the hub that renders the operator's UI, through a
// single Session. The session owns three registries:
//
//   - Setpoints: named parameters the recipe reads and the operator may edit.
//   - Recordables: timestamped value streams charted on the hub.
//   - Queries: prompts (acknowledgments) and inputs (requests for a value).
//
// Every setpoint and recordable carries a Kind, the dtype fixed at creation:
// int, float, bool, list, datetime or str.
//
// # Update Loop
//
// Start launches a background loop that, once per UpdateInterval, pushes every
// record and query that changed since the last successful push to the Sink and
// pulls operator edits and query resolutions back. The recipe never blocks on
// the loop. Finish stops it and flushes one last time.
//
// Factories push their initial state synchronously, so a setpoint is visible
// on the hub as soon as Setpoint returns.
//
// # Usage Example
//
//	s, err := aqueduct.NewSession(aqueduct.Options{UserID: "1", Sink: sink})
//	if err != nil {
//		return err
//	}
//	s.Start(ctx)
//	defer s.Finish(context.Background())
//
//	flow, _ := s.Setpoint("flow_rate", 2.5, aqueduct.KindFloat)
//	pressure, _ := s.Recordable("pressure", 0.0, aqueduct.KindFloat)
//
//	p, _ := s.Prompt(ctx, "Load the column, then dismiss", aqueduct.PromptOptions{})
//	for p.Pending() {
//		pressure.Update(readSensor())
//	}
//
// # Concurrency
//
// All Session, Setpoint, Recordable, Prompt and Input methods are safe for
// concurrent use. A record's value, timestamp and version always change
// together, and timestamps never decrease.
package aqueduct
