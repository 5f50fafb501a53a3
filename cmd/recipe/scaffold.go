package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/aqueductfluidics/aqueduct/pkg/aqueduct"
)

// Step count and pace of the demo readings. Tests shorten them.
var (
	scaffoldSteps    = 30
	scaffoldInterval = time.Second
)

// scaffold is the starting point for a new recipe: it registers a setpoint
// the operator can steer and the recordables it reports, asks the operator
// to confirm the setup and for a batch lot, then records readings until
// the step count is reached or ctx ends.
func scaffold(ctx context.Context, s *aqueduct.Session) error {
	target, err := s.Setpoint("target_ph", 7.0, aqueduct.KindFloat)
	if err != nil {
		return err
	}
	target.OnChange(func(sp *aqueduct.Setpoint, previous aqueduct.Value) {
		s.Printf("target_ph changed from %v to %v\n", previous, sp.Get())
		s.Log("target_ph set to " + sp.Get().String())
	})

	ph, err := s.Recordable("ph", 7.0, aqueduct.KindFloat)
	if err != nil {
		return err
	}
	pumped, err := s.Recordable("volume_pumped_ml", 0.0, aqueduct.KindFloat)
	if err != nil {
		return err
	}

	if _, err := s.Prompt(ctx, "Confirm the tubing is connected, then dismiss to start.", aqueduct.PromptOptions{
		PauseRecipe: true,
	}); err != nil {
		return err
	}

	lot, err := s.Input(ctx, "Batch lot number?", aqueduct.InputOptions{
		PauseRecipe: true,
		Kind:        aqueduct.KindString,
	})
	if err != nil {
		return err
	}
	if v, ok := lot.GetValue(true); ok {
		s.Log("batch lot " + v.String())
	}

	ticker := time.NewTicker(scaffoldInterval)
	defer ticker.Stop()

	reading, volume := 7.0, 0.0
	for step := 0; step < scaffoldSteps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		// Demo readings drift towards the operator's target.
		want, _ := target.Get().Float()
		reading += (want-reading)*0.2 + rand.Float64()*0.02 - 0.01
		volume += rand.Float64()
		if err := ph.Update(reading); err != nil {
			return err
		}
		if err := pumped.Update(volume); err != nil {
			return err
		}
	}

	s.Println("scaffold recipe complete")
	_, err = s.SaveLogFile("scaffold", true, false)
	return err
}
