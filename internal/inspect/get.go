package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/google/uuid"
)

// GetRecord writes a single setpoint or recordable as pretty-printed JSON.
func GetRecord(ctx context.Context, client *hub.Client, class hub.RecordClass, name string, w io.Writer) error {
	r, err := client.GetRecord(ctx, class, name)
	if err != nil {
		if hub.IsNotFound(err) {
			return &RecordNotFoundError{Class: class, Name: name}
		}
		return fmt.Errorf("failed to fetch %s: %w", class, err)
	}

	if err := FormatSingleJSON(w, r); err != nil {
		return fmt.Errorf("failed to format %s: %w", class, err)
	}
	return nil
}

// GetQuery writes a single query as pretty-printed JSON.
func GetQuery(ctx context.Context, client *hub.Client, id string, w io.Writer) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid query ID format: must be a valid UUID")
	}

	q, err := client.GetQuery(ctx, id)
	if err != nil {
		if hub.IsNotFound(err) {
			return &QueryNotFoundError{QueryID: id}
		}
		return fmt.Errorf("failed to fetch query: %w", err)
	}

	if err := FormatSingleJSON(w, q); err != nil {
		return fmt.Errorf("failed to format query: %w", err)
	}
	return nil
}

// RecordNotFoundError reports a setpoint or recordable missing from the hub.
type RecordNotFoundError struct {
	Class hub.RecordClass
	Name  string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Class, e.Name)
}

// QueryNotFoundError reports a prompt or input missing from the hub.
type QueryNotFoundError struct {
	QueryID string
}

func (e *QueryNotFoundError) Error() string {
	return fmt.Sprintf("query with ID '%s' not found", e.QueryID)
}

// IsNotFound returns true if err is, or wraps, a RecordNotFoundError or a
// QueryNotFoundError.
func IsNotFound(err error) bool {
	var rerr *RecordNotFoundError
	var qerr *QueryNotFoundError
	return errors.As(err, &rerr) || errors.As(err, &qerr)
}
