package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/aqueductfluidics/aqueduct/pkg/hub"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ResolveQueryID resolves a short query ID prefix, as printed by the query
// table, to a full UUID.
//
// A full UUID is returned as-is once its existence is checked. Shorter
// input must be at least MinShortIDLength characters and match exactly one
// of the session's queries.
func ResolveQueryID(ctx context.Context, client *hub.Client, shortID string) (string, error) {
	shortID = strings.ToLower(strings.TrimSpace(shortID))

	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		if _, err := client.GetQuery(ctx, shortID); err != nil {
			if hub.IsNotFound(err) {
				return "", &NotFoundError{ShortID: shortID}
			}
			return "", fmt.Errorf("failed to verify query existence: %w", err)
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	queries, err := client.ListQueries(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to search for query: %w", err)
	}

	var matches []string
	for _, q := range queries {
		if strings.HasPrefix(q.ID, shortID) {
			matches = append(matches, q.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no query matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no queries found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple queries matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d queries", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists the matching UUIDs (up to 10, then "...and N
// more") for display.
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Short ID '%s' matches %d queries:\n", err.ShortID, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for _, id := range err.Matches[:displayCount] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the query.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
