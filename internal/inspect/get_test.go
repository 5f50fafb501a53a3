package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRecord(t *testing.T) {
	ctx := context.Background()
	client := setupTestClient(t)
	putRecord(t, client, hub.ClassSetpoint, "flow_rate", "2.5")

	t.Run("found", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, GetRecord(ctx, client, hub.ClassSetpoint, "flow_rate", &buf))

		var r hub.Record
		require.NoError(t, json.Unmarshal(buf.Bytes(), &r))
		assert.Equal(t, "flow_rate", r.Name)
		assert.JSONEq(t, "2.5", string(r.Value))
	})

	t.Run("wrong class is not found", func(t *testing.T) {
		err := GetRecord(ctx, client, hub.ClassRecordable, "flow_rate", &bytes.Buffer{})
		assert.True(t, IsNotFound(err))
	})
}

func TestGetQuery(t *testing.T) {
	ctx := context.Background()
	client := setupTestClient(t)

	t.Run("invalid id", func(t *testing.T) {
		err := GetQuery(ctx, client, "not-a-uuid", &bytes.Buffer{})
		require.Error(t, err)
		assert.False(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "must be a valid UUID")
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		err := GetQuery(ctx, client, id, &bytes.Buffer{})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), id)
	})

	t.Run("found", func(t *testing.T) {
		q := &hub.Query{ID: uuid.New().String(), Type: hub.QueryPrompt, Message: "Ready?", StartMs: 1}
		require.NoError(t, client.PutQuery(ctx, q))

		var buf bytes.Buffer
		require.NoError(t, GetQuery(ctx, client, q.ID, &buf))
		assert.Contains(t, buf.String(), `"message": "Ready?"`)
	})
}

func TestIsNotFound(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", &QueryNotFoundError{QueryID: "x"})
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsNotFound(fmt.Errorf("boom")))
	assert.False(t, IsNotFound(nil))
}
