package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	t.Run("should fill the envelope", func(t *testing.T) {
		evt := NewEvent(EventTypeReductionApplied, "N1", "reduction-service", map[string]string{"sr_no": "3"})

		assert.NotEqual(t, uuid.Nil, evt.ID)
		assert.Equal(t, EventTypeReductionApplied, evt.Type)
		assert.Equal(t, "N1", evt.NoticeNo)
		assert.Equal(t, "reduction-service", evt.Source)
		assert.False(t, evt.Timestamp.IsZero())
	})

	t.Run("should serialise to JSON", func(t *testing.T) {
		evt := NewEvent(EventTypeRevivalApplied, "N1", "revival-engine", nil)

		payload, err := json.Marshal(evt)
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Equal(t, "revival.applied", decoded["type"])
		assert.Equal(t, "N1", decoded["notice_no"])
	})
}

func TestPublishDisconnected(t *testing.T) {
	var c *Client
	assert.Error(t, c.Publish(context.Background(), EventTypeReductionApplied, "x"))
}
