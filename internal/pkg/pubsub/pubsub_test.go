package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStepProgress(t *testing.T) {
	steps := []string{StepQueued, StepDrawing, StepUploading, StepDone}

	for _, step := range steps {
		progress, ok := StepProgress[step]
		assert.True(t, ok, "Step %s should have progress value", step)
		assert.Greater(t, progress, 0)
		assert.LessOrEqual(t, progress, 100)

		msg, ok := StepMessages[step]
		assert.True(t, ok, "Step %s should have message", step)
		assert.NotEmpty(t, msg)
	}

	// Progress is monotonically increasing
	assert.Less(t, StepProgress[StepQueued], StepProgress[StepDrawing])
	assert.Less(t, StepProgress[StepDrawing], StepProgress[StepUploading])
	assert.Less(t, StepProgress[StepUploading], StepProgress[StepDone])
	assert.Equal(t, 100, StepProgress[StepDone])
}

func TestProgressMessage_OmitEmpty(t *testing.T) {
	msg := &ProgressMessage{
		UserID: 1,
		Status: "processing",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "message")
	assert.NotContains(t, raw, "error")
}

func TestPublishSubscribe(t *testing.T) {
	client := setupTestRedis(t)

	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *ProgressMessage, 1)
	go func() {
		subscriber.Subscribe(ctx, func(msg *ProgressMessage) {
			received <- msg
		})
	}()

	// Give the subscriber a moment to attach
	time.Sleep(50 * time.Millisecond)

	err := publisher.PublishProgress(ctx, &ProgressMessage{
		UserID:  1,
		StoryID: 2,
		JobID:   3,
		Status:  "processing",
		Step:    StepDrawing,
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "cartoon_progress", msg.Type)
		assert.Equal(t, int64(2), msg.StoryID)
		// Progress and message auto-filled from the step
		assert.Equal(t, StepProgress[StepDrawing], msg.Progress)
		assert.Equal(t, StepMessages[StepDrawing], msg.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress message")
	}
}

func TestPublishProgress_KeepsExplicitProgress(t *testing.T) {
	client := setupTestRedis(t)
	publisher := NewPublisher(client)

	msg := &ProgressMessage{
		UserID:   1,
		Step:     StepDrawing,
		Progress: 42,
		Message:  "自定义消息",
	}
	require.NoError(t, publisher.PublishProgress(context.Background(), msg))

	assert.Equal(t, 42, msg.Progress)
	assert.Equal(t, "自定义消息", msg.Message)
}
