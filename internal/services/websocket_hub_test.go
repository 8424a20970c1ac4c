package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *WSClient) WSMessage {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return WSMessage{}
	}
}

func TestWebSocketHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWebSocketHub()
	go hub.Run(ctx)

	subscriber := hub.NewClient("a", nil)
	bystander := hub.NewClient("b", nil)
	require.True(t, hub.Register(subscriber))
	require.True(t, hub.Register(bystander))
	hub.Subscribe(subscriber, TopicGuestbook)

	assert.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.GetTopicSubscriberCount(TopicGuestbook))

	hub.BroadcastToTopic(TopicGuestbook, WSTypeGuestbookEntry, map[string]string{"name": "Jisoo"})
	msg := receive(t, subscriber)
	assert.Equal(t, WSTypeGuestbookEntry, msg.Type)
	assert.JSONEq(t, `{"name":"Jisoo"}`, string(msg.Payload))
	assert.Empty(t, bystander.Send)

	t.Run("enqueue reaches one client", func(t *testing.T) {
		require.True(t, bystander.Enqueue(WSTypePong, nil))
		assert.Equal(t, WSTypePong, receive(t, bystander).Type)
	})

	t.Run("unregister closes the send channel", func(t *testing.T) {
		hub.Unregister(subscriber)
		assert.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
		assert.Zero(t, hub.GetTopicSubscriberCount(TopicGuestbook))
		_, ok := <-subscriber.Send
		assert.False(t, ok)
		assert.False(t, subscriber.Enqueue(WSTypePong, nil))
	})

	t.Run("stopped hub", func(t *testing.T) {
		cancel()
		_, ok := <-bystander.Send
		assert.False(t, ok)
		assert.False(t, hub.Register(hub.NewClient("c", nil)))
	})
}

func TestWSClient_EnqueueWhileRemoved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWebSocketHub()
	go hub.Run(ctx)

	client := hub.NewClient("racer", nil)
	require.True(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			client.Enqueue(WSTypeTimelineState, map[string]int{"selectedIndex": i})
		}
	}()
	go func() {
		defer wg.Done()
		hub.remove(client)
	}()
	wg.Wait()

	assert.False(t, client.Enqueue(WSTypePong, nil))
	for range client.Send {
	}
}
