package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gadar/bestrong/models"
)

// Message events ride Redis pub/sub so the SSE stream is push-based instead
// of polling the database per connected client.

func messageChannel(userID uint) string {
	return fmt.Sprintf("messages:user:%d", userID)
}

// PublishMessage notifies the receiver's channel about a new message.
// Best-effort: delivery failures only cost realtime-ness, the row is already
// persisted and will show up on the next history fetch.
func PublishMessage(msg *models.Message) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Publish(ctx, messageChannel(msg.ReceiverID), b).Err(); err != nil {
		if Sugar != nil {
			Sugar.Warnf("message publish failed user=%d err=%v", msg.ReceiverID, err)
		}
	}
}

// SubscribeMessages subscribes to a user's message channel and waits for the
// subscription to be confirmed, so an unreachable Redis yields nil instead of
// a stream that never delivers. The caller owns the returned PubSub and must
// Close it when the client disconnects.
func SubscribeMessages(ctx context.Context, userID uint) *redis.PubSub {
	rc := GetRedis()
	if rc == nil {
		return nil
	}
	sub := rc.Subscribe(ctx, messageChannel(userID))
	confirmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := sub.Receive(confirmCtx); err != nil {
		_ = sub.Close()
		if Sugar != nil {
			Sugar.Warnf("message subscribe failed user=%d err=%v", userID, err)
		}
		return nil
	}
	return sub
}
