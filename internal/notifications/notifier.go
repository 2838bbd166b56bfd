// Package notifications publishes in-app notifications to per-user Redis channels.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"promptguy/internal/models"

	"github.com/redis/go-redis/v9"
)

// EventNotification is the envelope type for a newly stored notification.
const EventNotification = "notification.created"

// Envelope is the JSON message published on a user channel.
type Envelope struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishNotification wraps a stored notification in an Envelope and publishes it
// to the recipient's channel.
func (n *Notifier) PublishNotification(ctx context.Context, notification *models.Notification) error {
	if n == nil || n.rdb == nil || notification == nil {
		return nil
	}
	payload, err := json.Marshal(Envelope{Type: EventNotification, Notification: notification})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.PublishUser(ctx, notification.UserID, string(payload))
}

// Subscribe opens a subscription on userID's channel. Callers close it.
func (n *Notifier) Subscribe(ctx context.Context, userID uint) *redis.PubSub {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Subscribe(ctx, UserChannel(userID))
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}
