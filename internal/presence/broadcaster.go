// Package presence propagates ephemeral typing state. Events live only on
// the broadcast channel and in local memory; nothing is persisted and no
// delivery is guaranteed.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"messaging-service/internal/models"
)

// ChannelName returns the broadcast channel for a group's typing events.
func ChannelName(groupID int) string {
	return fmt.Sprintf("typing:%d", groupID)
}

// Broadcaster publishes typing events on group-scoped channels.
type Broadcaster struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(rdb *redis.Client, log *zap.Logger) *Broadcaster {
	return &Broadcaster{rdb: rdb, log: log}
}

// Announce publishes a typing event. Best-effort: failures are logged and
// swallowed, never retried and never surfaced to the user.
func (b *Broadcaster) Announce(ctx context.Context, groupID, userID int, isTyping bool) {
	payload, err := json.Marshal(models.TypingEvent{
		GroupID:  groupID,
		UserID:   userID,
		IsTyping: isTyping,
		At:       time.Now(),
	})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, ChannelName(groupID), payload).Err(); err != nil {
		b.log.Debug("typing publish failed",
			zap.Int("group_id", groupID),
			zap.Int("user_id", userID),
			zap.Error(err))
	}
}
