package presence

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"messaging-service/internal/models"
)

// TypingSource is the subscription side of the typing channel. The live
// session controller consumes it per selected group.
type TypingSource interface {
	Subscribe(ctx context.Context, groupID int) (<-chan models.TypingEvent, func(), error)
}

// Subscriber reads typing events from Redis pub/sub.
type Subscriber struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewSubscriber constructs a Subscriber.
func NewSubscriber(rdb *redis.Client, log *zap.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, log: log}
}

// Subscribe opens the group's typing channel and returns a stream of decoded
// events plus a cancel function. Undecodable payloads are dropped.
func (s *Subscriber) Subscribe(ctx context.Context, groupID int) (<-chan models.TypingEvent, func(), error) {
	pubsub := s.rdb.Subscribe(ctx, ChannelName(groupID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	events := make(chan models.TypingEvent, 16)
	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var ev models.TypingEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Debug("typing payload dropped", zap.Error(err))
				continue
			}
			events <- ev
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return events, cancel, nil
}
