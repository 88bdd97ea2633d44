package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Publisher sends committed board events to the broadcast channel. Handlers
// call it exactly once per successful mutating operation.
type Publisher struct {
	rc      *redis.Client
	channel string
}

// NewPublisher creates a Publisher on the given redis channel.
func NewPublisher(rc *redis.Client, channel string) *Publisher {
	return &Publisher{rc: rc, channel: channel}
}

// Publish serializes the event and hands it to redis. The write has already
// committed by the time this runs; a publish failure only costs connected
// clients a live update they can recover by resync, so callers log it and
// move on.
func (p *Publisher) Publish(ctx context.Context, ev domain.BoardEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rc.Publish(ctx, p.channel, payload).Err()
}

// SubscribeEvents listens on the board-event channel and fans each event into
// the hub's project room. Runs until ctx is done; a dropped pub/sub
// connection is re-established after a short pause.
func SubscribeEvents(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, hub *Hub) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev struct {
					ProjectID string `json:"projectId"`
				}
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Errorf("unable to parse board event: %v", err)
					continue
				}
				if ev.ProjectID == "" {
					logger.Warn("board event without project id, ignoring")
					continue
				}
				hub.Broadcast(ev.ProjectID, []byte(msg.Payload))
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
