package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/yoockh/yoointerview/internal/interview"
)

// EventChannel is the pub/sub channel carrying the events of one session.
func EventChannel(sessionID string) string { return "session:" + sessionID + ":events" }

// EventBus fans session events out over Redis pub/sub so that any instance
// holding the client socket can forward them.
type EventBus struct {
	rdb *redis.Client
}

func NewEventBus(rdb *redis.Client) *EventBus {
	return &EventBus{rdb: rdb}
}

func (b *EventBus) Publish(ctx context.Context, ev interview.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, EventChannel(ev.SessionID), payload).Err()
}

// Subscribe returns a subscription that is already confirmed by Redis, so no
// event published after it returns is missed.
func (b *EventBus) Subscribe(ctx context.Context, sessionID string) (*redis.PubSub, error) {
	ps := b.rdb.Subscribe(ctx, EventChannel(sessionID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return ps, nil
}
