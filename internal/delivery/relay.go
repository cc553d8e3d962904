package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"codoleet/internal/common/cache"
	pkgerrors "codoleet/pkg/errors"
	"codoleet/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	channelPrefix  = "delivery:user:"
	channelPattern = channelPrefix + "*"
)

// Relay bridges hubs across service instances through Redis pub/sub. An
// event published on any instance reaches the user's sessions on every
// instance.
type Relay struct {
	hub   *Hub
	cache cache.Cache
}

func NewRelay(hub *Hub, c cache.Cache) *Relay {
	return &Relay{hub: hub, cache: c}
}

// Publish sends the event to the user's channel. Local sessions receive it
// through the relay's own subscription like everyone else's.
func (r *Relay) Publish(ctx context.Context, userID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.DeliveryClosed, "encode delivery event")
	}
	if err := r.cache.Publish(ctx, channelPrefix+userID, string(payload)); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.DeliveryClosed, "publish delivery event")
	}
	return nil
}

// Run consumes the user channels and feeds the local hub until the context
// is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.cache.PSubscribe(ctx, channelPattern)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.SubscribeFailed, "subscribe delivery channels")
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.Messages():
			if !ok {
				return fmt.Errorf("delivery subscription closed")
			}
			userID := strings.TrimPrefix(msg.Channel, channelPrefix)
			if userID == "" || userID == msg.Channel {
				continue
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn(ctx, "drop malformed delivery event",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			r.hub.Publish(userID, event)
		}
	}
}
