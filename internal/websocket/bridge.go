// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package websocket

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/logging"
)

// Subscriber is the pub/sub side the bridge reads from.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Bridge forwards live and alert messages from the bus to the hub.
type Bridge struct {
	hub *Hub
	bus Subscriber
}

// NewBridge creates a bridge.
func NewBridge(hub *Hub, bus Subscriber) *Bridge {
	return &Bridge{hub: hub, bus: bus}
}

// Serve subscribes and forwards until ctx ends.
func (b *Bridge) Serve(ctx context.Context) error {
	live, err := b.bus.Subscribe(ctx, eventprocessor.TopicLive)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventprocessor.TopicLive, err)
	}
	alerts, err := b.bus.Subscribe(ctx, eventprocessor.TopicAlert)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventprocessor.TopicAlert, err)
	}
	logging.Info().Msg("websocket bridge subscribed to live and alert")

	for live != nil || alerts != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-live:
			if !ok {
				live = nil
				continue
			}
			b.forward(MessageTypeEvent, msg)
		case msg, ok := <-alerts:
			if !ok {
				alerts = nil
				continue
			}
			b.forward(MessageTypeAlert, msg)
		}
	}
	return fmt.Errorf("bus subscriptions closed")
}

// String identifies the service in the supervisor tree.
func (b *Bridge) String() string { return "websocket-bridge" }

func (b *Bridge) forward(messageType string, msg *message.Message) {
	defer msg.Ack()
	if !json.Valid(msg.Payload) {
		logging.Warn().Str("message_type", messageType).Msg("dropping non-JSON bus payload")
		return
	}
	b.hub.Broadcast(messageType, msg.Payload)
}
