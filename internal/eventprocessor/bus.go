// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/quakegraph/internal/metrics"
)

// Pub/sub channels.
const (
	TopicLive    = "live"
	TopicAlert   = "alert"
	TopicControl = "control"
)

// ControlRecluster is the control-channel payload that requests a
// clustering run.
const ControlRecluster = "recluster"

// Bus is lightweight, fire-and-forget pub/sub. Messages are not persisted;
// subscribers that are not connected when a message is published miss it.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber

	mu     sync.RWMutex
	closed bool
}

// NewNATSBus creates a bus over core NATS (JetStream disabled). Every
// subscriber receives every message.
func NewNATSBus(url string, logger watermill.LoggerAdapter) (*Bus, error) {
	marshaler := &wmNats.NATSMarshaler{}
	natsOpts := connectOptions("quakegraph-bus")

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   marshaler,
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create bus publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		CloseTimeout:     5 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      marshaler,
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create bus subscriber: %w", err)
	}

	return &Bus{publisher: pub, subscriber: sub}, nil
}

// NewMemoryBus creates an in-process bus on the Watermill gochannel.
func NewMemoryBus(logger watermill.LoggerAdapter) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Bus{publisher: ch, subscriber: ch}
}

// Publish sends payload on topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	err := b.publisher.Publish(topic, msg)
	metrics.RecordBusPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns the messages published on topic until ctx ends.
// Callers must Ack every message they receive.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.subscriber.Subscribe(ctx, topic)
}

// Close shuts down the publisher and subscriber.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	// Closing the gochannel twice is a no-op.
	return errors.Join(b.publisher.Close(), b.subscriber.Close())
}
