// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/metrics"
)

var _ Log = (*JetStreamLog)(nil)

// LogStats summarizes the consumer group's position in the log.
type LogStats struct {
	Appended    uint64 `json:"appended"`
	Pending     int    `json:"pending"`
	Unread      uint64 `json:"unread"`
	DeadLetters uint64 `json:"dead_letters"`
}

// JetStreamLog implements Log on NATS JetStream. The group is a durable pull
// consumer with explicit acks. An entry that is not acked within AckWait is
// redelivered through the next ReadNew, so ReadPending never has anything
// to return: JetStream owns the pending set and its redelivery schedule.
type JetStreamLog struct {
	js      jetstream.JetStream
	streams *StreamManager
	config  StreamConfig
	breaker *gobreaker.CircuitBreaker[*jetstream.PubAck]

	mu       sync.Mutex
	consumer jetstream.Consumer
	inflight map[string]jetstream.Msg
}

// NewJetStreamLog creates the log over an existing connection. Streams are
// created by EnsureGroup.
func NewJetStreamLog(nc *natsgo.Conn, cfg StreamConfig) (*JetStreamLog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return &JetStreamLog{
		js:       js,
		streams:  NewStreamManager(js, cfg),
		config:   cfg,
		breaker:  NewCircuitBreaker[*jetstream.PubAck](DefaultCircuitBreakerConfig("jetstream-append")),
		inflight: make(map[string]jetstream.Msg),
	}, nil
}

// Append publishes payload to the event subject. The entry id is the stream
// sequence.
func (l *JetStreamLog) Append(ctx context.Context, payload []byte) (string, error) {
	ack, err := ExecuteWithBreaker(l.breaker, func() (*jetstream.PubAck, error) {
		return l.js.Publish(ctx, l.config.Subject, payload)
	})
	metrics.RecordLogAppend(err)
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", l.config.Name, err)
	}
	return strconv.FormatUint(ack.Sequence, 10), nil
}

// EnsureGroup creates both streams and the durable consumer.
func (l *JetStreamLog) EnsureGroup(ctx context.Context) error {
	if err := l.streams.EnsureStreams(ctx); err != nil {
		return err
	}
	cons, err := l.js.CreateOrUpdateConsumer(ctx, l.config.Name, jetstream.ConsumerConfig{
		Durable:       l.config.Group,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       l.config.AckWait,
		MaxDeliver:    l.config.maxDeliver(),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		FilterSubject: l.config.Subject,
	})
	if err != nil {
		return fmt.Errorf("create consumer group %s: %w", l.config.Group, err)
	}

	l.mu.Lock()
	l.consumer = cons
	l.mu.Unlock()
	return nil
}

// ReadPending returns nothing; redeliveries arrive through ReadNew.
func (l *JetStreamLog) ReadPending(context.Context, int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.consumer == nil {
		return nil, ErrGroupNotReady
	}
	return nil, nil
}

// ReadNew fetches up to count messages, waiting up to block. Messages whose
// ack window elapsed come back here with a higher delivery count.
func (l *JetStreamLog) ReadNew(ctx context.Context, count int, block time.Duration) ([]Entry, error) {
	l.mu.Lock()
	cons := l.consumer
	l.mu.Unlock()
	if cons == nil {
		return nil, ErrGroupNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch, err := cons.Fetch(count, jetstream.FetchMaxWait(block))
	if err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", l.config.Group, err)
	}

	var out []Entry
	for msg := range batch.Messages() {
		md, err := msg.Metadata()
		if err != nil {
			continue
		}
		id := strconv.FormatUint(md.Sequence.Stream, 10)
		deliveries := int(md.NumDelivered) - 1
		if deliveries < 0 {
			deliveries = 0
		}

		l.mu.Lock()
		l.inflight[id] = msg
		l.mu.Unlock()

		out = append(out, Entry{ID: id, Deliveries: deliveries, Payload: msg.Data()})
	}
	if err := batch.Error(); err != nil && !isFetchTimeout(err) {
		return out, fmt.Errorf("fetch from %s: %w", l.config.Group, err)
	}
	return out, nil
}

func isFetchTimeout(err error) bool {
	return errors.Is(err, natsgo.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Ack acknowledges the most recent delivery of id and waits for the server
// to confirm it.
func (l *JetStreamLog) Ack(ctx context.Context, id string) error {
	l.mu.Lock()
	msg, ok := l.inflight[id]
	delete(l.inflight, id)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	if err := msg.DoubleAck(ctx); err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}

// DeadLetter publishes dl as JSON to the dead-letter subject. The entry id
// doubles as the JetStream message id so a retried dead-letter write is
// deduplicated by the server.
func (l *JetStreamLog) DeadLetter(ctx context.Context, dl DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if _, err := l.js.Publish(ctx, l.config.DLQSubject, data, jetstream.WithMsgID("dlq-"+dl.EntryID)); err != nil {
		l.mu.Lock()
		msg, ok := l.inflight[dl.EntryID]
		l.mu.Unlock()
		if ok && l.terminateIfFinal(msg, dl.EntryID, err) {
			l.mu.Lock()
			delete(l.inflight, dl.EntryID)
			l.mu.Unlock()
		}
		return fmt.Errorf("append to %s: %w", l.config.DLQName, err)
	}
	return nil
}

// terminable is the part of jetstream.Msg needed to give up on a message.
type terminable interface {
	Metadata() (*jetstream.MsgMetadata, error)
	Term() error
}

// terminateIfFinal handles a dead-letter write that failed on the last
// delivery the server will make. Such a message would otherwise sit unacked
// until MaxDeliver silently drops it, so it is logged at error level
// and terminated. It reports whether the message was terminated.
func (l *JetStreamLog) terminateIfFinal(msg terminable, id string, cause error) bool {
	md, err := msg.Metadata()
	if err != nil || md.NumDelivered < uint64(l.config.maxDeliver()) {
		return false
	}
	logging.Error().
		Err(cause).
		Str("entry_id", id).
		Uint64("deliveries", md.NumDelivered).
		Str("dlq", l.config.DLQName).
		Msg("dead-letter write failed on final delivery; entry terminated and lost")
	if err := msg.Term(); err != nil {
		logging.Error().Err(err).Str("entry_id", id).Msg("terminate entry failed")
	}
	return true
}

// Stats reports stream and consumer counters.
func (l *JetStreamLog) Stats(ctx context.Context) (LogStats, error) {
	var stats LogStats
	info, err := l.streams.StreamInfo(ctx)
	if err != nil {
		return stats, err
	}
	stats.Appended = info.State.LastSeq

	if dlq, err := l.streams.DLQInfo(ctx); err == nil {
		stats.DeadLetters = dlq.State.Msgs
	}

	l.mu.Lock()
	cons := l.consumer
	l.mu.Unlock()
	if cons == nil {
		return stats, nil
	}
	ci, err := cons.Info(ctx)
	if err != nil {
		return stats, fmt.Errorf("consumer info: %w", err)
	}
	stats.Pending = ci.NumAckPending
	stats.Unread = ci.NumPending
	return stats, nil
}
