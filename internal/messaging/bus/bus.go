// Package bus implements the in-process PUB/SUB messaging plane: six
// fixed topics, prefix-matching subscription, and a tagged-union
// domain.Message envelope over watermill's gochannel pub/sub.
package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/tradSys/internal/domain"
	"github.com/abdoElHodaky/tradSys/internal/domain/codec"
	"github.com/abdoElHodaky/tradSys/internal/observability/metrics"
)

// WireFormat selects how a Message's Payload is (de)serialized on the
// wire between Publish and Subscribe.
type WireFormat int

const (
	// WireFormatJSON is the default, cross-process-safe format.
	WireFormatJSON WireFormat = iota
	// WireFormatGob is the "bincode alternative" permitted only between
	// internal peers.
	WireFormatGob
)

// Bus wraps a watermill gochannel pub/sub with topic routing over the
// six fixed topics, one underlying watermill topic per concrete
// sub-topic string (e.g. "market.AAPL"). Every sub-topic message is
// also published on its bare topic ("market"), so a subscription to a
// bare topic sees every sub-topic, including ones created after it; a
// dotted prefix fans out to every matching concrete topic registered at
// subscribe time.
type Bus struct {
	pubsub  *gochannel.GoChannel
	wire    WireFormat
	logger  *zap.Logger
	metrics *metrics.Collectors

	mu          sync.Mutex
	knownTopics map[string]struct{}
}

// New constructs a Bus. wire selects the default wire format used by
// Publish; Subscribe auto-detects the format of each received message.
// A nil collectors disables metrics feeding.
func New(wire WireFormat, logger *zap.Logger, collectors *metrics.Collectors) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	wmLogger := watermill.NewStdLoggerWithOut(noopWriter{}, false, false)
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, wmLogger),
		wire:        wire,
		logger:      logger.With(zap.String("component", "messaging.bus")),
		metrics:     collectors,
		knownTopics: make(map[string]struct{}),
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

// concreteTopic builds the underlying watermill topic string for
// (topic, subTopic), e.g. ("market", "AAPL") -> "market.AAPL". An empty
// subTopic publishes/subscribes at the bare topic ("system", "").
func concreteTopic(topic domain.Topic, subTopic string) string {
	if subTopic == "" {
		return string(topic)
	}
	return string(topic) + "." + subTopic
}

func (b *Bus) encode(msg domain.Message) ([]byte, error) {
	if b.wire == WireFormatGob {
		return codec.EncodeInternal(msg)
	}
	return json.Marshal(msg)
}

// decode tries gob first (internal peers) and falls back to JSON,
// since a single subscriber may receive messages from publishers using
// either wire format.
func (b *Bus) decode(data []byte) (domain.Message, error) {
	if m, err := codec.DecodeInternal(data); err == nil {
		return m, nil
	}
	var m domain.Message
	err := json.Unmarshal(data, &m)
	return m, err
}

// Publish sends msg on (topic, subTopic).
func (b *Bus) Publish(topic domain.Topic, subTopic string, msg domain.Message) error {
	payload, err := b.encode(msg)
	if err != nil {
		return err
	}
	wmMsg := message.NewMessage(watermill.NewUUID(), payload)

	concrete := concreteTopic(topic, subTopic)
	b.mu.Lock()
	b.knownTopics[concrete] = struct{}{}
	b.knownTopics[string(topic)] = struct{}{}
	b.mu.Unlock()

	if err := b.pubsub.Publish(concrete, wmMsg); err != nil {
		return err
	}
	if subTopic != "" {
		if err := b.pubsub.Publish(string(topic), message.NewMessage(watermill.NewUUID(), payload)); err != nil {
			return err
		}
	}
	if b.metrics != nil {
		b.metrics.MessagesPublished.WithLabelValues(string(topic)).Inc()
	}
	return nil
}

// Subscribe returns a channel of every Message published to a concrete
// topic whose string representation has topicPrefix as a prefix,
// draining when ctx is cancelled (the Shutdown-triggered drain of
//). Only concrete topics already published to at call time are
// wired up; topics created afterward are not retroactively included —
// Subscribe to the bare topic (e.g. "market") to catch every sub-topic
// going forward instead.
func (b *Bus) Subscribe(ctx context.Context, topicPrefix string) (<-chan domain.Message, error) {
	b.mu.Lock()
	matches := make([]string, 0, len(b.knownTopics))
	dotted := strings.Contains(topicPrefix, ".")
	for t := range b.knownTopics {
		// An undotted prefix matches bare topics only: they already carry
		// a copy of every sub-topic message, so matching the concrete
		// sub-topics as well would deliver each message twice.
		if strings.HasPrefix(t, topicPrefix) && (dotted || !strings.Contains(t, ".")) {
			matches = append(matches, t)
		}
	}
	// The bare topic itself is always a valid subscribe target even if
	// nothing has published to it yet.
	matches = append(matches, topicPrefix)
	b.mu.Unlock()

	out := make(chan domain.Message, 64)
	var wg sync.WaitGroup

	seen := make(map[string]struct{}, len(matches))
	for _, concrete := range matches {
		if _, dup := seen[concrete]; dup {
			continue
		}
		seen[concrete] = struct{}{}

		sub, err := b.pubsub.Subscribe(ctx, concrete)
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case wmMsg, ok := <-sub:
					if !ok {
						return
					}
					msg, err := b.decode(wmMsg.Payload)
					if err != nil {
						b.logger.Warn("dropping undecodable message", zap.Error(err))
						if b.metrics != nil {
							b.metrics.MessagesDropped.WithLabelValues(topicPrefix).Inc()
						}
						wmMsg.Ack()
						continue
					}
					wmMsg.Ack()
					select {
					case out <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Close shuts the underlying pub/sub down.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
