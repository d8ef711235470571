// Package bus fans workflow status changes out to in-process listeners
// such as the session history recorder and the terminal front-end.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"

	"github.com/yllada/ncconnect/common"
)

// TopicStatus carries common.Status snapshots.
const TopicStatus = "ncconnect.status"

// TypeStatus tags status envelopes.
const TypeStatus = "workflow.status"

// Envelope is the JSON payload of every bus message.
type Envelope struct {
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload under typ.
func NewEnvelope(typ string, payload interface{}) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "marshal payload")
	}
	return Envelope{Type: typ, At: time.Now(), Payload: b}, nil
}

// Bus is an in-memory publish/subscribe channel.
type Bus struct {
	ps *gochannel.GoChannel
}

// New creates a bus. Publish returns once every subscriber has taken the
// message, so subscribers see snapshots in publish order.
func New() *Bus {
	return &Bus{
		ps: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, logAdapter{}),
	}
}

// Publish sends a status snapshot to every subscriber.
func (b *Bus) Publish(s common.Status) error {
	env, err := NewEnvelope(TypeStatus, s)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	return b.ps.Publish(TopicStatus, message.NewMessage(watermill.NewUUID(), data))
}

// Subscribe returns status snapshots published after the call, in order.
// The channel closes when ctx is done or the bus is closed. A reader that
// stops draining it eventually blocks Publish.
func (b *Bus) Subscribe(ctx context.Context) (<-chan common.Status, error) {
	msgs, err := b.ps.Subscribe(ctx, TopicStatus)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe")
	}

	out := make(chan common.Status, 64)
	go func() {
		defer close(out)
		for msg := range msgs {
			s, err := decodeStatus(msg.Payload)
			msg.Ack()
			if err != nil {
				common.LogWarn("Bus: dropping message %s: %v", msg.UUID, err)
				continue
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodeStatus(data []byte) (common.Status, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return common.Status{}, errors.Wrap(err, "unmarshal envelope")
	}
	if env.Type != TypeStatus {
		return common.Status{}, errors.Errorf("unexpected type %q", env.Type)
	}
	var s common.Status
	if err := json.Unmarshal(env.Payload, &s); err != nil {
		return common.Status{}, errors.Wrap(err, "unmarshal status")
	}
	return s, nil
}

// Close shuts the bus down and closes every subscription.
func (b *Bus) Close() error {
	return b.ps.Close()
}

// logAdapter routes watermill's logging into the application logger.
type logAdapter struct {
	fields watermill.LogFields
}

func (l logAdapter) Error(msg string, err error, fields watermill.LogFields) {
	common.LogError("Bus: %s: %v %v", msg, err, l.fields.Add(fields))
}

func (l logAdapter) Info(msg string, fields watermill.LogFields) {
	common.LogDebug("Bus: %s %v", msg, l.fields.Add(fields))
}

func (l logAdapter) Debug(msg string, fields watermill.LogFields) {}

func (l logAdapter) Trace(msg string, fields watermill.LogFields) {}

func (l logAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return logAdapter{fields: l.fields.Add(fields)}
}
