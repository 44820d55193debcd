package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"

	"github.com/tsarna/moustique/pkg/moustique"
	"github.com/tsarna/moustique/pkg/moustique/codec"
	"go.uber.org/zap"
)

// batch is the list of pending messages the broker returned for one topic.
type batch struct {
	topic    string
	messages []moustique.Message
	// invalid holds the decode errors of messages left out of messages.
	invalid []error
}

// Tick implements moustique.Client. It performs one Pickup.
func (c *Client) Tick(ctx context.Context) {
	c.Pickup(ctx)
}

// Pickup implements moustique.Client. It drains the client's pending messages
// and dispatches them, topic by topic in the order the broker returned them.
func (c *Client) Pickup(ctx context.Context) {
	text, err := c.query(ctx, moustique.OpPickup, "/PICKUP", url.Values{
		"client": {codec.Encode(c.name)},
	})
	if err != nil {
		c.fail(ctx, moustique.OpPickup, err)
		return
	}

	batches, err := decodePickup(text)
	if err != nil {
		c.fail(ctx, moustique.OpPickup, fmt.Errorf("%w: %w", ErrMalformedResponse, err))
		return
	}

	// The broker has already drained these, so deliver what could be decoded.
	for _, b := range batches {
		if len(b.invalid) > 0 {
			c.fail(ctx, moustique.OpPickup,
				fmt.Errorf("%w: skipped %d message(s): %w", ErrMalformedResponse, len(b.invalid), errors.Join(b.invalid...)),
				zap.String("topic", b.topic))
		}
	}

	c.dispatch(ctx, batches)
}

// dispatch hands every message to the user handlers of its topic, in
// registration order. The system handler for a topic runs only when the topic
// has no user handler.
func (c *Client) dispatch(ctx context.Context, batches []batch) {
	for _, b := range batches {
		delivered := 0

		for _, msg := range b.messages {
			topic := msg.Topic
			if topic == "" {
				topic = b.topic
			}

			handlers := c.registry.Handlers(b.topic)
			if len(handlers) > 0 {
				for _, h := range handlers {
					if err := c.safeRunHandler(ctx, h, topic, msg); err != nil {
						c.logger.Warn("Handler error",
							zap.String("topic", topic),
							zap.String("from", msg.From),
							zap.Error(err))
					}
				}
				delivered++
				continue
			}

			if sys, ok := c.system[b.topic]; ok {
				c.safeRunSystem(ctx, sys, topic, msg.Message)
				delivered++
				continue
			}

			c.logger.Debug("No handler for topic", zap.String("topic", b.topic))
		}

		c.inst.Delivered(ctx, b.topic, delivered)
	}
}

// safeRunHandler runs a handler, turning a panic into an error so the
// remaining handlers still run.
func (c *Client) safeRunHandler(ctx context.Context, h moustique.Handler, topic string, msg moustique.Message) (err error) {
	defer func() {
		if e := recover(); e != nil {
			c.logger.Error("Caught panic in handler",
				zap.String("topic", topic),
				zap.Any("panic", e),
				zap.ByteString("stack", debug.Stack()))
			switch v := e.(type) {
			case error:
				err = fmt.Errorf("panic in handler: %w", v)
			default:
				err = fmt.Errorf("panic in handler: %v", e)
			}
		}
	}()

	return h.OnMessage(ctx, topic, msg.Message, msg.From)
}

func (c *Client) safeRunSystem(ctx context.Context, sys systemHandler, topic, message string) {
	defer func() {
		if e := recover(); e != nil {
			c.logger.Error("Caught panic in system handler",
				zap.String("topic", topic),
				zap.Any("panic", e),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	sys(ctx, topic, message)
}

// decodePickup parses a PICKUP body, an object mapping topics to message
// lists, keeping the topics in document order. A message that does not decode
// is recorded in its batch's invalid list instead of failing the body.
func decodePickup(text string) ([]batch, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(text))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var batches []batch
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		topic, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected topic, got %v", keyTok)
		}

		var raw []json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("topic %q: %w", topic, err)
		}

		b := batch{topic: topic}
		for i, r := range raw {
			var msg moustique.Message
			if err := json.Unmarshal(r, &msg); err != nil {
				b.invalid = append(b.invalid, fmt.Errorf("topic %q message %d: %w", topic, i, err))
				continue
			}
			b.messages = append(b.messages, msg)
		}

		batches = append(batches, b)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return batches, nil
}
