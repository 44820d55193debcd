package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tsarna/moustique/pkg/moustique"
	"github.com/tsarna/moustique/pkg/moustique/codec"
	"github.com/tsarna/moustique/pkg/moustique/o11y"
	"github.com/tsarna/moustique/pkg/moustique/transport"
	"go.uber.org/zap"
)

// NiceDateTimeLayout is the layout of the updated_nicedatetime field.
const NiceDateTimeLayout = "2006-01-02 15:04:05"

var (
	// ErrWrongCredentials is returned by Get when the broker answers 401.
	ErrWrongCredentials = errors.New("wrong credentials")

	// ErrMalformedResponse marks a decoded body that is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed response")
)

type systemHandler func(ctx context.Context, topic, message string)

// Client implements moustique.Client over HTTP.
//
// Every method is a blocking round trip on the caller's goroutine. Publish,
// PutVal, Subscribe, Resubscribe and Pickup never return errors; failures are
// logged and passed to the monitor.
type Client struct {
	baseURL  string
	identity Identity
	name     string
	username string
	password string

	transport transport.Transport
	logger    *zap.Logger
	monitor   moustique.ClientMonitor
	inst      *o11y.ClientInstruments

	registry   *moustique.Registry
	system     map[string]systemHandler
	maxRetries int
	now        func() time.Time
}

var _ moustique.Client = (*Client)(nil)

// Name implements moustique.Client.
func (c *Client) Name() string {
	return c.name
}

// Identity returns the parts the client name was built from.
func (c *Client) Identity() Identity {
	return c.identity
}

// BaseURL returns the broker URL, e.g. "http://127.0.0.1:33335".
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Registry exposes the client's subscriptions.
func (c *Client) Registry() *moustique.Registry {
	return c.registry
}

// Publish implements moustique.Client.
func (c *Client) Publish(ctx context.Context, topic string, message string) {
	fields := c.stamped(url.Values{
		"topic":   {codec.Encode(topic)},
		"message": {codec.Encode(message)},
	})

	if _, err := c.send(ctx, moustique.OpPublish, http.MethodPost, "/POST", fields); err != nil {
		c.fail(ctx, moustique.OpPublish, err, zap.String("topic", topic))
		return
	}

	c.logger.Debug("Published message", zap.String("topic", topic))
}

// PutVal implements moustique.Client. Status 200 and 308 both count as success.
func (c *Client) PutVal(ctx context.Context, name string, value string) {
	fields := c.stamped(url.Values{
		"valname": {codec.Encode(name)},
		"val":     {codec.Encode(value)},
	})

	if _, err := c.send(ctx, moustique.OpPutVal, http.MethodPut, "/PUTVAL", fields, http.StatusOK, http.StatusPermanentRedirect); err != nil {
		c.fail(ctx, moustique.OpPutVal, err, zap.String("valname", name))
		return
	}

	c.logger.Debug("Stored value", zap.String("valname", name))
}

// GetVal implements moustique.Client. It returns the decoded JSON value, or nil
// when the broker returned nothing or the request failed.
func (c *Client) GetVal(ctx context.Context, name string) any {
	var value any
	if !c.getJSON(ctx, moustique.OpGetVal, "/GETVAL", name, &value) {
		return nil
	}
	return value
}

// GetValue is GetVal decoded into a moustique.Value.
func (c *Client) GetValue(ctx context.Context, name string) (*moustique.Value, bool) {
	var value *moustique.Value
	if !c.getJSON(ctx, moustique.OpGetVal, "/GETVAL", name, &value) || value == nil {
		return nil, false
	}
	return value, true
}

// GetValsByRegex returns every stored value whose name matches pattern, keyed by name.
func (c *Client) GetValsByRegex(ctx context.Context, pattern string) map[string]any {
	var values map[string]any
	if !c.getJSON(ctx, moustique.OpGetValsByRegex, "/GETVALSBYREGEX", pattern, &values) {
		return nil
	}
	return values
}

func (c *Client) getJSON(ctx context.Context, op, path, topic string, out any) bool {
	fields := url.Values{
		"client": {codec.Encode(c.name)},
		"topic":  {codec.Encode(topic)},
	}

	text, err := c.query(ctx, op, path, fields)
	if err != nil {
		c.fail(ctx, op, err, zap.String("topic", topic))
		return false
	}
	if text == "" {
		return false
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		c.fail(ctx, op, fmt.Errorf("%w: %w", ErrMalformedResponse, err), zap.String("topic", topic))
		return false
	}
	return true
}

// Subscribe implements moustique.Client. The handler is registered only after
// the broker accepted the subscription; registering the same handler twice for
// a topic has no further effect.
func (c *Client) Subscribe(ctx context.Context, topic string, handler moustique.Handler) {
	if handler == nil {
		c.logger.Warn("Ignoring subscription without handler", zap.String("topic", topic))
		return
	}
	if !moustique.Comparable(handler) {
		c.logger.Warn("Ignoring handler of non-comparable type, use a pointer or moustique.HandlerFunc",
			zap.String("topic", topic),
			zap.String("type", fmt.Sprintf("%T", handler)))
		return
	}

	if err := c.subscribeRemote(ctx, moustique.OpSubscribe, topic); err != nil {
		c.fail(ctx, moustique.OpSubscribe, err, zap.String("topic", topic))
		return
	}

	c.logger.Info("Subscribed to topic", zap.String("client", c.name), zap.String("topic", topic))

	if !c.registry.Add(topic, handler) {
		c.logger.Warn("Handler already registered for topic", zap.String("topic", topic))
	}

	if c.monitor != nil {
		c.monitor.OnSubscribe(ctx, c, topic)
	}
}

// Resubscribe implements moustique.Client. It repeats SUBSCRIBE for every
// registered topic and announces the event on moustique.LogTopic.
func (c *Client) Resubscribe(ctx context.Context) {
	topics := c.registry.Topics()

	if len(topics) > 0 {
		c.Publish(ctx, moustique.LogTopic, c.name+" Resubscribing all subscriptions")
	}

	for _, topic := range topics {
		c.logger.Info("Resubscribing", zap.String("client", c.name), zap.String("topic", topic))
		if err := c.subscribeRemote(ctx, moustique.OpResubscribe, topic); err != nil {
			c.fail(ctx, moustique.OpResubscribe, err, zap.String("topic", topic))
		}
	}

	c.Publish(ctx, moustique.LogTopic, c.name+" Resubscribed all subscriptions")

	if c.monitor != nil {
		c.monitor.OnResubscribe(ctx, c, topics)
	}
}

func (c *Client) onResubscribeRequest(ctx context.Context, topic, message string) {
	c.logger.Info("Broker requested resubscription", zap.String("topic", topic))
	c.Resubscribe(ctx)
}

func (c *Client) subscribeRemote(ctx context.Context, op, topic string) error {
	fields := url.Values{
		"topic":  {codec.Encode(topic)},
		"client": {codec.Encode(c.name)},
	}
	_, err := c.send(ctx, op, http.MethodPost, "/SUBSCRIBE", fields)
	return err
}

// stamped adds the time and sender fields shared by POST and PUTVAL.
func (c *Client) stamped(fields url.Values) url.Values {
	now := c.now()
	fields.Set("updated_time", codec.Encode(strconv.FormatInt(now.Unix(), 10)))
	fields.Set("updated_nicedatetime", codec.Encode(now.Local().Format(NiceDateTimeLayout)))
	fields.Set("from", codec.Encode(c.name))
	return fields
}

// send performs one round trip. accept lists the statuses counted as success;
// empty means any 2xx.
func (c *Client) send(ctx context.Context, op, method, path string, fields url.Values, accept ...int) (*transport.Response, error) {
	form := maps.Clone(fields)
	if form == nil {
		form = url.Values{}
	}
	if c.username != "" && c.password != "" {
		form.Set("username", codec.Encode(c.username))
		form.Set("password", codec.Encode(c.password))
	}

	ctx, obs := c.inst.StartRequest(ctx, op)
	resp, err := c.transport.Do(ctx, &transport.Request{
		Method: method,
		URL:    c.baseURL + path,
		Fields: form,
		Accept: accept,
	})
	obs.End(err)

	return resp, err
}

// query is send followed by decoding the response body.
func (c *Client) query(ctx context.Context, op, path string, fields url.Values) (string, error) {
	resp, err := c.send(ctx, op, http.MethodPost, path, fields)
	if err != nil {
		return "", err
	}

	text, err := codec.Decode(strings.TrimSpace(resp.Body))
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) fail(ctx context.Context, op string, err error, fields ...zap.Field) {
	c.logger.Warn("Operation failed", append([]zap.Field{zap.String("op", op), zap.Error(err)}, fields...)...)

	if c.monitor != nil {
		c.monitor.OnFailure(ctx, c, op, err)
	}
}
