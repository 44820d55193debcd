package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tsarna/moustique/pkg/moustique"
	"github.com/tsarna/moustique/pkg/moustique/codec"
	"github.com/tsarna/moustique/pkg/moustique/transport"
	"go.uber.org/zap"
)

// Password-protected broker query endpoints.
const (
	EndpointVersion     = "VERSION"
	EndpointFileVersion = "FILEVERSION"
	EndpointStats       = "STATS"
	EndpointClients     = "CLIENTS"
	EndpointTopics      = "TOPICS"
	EndpointPosters     = "POSTERS"
	EndpointPeerHosts   = "PEERHOSTS"
	EndpointCrooks      = "CROOKS"
)

// QueryEndpoints lists every endpoint accepted by Get.
var QueryEndpoints = []string{
	EndpointVersion,
	EndpointFileVersion,
	EndpointStats,
	EndpointClients,
	EndpointTopics,
	EndpointPosters,
	EndpointPeerHosts,
	EndpointCrooks,
}

// Get implements moustique.Client. It queries endpoint with the broker
// password and returns the decoded JSON result.
//
// A 401 answer returns ErrWrongCredentials after a single attempt. Any other
// failure is retried with the identical request, up to the configured number
// of retries; when they are used up Get logs the failure and returns (nil, nil).
// A cancelled context ends the loop with the context's error.
func (c *Client) Get(ctx context.Context, endpoint string, pwd string) (any, error) {
	path := "/" + strings.Trim(endpoint, "/")
	fields := url.Values{
		"client": {codec.Encode(c.name)},
		"pwd":    {codec.Encode(pwd)},
	}

	attempts := 1 + c.maxRetries
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.inst.Retry(ctx, endpoint)
		}

		value, err := c.getOnce(ctx, path, fields)
		if err == nil {
			return value, nil
		}

		if transport.IsUnauthorized(err) {
			c.logger.Error("Query rejected, wrong credentials", zap.String("endpoint", endpoint))
			if c.monitor != nil {
				c.monitor.OnFailure(ctx, c, moustique.OpGet, err)
			}
			return nil, fmt.Errorf("%s: %w", endpoint, ErrWrongCredentials)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if attempt < attempts {
			c.logger.Warn("Query failed, retrying",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Int("retries", c.maxRetries),
				zap.Error(err))
		}
	}

	c.fail(ctx, moustique.OpGet, lastErr,
		zap.String("endpoint", endpoint),
		zap.Int("attempts", attempts))

	return nil, nil
}

func (c *Client) getOnce(ctx context.Context, path string, fields url.Values) (any, error) {
	text, err := c.query(ctx, moustique.OpGet, path, fields)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return value, nil
}

// Version returns the broker's running version.
func (c *Client) Version(ctx context.Context, pwd string) (any, error) {
	return c.Get(ctx, EndpointVersion, pwd)
}

// FileVersion returns the checksum of the broker executable on disk.
func (c *Client) FileVersion(ctx context.Context, pwd string) (any, error) {
	return c.Get(ctx, EndpointFileVersion, pwd)
}

func (c *Client) Stats(ctx context.Context, pwd string) (any, error) {
	return c.Get(ctx, EndpointStats, pwd)
}

func (c *Client) Clients(ctx context.Context, pwd string) (any, error) {
	return c.Get(ctx, EndpointClients, pwd)
}

func (c *Client) Topics(ctx context.Context, pwd string) (any, error) {
	return c.Get(ctx, EndpointTopics, pwd)
}

func (c *Client) Posters(ctx context.Context, pwd string) (any, error) {
	return c.Get(ctx, EndpointPosters, pwd)
}

func (c *Client) PeerHosts(ctx context.Context, pwd string) (any, error) {
	return c.Get(ctx, EndpointPeerHosts, pwd)
}

func (c *Client) Crooks(ctx context.Context, pwd string) (any, error) {
	return c.Get(ctx, EndpointCrooks, pwd)
}
