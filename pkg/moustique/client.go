package moustique

import "context"

// Reserved topics.
const (
	// ResubscribeTopic is published by the broker when it has lost its subscriptions,
	// typically after a restart.
	ResubscribeTopic = "/server/action/resubscribe"

	// LogTopic receives the client's own operational log lines.
	LogTopic = "/mushroom/logs/moustique_lib/INFO"
)

// Operation names, as reported to monitors and metrics.
const (
	OpPublish        = "publish"
	OpPutVal         = "putval"
	OpGetVal         = "getval"
	OpGetValsByRegex = "getvalsbyregex"
	OpSubscribe      = "subscribe"
	OpResubscribe    = "resubscribe"
	OpPickup         = "pickup"
	OpGet            = "get"
)

// Client is a connection to a Moustique broker. Apart from Get, operations
// are fire-and-forget: failures are logged and reported to a ClientMonitor.
type Client interface {
	// Name returns the identity sent as "client"/"from" on every request.
	Name() string

	Publish(ctx context.Context, topic string, message string)
	PutVal(ctx context.Context, name string, value string)
	GetVal(ctx context.Context, name string) any

	Subscribe(ctx context.Context, topic string, handler Handler)
	Resubscribe(ctx context.Context)

	Pickup(ctx context.Context)
	Tick(ctx context.Context)

	Get(ctx context.Context, endpoint string, pwd string) (any, error)
}
