package moustique

import "context"

// ClientMonitor observes client events. Operations stay fire-and-forget; the
// monitor is the only way to learn that one of them failed.
type ClientMonitor interface {
	OnSubscribe(ctx context.Context, client Client, topic string)
	OnResubscribe(ctx context.Context, client Client, topics []string)
	OnFailure(ctx context.Context, client Client, op string, err error)
}

// BaseMonitor provides no-op implementations of all ClientMonitor methods.
type BaseMonitor struct{}

func (BaseMonitor) OnSubscribe(ctx context.Context, client Client, topic string) {}

func (BaseMonitor) OnResubscribe(ctx context.Context, client Client, topics []string) {}

func (BaseMonitor) OnFailure(ctx context.Context, client Client, op string, err error) {}
