// Package subutils provides handlers that wrap other handlers.
package subutils

import (
	"context"

	"github.com/amir-yaghoubi/mqttpattern"
	"github.com/tsarna/moustique/pkg/moustique"
)

// FilterHandler forwards only messages whose topic matches one of its
// MQTT-style patterns. "+" matches one topic level and "#" any remaining levels;
// a named level such as "+room" can be read back with Extract.
//
// The broker delivers by subscription key, so this is useful when a message
// carries a more specific topic than the one subscribed to.
type FilterHandler struct {
	wrapped  moustique.Handler
	patterns []string
}

// NewFilterHandler creates a FilterHandler. With no patterns nothing is forwarded.
func NewFilterHandler(wrapped moustique.Handler, patterns ...string) *FilterHandler {
	return &FilterHandler{
		wrapped:  wrapped,
		patterns: patterns,
	}
}

// Matches reports whether topic matches any of the handler's patterns.
func (f *FilterHandler) Matches(topic string) bool {
	for _, pattern := range f.patterns {
		if mqttpattern.Matches(pattern, topic) {
			return true
		}
	}
	return false
}

// Extract returns the named wildcard values of the first pattern matching
// topic, or nil when none matches.
func (f *FilterHandler) Extract(topic string) map[string]string {
	for _, pattern := range f.patterns {
		if mqttpattern.Matches(pattern, topic) {
			return mqttpattern.Extract(pattern, topic)
		}
	}
	return nil
}

func (f *FilterHandler) OnMessage(ctx context.Context, topic, message, from string) error {
	if f.wrapped == nil || !f.Matches(topic) {
		return nil
	}
	return f.wrapped.OnMessage(ctx, topic, message, from)
}
