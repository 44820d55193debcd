package moustique

import (
	"context"
	"reflect"
	"slices"
	"sync"
)

// Handler receives messages picked up for a subscribed topic.
//
// Handlers are told apart by identity, so their dynamic type must be
// comparable: use a pointer or HandlerFunc rather than a func, map or slice
// type. Other handlers are rejected by Registry.Add.
type Handler interface {
	OnMessage(ctx context.Context, topic string, message string, from string) error
}

type funcHandler struct {
	fn func(ctx context.Context, topic, message, from string) error
}

func (h *funcHandler) OnMessage(ctx context.Context, topic, message, from string) error {
	return h.fn(ctx, topic, message, from)
}

// HandlerFunc wraps fn as a Handler. Every call returns a distinct handler, so
// subscribe the returned value, not fn, when relying on duplicate detection.
func HandlerFunc(fn func(ctx context.Context, topic, message, from string) error) Handler {
	return &funcHandler{fn: fn}
}

// Registry maps topics to their handlers, both in registration order.
// A handler is registered at most once per topic.
type Registry struct {
	mu       sync.RWMutex
	topics   []string
	handlers map[string][]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string][]Handler),
	}
}

// Add registers handler for topic. It returns false, leaving the registry
// unchanged, if handler is already registered for topic or is not Comparable.
func (r *Registry) Add(topic string, handler Handler) bool {
	if !Comparable(handler) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, known := r.handlers[topic]
	for _, h := range existing {
		if sameHandler(h, handler) {
			return false
		}
	}

	if !known {
		r.topics = append(r.topics, topic)
	}
	r.handlers[topic] = append(existing, handler)

	return true
}

// Handlers returns a copy of the handlers registered for topic.
func (r *Registry) Handlers(topic string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.handlers[topic])
}

// Topics returns every topic with at least one handler, in first-registration order.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.topics)
}

// Len returns the number of topics with at least one handler.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.topics)
}

// Comparable reports whether h is a non-nil handler whose dynamic type
// supports ==, which registration needs to detect duplicates.
func Comparable(h Handler) bool {
	return h != nil && reflect.TypeOf(h).Comparable()
}

func sameHandler(a, b Handler) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b) && a == b
}
