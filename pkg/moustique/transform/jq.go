// Package transform applies jq programs to values read from the broker.
package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/tsarna/moustique/pkg/moustique"
	"go.uber.org/zap"
)

// Query is a compiled jq program. It may be used concurrently.
//
// The program has access to the following variables:
//   - $topic: the topic or value name the input came from
type Query struct {
	source string
	code   *gojq.Code
}

// Compile parses and compiles a jq program.
//
// Example:
//
//	q, err := transform.Compile(`select(.temp > 20) | {room: $topic, temp}`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := q.Apply(ctx, value, "/sensors/kitchen")
func Compile(source string) (*Query, error) {
	parsed, err := gojq.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JQ query '%s': %w", source, err)
	}

	code, err := gojq.Compile(parsed, gojq.WithVariables([]string{"$topic"}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile JQ query '%s': %w", source, err)
	}

	return &Query{source: source, code: code}, nil
}

func (q *Query) String() string {
	return q.source
}

// Apply runs the program on value and returns every result, in order. An
// empty result means the program produced nothing (e.g. a failed select).
//
// Strings holding JSON are parsed first, so a message body can be queried
// directly; other strings are used as they are. Structs are converted to
// plain maps through their JSON form.
func (q *Query) Apply(ctx context.Context, value any, topic string) ([]any, error) {
	input, err := normalize(value)
	if err != nil {
		return nil, err
	}

	iter := q.code.RunWithContext(ctx, input, topic)

	var results []any
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := result.(error); ok {
			return nil, fmt.Errorf("jq '%s': %w", q.source, err)
		}
		results = append(results, result)
	}

	return results, nil
}

func normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, float64, int, map[string]any, []any:
		return v, nil
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return v, nil
		}
		return parsed, nil
	case []byte:
		return normalize(string(v))
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %T for jq: %w", value, err)
	}

	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("failed to convert %T for jq: %w", value, err)
	}
	return plain, nil
}

// Handler runs a jq program on each message body and forwards every result,
// JSON-encoded unless it is a plain string, to the wrapped handler. Messages
// for which the program produces nothing are dropped.
type Handler struct {
	query   *Query
	wrapped moustique.Handler
	logger  *zap.Logger
}

func NewHandler(query *Query, wrapped moustique.Handler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{query: query, wrapped: wrapped, logger: logger}
}

func (h *Handler) OnMessage(ctx context.Context, topic, message, from string) error {
	results, err := h.query.Apply(ctx, message, topic)
	if err != nil {
		h.logger.Error("JQ transform failed",
			zap.String("jq_query", h.query.source),
			zap.String("topic", topic),
			zap.Error(err))
		return err
	}

	for _, result := range results {
		text, err := Format(result)
		if err != nil {
			return err
		}
		if err := h.wrapped.OnMessage(ctx, topic, text, from); err != nil {
			return err
		}
	}
	return nil
}

// Format renders a jq result for display: strings as they are, everything
// else as compact JSON.
func Format(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode jq result: %w", err)
	}
	return string(data), nil
}
