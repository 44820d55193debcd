package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/moustique/pkg/moustique"
	"go.uber.org/zap/zaptest"
)

func TestCompile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		q, err := Compile(".name")
		require.NoError(t, err)
		assert.Equal(t, ".name", q.String())
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := Compile(".[")
		assert.ErrorContains(t, err, "failed to parse JQ query")
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := Compile("$nope")
		assert.ErrorContains(t, err, "failed to compile JQ query")
	})
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		input any
		topic string
		want  []any
	}{
		{
			name:  "field from map",
			query: ".message",
			input: map[string]any{"message": "42", "from": "x"},
			want:  []any{"42"},
		},
		{
			name:  "json string parsed",
			query: ".temp",
			input: `{"temp": 21.5}`,
			want:  []any{21.5},
		},
		{
			name:  "plain string kept",
			query: "ascii_upcase",
			input: "hello",
			want:  []any{"HELLO"},
		},
		{
			name:  "topic variable",
			query: "{topic: $topic, v: .}",
			input: "1",
			topic: "/t/v",
			want:  []any{map[string]any{"topic": "/t/v", "v": float64(1)}},
		},
		{
			name:  "multiple results",
			query: ".[]",
			input: []any{1, 2, 3},
			want:  []any{1, 2, 3},
		},
		{
			name:  "no results",
			query: "select(. > 10)",
			input: "5",
			want:  nil,
		},
		{
			name:  "struct converted",
			query: ".from",
			input: moustique.Value{Message: "m", From: "someone"},
			want:  []any{"someone"},
		},
		{
			name:  "bytes",
			query: ".a",
			input: []byte(`{"a":true}`),
			want:  []any{true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Compile(tt.query)
			require.NoError(t, err)

			got, err := q.Apply(ctx, tt.input, tt.topic)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("runtime error", func(t *testing.T) {
		q, err := Compile(`error("bad")`)
		require.NoError(t, err)

		_, err = q.Apply(ctx, nil, "")
		assert.ErrorContains(t, err, "bad")
	})

	t.Run("unconvertible input", func(t *testing.T) {
		q, err := Compile(".")
		require.NoError(t, err)

		_, err = q.Apply(ctx, make(chan int), "")
		assert.Error(t, err)
	})
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"text", "text"},
		{float64(3), "3"},
		{nil, "null"},
		{map[string]any{"a": 1}, `{"a":1}`},
		{[]any{"x", true}, `["x",true]`},
	}
	for _, tt := range tests {
		got, err := Format(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestHandler(t *testing.T) {
	ctx := context.Background()

	var got []string
	sink := moustique.HandlerFunc(func(ctx context.Context, topic, message, from string) error {
		got = append(got, topic+" "+message+" "+from)
		return nil
	})

	q, err := Compile(`select(.level == "warn") | .text`)
	require.NoError(t, err)
	h := NewHandler(q, sink, zaptest.NewLogger(t))

	require.NoError(t, h.OnMessage(ctx, "/logs", `{"level":"warn","text":"disk"}`, "a"))
	require.NoError(t, h.OnMessage(ctx, "/logs", `{"level":"info","text":"ok"}`, "b"))
	assert.Equal(t, []string{"/logs disk a"}, got)

	t.Run("error surfaced", func(t *testing.T) {
		q, err := Compile(".a.b")
		require.NoError(t, err)
		h := NewHandler(q, sink, nil)

		assert.Error(t, h.OnMessage(ctx, "/t", `{"a":"str"}`, "x"))
	})
}
