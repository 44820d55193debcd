package subutils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/moustique/pkg/moustique"
)

func TestFilterHandler(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		patterns []string
		topic    string
		want     bool
	}{
		{"exact", []string{"sensors/kitchen"}, "sensors/kitchen", true},
		{"exact mismatch", []string{"sensors/kitchen"}, "sensors/hall", false},
		{"single level", []string{"sensors/+"}, "sensors/hall", true},
		{"single level too deep", []string{"sensors/+"}, "sensors/hall/temp", false},
		{"multi level", []string{"sensors/#"}, "sensors/hall/temp", true},
		{"second pattern", []string{"alarms/#", "sensors/+/temp"}, "sensors/hall/temp", true},
		{"no patterns", nil, "sensors/hall", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &recordingHandler{}
			h := NewFilterHandler(inner, tt.patterns...)

			assert.Equal(t, tt.want, h.Matches(tt.topic))
			require.NoError(t, h.OnMessage(ctx, tt.topic, "m", "f"))

			if tt.want {
				assert.Equal(t, 1, inner.calls)
				assert.Equal(t, tt.topic, inner.topic)
			} else {
				assert.Zero(t, inner.calls)
			}
		})
	}

	t.Run("extract", func(t *testing.T) {
		h := NewFilterHandler(nil, "alarms/#", "sensors/+room/+kind")

		assert.Equal(t, map[string]string{"room": "hall", "kind": "temp"}, h.Extract("sensors/hall/temp"))
		assert.Nil(t, h.Extract("other/topic"))
	})

	t.Run("nil wrapped", func(t *testing.T) {
		h := NewFilterHandler(nil, "#")
		assert.NoError(t, h.OnMessage(ctx, "a", "m", "f"))
	})

	t.Run("composes with logging", func(t *testing.T) {
		inner := &recordingHandler{}
		var h moustique.Handler = NewFilterHandler(NewLoggingHandler(inner, nil, 0), "a/+")

		require.NoError(t, h.OnMessage(ctx, "a/b", "m", "f"))
		require.NoError(t, h.OnMessage(ctx, "b/b", "m", "f"))
		assert.Equal(t, 1, inner.calls)
	})
}
