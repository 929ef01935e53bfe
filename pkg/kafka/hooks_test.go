package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestHookFuncsNilSafe(t *testing.T) {
	var h ConsumerHook = HookFuncs{}
	ctx, _, data, err := h.BeforeHandle(context.Background(), "prices.loaded", kafka.Message{}, []byte("x"))
	assert.NoError(t, err)
	assert.NotNil(t, ctx)
	assert.Equal(t, []byte("x"), data)
	h.AfterHandle(ctx, "prices.loaded", kafka.Message{}, data, nil)
	h.OnError(ctx, "prices.loaded", kafka.Message{}, data, errors.New("x"))
}

func TestHookFuncsCallsThrough(t *testing.T) {
	var seen error
	h := HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { seen = err }}
	want := errors.New("boom")
	h.OnError(context.Background(), "t", kafka.Message{}, nil, want)
	assert.Equal(t, want, seen)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 0; attempt <= 70; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, 2*time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}
