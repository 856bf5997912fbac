package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartdate"
)

func TestBus_PublishToSubscribers(t *testing.T) {
	t.Parallel()

	b := New()
	ch1 := make(chan smartdate.Detection, 2)
	ch2 := make(chan smartdate.Detection, 2)
	require.NoError(t, b.Subscribe("a", ch1))
	require.NoError(t, b.Subscribe("b", ch2))

	n := b.Publish(smartdate.Detection{Label: "alig"})
	assert.Equal(t, 2, n)
	assert.Equal(t, "alig", (<-ch1).Label)
	assert.Equal(t, "alig", (<-ch2).Label)
}

func TestBus_DuplicateSubscriber(t *testing.T) {
	t.Parallel()

	b := New()
	ch := make(chan smartdate.Detection, 1)
	require.NoError(t, b.Subscribe("a", ch))
	assert.ErrorIs(t, b.Subscribe("a", ch), ErrDuplicateSub)
}

func TestBus_FullChannelDropsNotBlocks(t *testing.T) {
	t.Parallel()

	b := New()
	full := make(chan smartdate.Detection, 1)
	full <- smartdate.Detection{Label: "first"}
	require.NoError(t, b.Subscribe("slow", full))

	// must return immediately with zero deliveries
	n := b.Publish(smartdate.Detection{Label: "second"})
	assert.Equal(t, 0, n)
	assert.Equal(t, "first", (<-full).Label)
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	b := New()
	ch := make(chan smartdate.Detection, 1)
	require.NoError(t, b.Subscribe("a", ch))
	require.NoError(t, b.Unsubscribe("a"))
	assert.ErrorIs(t, b.Unsubscribe("a"), ErrUnknownSubscriber)
	assert.Equal(t, 0, b.Publish(smartdate.Detection{Label: "x"}))
}

func TestBus_Close(t *testing.T) {
	t.Parallel()

	b := New()
	ch := make(chan smartdate.Detection, 1)
	require.NoError(t, b.Subscribe("a", ch))
	b.Close()
	b.Close() // idempotent

	assert.Equal(t, 0, b.Publish(smartdate.Detection{Label: "x"}))
	assert.ErrorIs(t, b.Subscribe("b", ch), ErrClosed)
}
