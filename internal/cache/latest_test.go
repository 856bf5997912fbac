package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartdate"
)

func TestLatest_EmptyUntilFirstSet(t *testing.T) {
	t.Parallel()

	l := NewLatest()
	_, ok := l.Get()
	assert.False(t, ok)
	assert.True(t, l.LastUpdate().IsZero())
}

func TestLatest_SetOverwrites(t *testing.T) {
	t.Parallel()

	l := NewLatest()
	l.Set(smartdate.Detection{Label: "alig", Confidence: 80})
	l.Set(smartdate.Detection{Label: smartdate.LabelNone})

	d, ok := l.Get()
	require.True(t, ok)
	// the slot always reflects the newest message, "none" included
	assert.Equal(t, smartdate.LabelNone, d.Label)
	assert.False(t, l.LastUpdate().IsZero())
}

func TestLatest_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	l := NewLatest()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Set(smartdate.Detection{Label: "kenta", Confidence: j % 101})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if d, ok := l.Get(); ok {
					assert.Equal(t, "kenta", d.Label)
				}
			}
		}()
	}
	wg.Wait()
}
