package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// capture collects delivered events for assertions.
type capture struct {
	events []Event
}

func (c *capture) out(ev Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestAppendPreservesOrder(t *testing.T) {
	t.Parallel()

	var c capture
	m := New(c.out)

	for i := range 10 {
		require.NoError(t, m.Append(Event{Type: EventTextDelta, Content: fmt.Sprintf("chunk-%d", i)}))
	}

	require.Len(t, c.events, 10)
	for i, ev := range c.events {
		assert.Equal(t, fmt.Sprintf("chunk-%d", i), ev.Content)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	t.Parallel()

	var c capture
	m := New(c.out)

	require.NoError(t, m.Append(Event{Type: EventTextDelta, Content: "before"}))
	require.NoError(t, m.Close())

	t.Run("append after close", func(t *testing.T) {
		err := m.Append(Event{Type: EventTextDelta, Content: "after"})
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("double close", func(t *testing.T) {
		assert.ErrorIs(t, m.Close(), ErrClosed)
	})

	assert.Len(t, c.events, 1, "nothing may be delivered after close")
}

func TestConcurrentAppendsAreSerialized(t *testing.T) {
	t.Parallel()

	var c capture
	m := New(c.out)

	const (
		producers = 8
		perProducer = 50
	)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				_ = m.Append(Event{Type: EventTextDelta, Content: fmt.Sprintf("%d-%d", p, i)})
			}
		}()
	}
	wg.Wait()

	// Total order across producers is unspecified, but each producer's own
	// events must keep their relative order and nothing may be lost.
	require.Len(t, c.events, producers*perProducer)
	seen := make(map[int]int, producers)
	for _, ev := range c.events {
		var p, i int
		_, err := fmt.Sscanf(ev.Content.(string), "%d-%d", &p, &i)
		require.NoError(t, err)
		assert.Equal(t, seen[p], i, "producer %d events out of order", p)
		seen[p]++
	}
}

func TestOutputErrorPropagates(t *testing.T) {
	t.Parallel()

	wantErr := fmt.Errorf("client went away")
	m := New(func(Event) error { return wantErr })

	err := m.Append(Event{Type: EventTextDelta, Content: "x"})
	assert.ErrorIs(t, err, wantErr)
}

func TestSinkContextPlumbing(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SinkFromContext(context.Background()), "missing sink degrades to nil")

	var c capture
	m := New(c.out)
	ctx := ContextWithSink(context.Background(), m)
	assert.Same(t, m, SinkFromContext(ctx))
}
