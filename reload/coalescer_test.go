package reload

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalescer_RunsLatestPending(t *testing.T) {
	c := NewCoalescer()

	var mu sync.Mutex
	var order []string
	record := func(name string) Task {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		}
	}

	started := make(chan struct{})
	release := make(chan struct{})
	c.Submit(func() {
		close(started)
		<-release
		record("first")()
	})
	<-started

	assert.False(t, c.Submit(record("second")))
	assert.True(t, c.Submit(record("third")))
	assert.True(t, c.Submit(record("fourth")))

	close(release)
	c.Wait()

	assert.Equal(t, []string{"first", "fourth"}, order)
	ran, replaced := c.Stats()
	assert.Equal(t, 2, ran)
	assert.Equal(t, 2, replaced)
}

func TestCoalescer_Restarts(t *testing.T) {
	c := NewCoalescer()
	count := 0

	for i := 0; i < 3; i++ {
		c.Submit(func() { count++ })
		c.Wait()
	}
	assert.Equal(t, 3, count)
}

func TestCoalescer_WaitIdle(t *testing.T) {
	c := NewCoalescer()
	c.Wait()
	ran, replaced := c.Stats()
	assert.Zero(t, ran)
	assert.Zero(t, replaced)
}
