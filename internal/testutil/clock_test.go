package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock(t *testing.T) {
	c := NewDeterministicClock(time.Second)

	assert.Equal(t, DefaultEpoch, c.Current())
	assert.Equal(t, DefaultEpoch.Add(time.Second), c.Now())
	assert.Equal(t, DefaultEpoch.Add(2*time.Second), c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, DefaultEpoch.Add(time.Minute+2*time.Second), c.Current())

	c.Reset()
	assert.Equal(t, DefaultEpoch, c.Current())
}

func TestDeterministicClock_Concurrent(t *testing.T) {
	c := NewDeterministicClock(time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultEpoch.Add(1000*time.Millisecond), c.Current())
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("run")
	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())

	assert.Equal(t, "id-1", NewSequentialIDs("").Generate())
}
