package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_AdvanceAndSet(t *testing.T) {
	c := NewClock(TestTime())
	c.Advance(90 * time.Second)
	assert.Equal(t, TestTime().Add(90*time.Second), c.Now())

	later := TestTime().Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestClock_ConcurrentAdvance(t *testing.T) {
	c := NewClock(TestTime())
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, TestTime().Add(50*time.Second), c.Now())
}
