package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	var firedAt []time.Time
	c.AfterFunc(3*time.Second, func() { fired = append(fired, "c"); firedAt = append(firedAt, c.Now()) })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a"); firedAt = append(firedAt, c.Now()) })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b"); firedAt = append(firedAt, c.Now()) })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 1, c.Pending())

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, start.Add(3*time.Second), firedAt[2])
	assert.Equal(t, start.Add(7*time.Second), c.Now())
}

func TestFakeStop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(2 * time.Second)
	assert.False(t, called)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeTimerScheduledFromCallback(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Second, tick)
		}
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(10 * time.Second)
	assert.Equal(t, 3, count)
}

func TestRealClock(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
	assert.WithinDuration(t, time.Now(), Real{}.Now(), time.Second)
}
