package util

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMaxMin(t *testing.T) {
	assert.Equal(t, uint64(5), Max(uint64(5), 3))
	assert.Equal(t, uint64(3), Min(uint64(5), 3))
	assert.Equal(t, "b", Max("a", "b"))
}

func TestAtomicPtr(t *testing.T) {
	var p AtomicPtr[int]
	assert.Nil(t, p.Load())
	one, two := 1, 2
	p.Store(&one)
	assert.Same(t, &one, p.Swap(&two))
	assert.Equal(t, 2, *p.Load())
}

func TestCtxSleep(t *testing.T) {
	assert.True(t, CtxSleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, CtxSleep(ctx, time.Hour))
}

func TestStopper(t *testing.T) {
	s := NewStopper()
	var stopped sync.WaitGroup
	stopped.Add(1)
	s.Add(1)
	go func() {
		defer s.Done()
		defer stopped.Done()
		<-s.Stopped()
	}()
	assert.False(t, s.IsStopped())
	s.Stop()
	stopped.Wait()
	assert.True(t, s.IsStopped())
}

func TestStopperSleep(t *testing.T) {
	s := NewStopper()
	assert.True(t, s.Sleep(time.Millisecond))
	s.Stop()
	s.Stop()
	assert.False(t, s.Sleep(time.Hour))
}
