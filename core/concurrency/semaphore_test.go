package concurrency_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-link/core/concurrency"
)

func TestSemaphorePostBeforeWait(t *testing.T) {
	s := concurrency.NewSemaphore(0)
	for i := 0; i < 5; i++ {
		s.Post()
	}
	require.Equal(t, int64(5), s.Value())
	for i := 0; i < 5; i++ {
		s.Wait() // must not block
	}
	require.Equal(t, int64(0), s.Value())
}

func TestSemaphoreInitialPermits(t *testing.T) {
	s := concurrency.NewSemaphore(2)
	s.Wait()
	s.Wait()
	require.Equal(t, int64(0), s.Value())
}

func TestSemaphoreWaitBlocksUntilPost(t *testing.T) {
	s := concurrency.NewSemaphore(0)
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned without a permit")
	case <-time.After(50 * time.Millisecond):
	}

	s.Post()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not wake on Post")
	}
}

func TestSemaphoreManyWaiters(t *testing.T) {
	const n = 16
	s := concurrency.NewSemaphore(0)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.Wait()
		}()
	}
	for i := 0; i < n; i++ {
		s.Post()
	}

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("not every waiter got a permit")
	}
	require.Equal(t, int64(0), s.Value())
}
