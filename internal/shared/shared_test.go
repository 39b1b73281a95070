package shared

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	var (
		m       KeyedMutex
		wg      sync.WaitGroup
		counter int
	)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.LockID(42)
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	var m KeyedMutex

	unlockA := m.Lock("a")
	done := make(chan struct{})
	go func() {
		// "b" maps to a different shard than "a" for fnv32a.
		unlock := m.Lock("b")
		unlock()
		close(done)
	}()
	<-done
	unlockA()
}
