package shared

import (
	"hash/fnv"
	"strconv"
	"sync"
)

const keyedMutexShards = 256

// KeyedMutex serializes work per key over a fixed pool of mutexes.
// Keys hashing to the same shard share a lock, so memory stays bounded no
// matter how many keys are seen.
type KeyedMutex struct {
	shards [keyedMutexShards]sync.Mutex
}

// Lock acquires the mutex for key and returns its unlock function.
func (m *KeyedMutex) Lock(key string) func() {
	mu := m.shard(key)
	mu.Lock()
	return mu.Unlock
}

// LockID is Lock for numeric ids.
func (m *KeyedMutex) LockID(id int64) func() {
	return m.Lock(strconv.FormatInt(id, 10))
}

func (m *KeyedMutex) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%keyedMutexShards]
}
