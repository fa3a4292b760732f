package ledger

import "sync"

// keyedMutex provides one mutex per int64 key. Entries are never
// evicted; the key space (account ids) is small and long-lived.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*sync.Mutex)}
}

func (k *keyedMutex) get(key int64) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key int64) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}

// LockPair acquires mutexes for two keys in ascending key order so
// that concurrent pair locks cannot deadlock. Equal keys lock once.
func (k *keyedMutex) LockPair(a, b int64) func() {
	if a == b {
		return k.Lock(a)
	}
	if a > b {
		a, b = b, a
	}
	first := k.get(a)
	second := k.get(b)
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
