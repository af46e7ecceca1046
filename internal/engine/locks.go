package engine

import "sync"

// keyedMutex hands out one mutex per instance id. Caller-driven
// transitions and scheduler sweeps serialize on the same mutex, so a
// transition and an escalation can never race on one instance.
//
// Entries are never evicted; the map is bounded by the number of
// distinct instances the process touches.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(id string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	return m
}
