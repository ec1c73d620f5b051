package services

import "sync"

// keyedMutex serializes read-modify-write cycles per saldo id so two
// concurrent ledger operations on the same saldo cannot race to a lost
// update. Entries are never evicted; the saldo population is small.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*sync.Mutex)}
}

func (k *keyedMutex) get(id int64) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	return m
}

func (k *keyedMutex) Lock(id int64) func() {
	m := k.get(id)
	m.Lock()
	return m.Unlock
}

// LockPair locks two saldo ids in ascending order to avoid deadlocks when
// an update moves a transaction between saldos.
func (k *keyedMutex) LockPair(a, b int64) func() {
	if a == b {
		return k.Lock(a)
	}
	if a > b {
		a, b = b, a
	}
	first, second := k.get(a), k.get(b)
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
