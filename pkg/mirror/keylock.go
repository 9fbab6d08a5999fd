package mirror

import "sync"

type keyLock struct {
	lock    sync.Mutex
	entries map[SourceID]*keyLockEntry
}

type keyLockEntry struct {
	sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[SourceID]*keyLockEntry)}
}

// Lock serializes callers for the same id and returns the matching unlock func.
func (kl *keyLock) Lock(id SourceID) func() {
	kl.lock.Lock()
	entry, ok := kl.entries[id]
	if !ok {
		entry = &keyLockEntry{}
		kl.entries[id] = entry
	}
	entry.refs++
	kl.lock.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		kl.lock.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(kl.entries, id)
		}
		kl.lock.Unlock()
	}
}
