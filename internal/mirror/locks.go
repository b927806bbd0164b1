package mirror

import "sync"

// PathLocks hands out one mutex per destination path
type PathLocks struct {
	mu    sync.RWMutex
	locks map[string]*sync.Mutex
}

// NewPathLocks creates an empty lock table
func NewPathLocks() *PathLocks {
	return &PathLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for path and returns its unlock func
func (pl *PathLocks) Lock(path string) func() {
	m := pl.get(path)
	m.Lock()
	return m.Unlock
}

// Len returns the number of paths seen so far
func (pl *PathLocks) Len() int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return len(pl.locks)
}

func (pl *PathLocks) get(path string) *sync.Mutex {
	pl.mu.RLock()
	m, ok := pl.locks[path]
	pl.mu.RUnlock()
	if ok {
		return m
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	// Another goroutine may have created it between the two locks
	if m, ok := pl.locks[path]; ok {
		return m
	}
	m = &sync.Mutex{}
	pl.locks[path] = m
	return m
}
