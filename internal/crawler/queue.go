package crawler

import (
	"sync"
)

// Entry is a page waiting to be crawled together with the origin it belongs to
type Entry struct {
	URL    string
	Origin string
}

// Queue implements a thread-safe depth-first frontier with deduplication.
// A URL is marked visited when it is pushed, so it is handed out at most once.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Entry
	visited map[string]bool
	pending int // queued plus handed out and not yet Done
	stopped bool
}

// NewQueue creates an empty frontier
func NewQueue() *Queue {
	q := &Queue{
		items:   make([]Entry, 0),
		visited: make(map[string]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds an entry unless its URL was already seen during this run.
// Returns true if added, false if duplicate or stopped.
func (q *Queue) Push(entry Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped || q.visited[entry.URL] {
		return false
	}

	q.visited[entry.URL] = true
	q.items = append(q.items, entry)
	q.pending++

	q.cond.Signal()
	return true
}

// Pop hands out the most recently pushed entry.
// Blocks while the queue is empty but entries are still being processed.
// Returns (empty, false) once nothing is queued or in flight, or after Stop.
func (q *Queue) Pop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.stopped {
			return Entry{}, false
		}

		if n := len(q.items); n > 0 {
			entry := q.items[n-1]
			q.items = q.items[:n-1]
			return entry, true
		}

		if q.pending == 0 {
			return Entry{}, false
		}

		q.cond.Wait()
	}
}

// Done marks an entry returned by Pop as fully processed
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending > 0 {
		q.pending--
	}
	if q.pending == 0 {
		q.cond.Broadcast()
	}
}

// Stop discards queued entries and releases every blocked Pop
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.pending -= len(q.items)
	q.items = nil
	q.cond.Broadcast()
}

// Visited reports whether url has been admitted during this run
func (q *Queue) Visited(url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.visited[url]
}

// Size returns the current number of queued entries
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Seen returns how many distinct URLs were admitted
func (q *Queue) Seen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visited)
}
