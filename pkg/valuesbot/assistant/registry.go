package assistant

import "sync"

// ThreadRegistry maps chat users to their remote conversation thread.
// The mutex only keeps the map consistent; it does not serialize a user's
// turns, so two concurrent first messages may both create a thread and the
// last one wins.
type ThreadRegistry struct {
	mu      sync.RWMutex
	threads map[int64]string
}

// NewThreadRegistry creates an empty registry.
func NewThreadRegistry() *ThreadRegistry {
	return &ThreadRegistry{threads: make(map[int64]string)}
}

// Get returns the thread bound to userID.
func (r *ThreadRegistry) Get(userID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.threads[userID]
	return id, ok
}

// Set binds threadID to userID, replacing any previous binding.
func (r *ThreadRegistry) Set(userID int64, threadID string) {
	r.mu.Lock()
	r.threads[userID] = threadID
	r.mu.Unlock()
}

// Delete forgets the thread bound to userID. Reports whether one existed.
func (r *ThreadRegistry) Delete(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.threads[userID]
	delete(r.threads, userID)
	return ok
}

// Len returns the number of live threads.
func (r *ThreadRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.threads)
}
