package pipeline

import "sync"

// leaseMap tracks which user currently owns a running job. Acquisition
// happens atomically at admission; release happens exactly once in the
// guaranteed cleanup path.
type leaseMap struct {
	mu     sync.Mutex
	byUser map[string]string // user id -> job id
}

func newLeaseMap() *leaseMap {
	return &leaseMap{byUser: make(map[string]string)}
}

// acquire claims the user's lease for jobID. Returns false when another
// job already holds it.
func (l *leaseMap) acquire(userID, jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.byUser[userID]; held {
		return false
	}
	l.byUser[userID] = jobID
	return true
}

// release frees the user's lease if jobID still owns it.
func (l *leaseMap) release(userID, jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.byUser[userID] == jobID {
		delete(l.byUser, userID)
	}
}

// holder returns the job id owning the user's lease, if any.
func (l *leaseMap) holder(userID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.byUser[userID]
	return id, ok
}
