package service

import "sync"

// recentUpdateWindow covers Telegram's redelivery of a slow webhook call.
const recentUpdateWindow = 1024

// recentUpdates remembers the last update ids handled by this process, oldest
// evicted first.
type recentUpdates struct {
	mu    sync.Mutex
	seen  map[int64]struct{}
	order []int64
	next  int
}

func newRecentUpdates(size int) *recentUpdates {
	return &recentUpdates{
		seen:  make(map[int64]struct{}, size),
		order: make([]int64, 0, size),
	}
}

// firstSeen records id and reports whether it was new.
func (r *recentUpdates) firstSeen(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; ok {
		return false
	}
	if len(r.order) < cap(r.order) {
		r.order = append(r.order, id)
	} else {
		delete(r.seen, r.order[r.next])
		r.order[r.next] = id
		r.next = (r.next + 1) % len(r.order)
	}
	r.seen[id] = struct{}{}
	return true
}

func (svc *FinanceService) recentUpdates() *recentUpdates {
	svc.updatesOnce.Do(func() {
		svc.updates = newRecentUpdates(recentUpdateWindow)
	})
	return svc.updates
}
