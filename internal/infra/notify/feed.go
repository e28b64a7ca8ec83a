package notify

import (
	"context"
	"sync"

	"habita/internal/app/policies"
)

// MemoryFeed keeps the latest notifications per user in process memory.
type MemoryFeed struct {
	mu      sync.RWMutex
	perUser int
	byUser  map[string][]policies.Notification
}

// NewMemoryFeed keeps at most perUser entries for each user; perUser <= 0 keeps 100.
func NewMemoryFeed(perUser int) *MemoryFeed {
	if perUser <= 0 {
		perUser = 100
	}
	return &MemoryFeed{perUser: perUser, byUser: make(map[string][]policies.Notification)}
}

func (f *MemoryFeed) Notify(_ context.Context, n policies.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := append(f.byUser[n.UserID], n)
	if len(list) > f.perUser {
		list = list[len(list)-f.perUser:]
	}
	f.byUser[n.UserID] = list
	return nil
}

func (f *MemoryFeed) Recent(_ context.Context, userID string, limit int) ([]policies.Notification, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	list := f.byUser[userID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]policies.Notification, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

var (
	_ policies.Notifier         = (*MemoryFeed)(nil)
	_ policies.NotificationFeed = (*MemoryFeed)(nil)
	_ policies.Notifier         = LogNotifier{}
)
