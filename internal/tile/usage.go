package tile

import (
	"sync"

	"github.com/google/uuid"
)

// Owner is an opaque consumer identity used to reference-count a tile.
type Owner uuid.UUID

func NewOwner() Owner {
	return Owner(uuid.New())
}

func (o Owner) String() string {
	return uuid.UUID(o).String()
}

// UsageTracker records which owners currently hold a tile.
type UsageTracker struct {
	mu     sync.Mutex
	owners map[Owner]struct{}
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{owners: make(map[Owner]struct{})}
}

// Use registers owner. Registering the same owner twice has no effect.
func (u *UsageTracker) Use(owner Owner) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.owners[owner] = struct{}{}
}

// Release unregisters owner if present.
func (u *UsageTracker) Release(owner Owner) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.owners, owner)
}

func (u *UsageTracker) IsUsed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.owners) > 0
}

func (u *UsageTracker) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.owners)
}
