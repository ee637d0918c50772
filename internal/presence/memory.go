package presence

import (
	"context"
	"sync"
)

// MemoryDirectory is the in-process Directory used when no Redis address is
// configured.
type MemoryDirectory struct {
	mu    sync.Mutex
	conns map[string]int
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{conns: make(map[string]int)}
}

func (d *MemoryDirectory) Connect(ctx context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[userID]++
	return nil
}

func (d *MemoryDirectory) Disconnect(ctx context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := d.conns[userID]; n <= 1 {
		delete(d.conns, userID)
	} else {
		d.conns[userID] = n - 1
	}
	return nil
}

func (d *MemoryDirectory) IsOnline(ctx context.Context, userID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[userID] > 0, nil
}

func (d *MemoryDirectory) Online(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	users := make([]string, 0, len(d.conns))
	for userID := range d.conns {
		users = append(users, userID)
	}
	return users, nil
}
