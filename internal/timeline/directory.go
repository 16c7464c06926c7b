package timeline

import (
	"fmt"
	"sync"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/debuglog"
	"github.com/pders01/roster/internal/storage"
)

// Directory answers member lookups. It is safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	members []storage.Member
	byName  map[string]int
}

func NewDirectory(members []storage.Member) *Directory {
	d := &Directory{}
	d.Replace(members)
	return d
}

// LoadDirectory reads users.json from snapshots, falling back to the
// members file when no usable snapshot exists.
func LoadDirectory(snapshots *storage.Snapshots, membersPath string) (*Directory, error) {
	users, ok, err := snapshots.LoadUsers()
	if err != nil {
		debuglog.Warnf("ignoring unreadable snapshot %s: %v", snapshots.UsersPath(), err)
	}
	if err == nil && ok {
		return NewDirectory(users), nil
	}

	members, err := config.LoadMembers(membersPath)
	if err != nil {
		return nil, fmt.Errorf("loading directory: %w", err)
	}
	return NewDirectory(members), nil
}

// Replace swaps in a new member list.
func (d *Directory) Replace(members []storage.Member) {
	byName := make(map[string]int, len(members))
	for i, m := range members {
		byName[m.Name] = i
	}

	d.mu.Lock()
	d.members = members
	d.byName = byName
	d.mu.Unlock()
}

// Find looks a member up by name.
func (d *Directory) Find(name string) (storage.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.byName[name]
	if !ok {
		return storage.Member{}, false
	}
	return d.members[i], true
}

// Active returns the members with no recorded departure, in file order.
func (d *Directory) Active() []storage.Member {
	d.mu.RLock()
	defer d.mu.RUnlock()
	active := make([]storage.Member, 0, len(d.members))
	for _, m := range d.members {
		if m.Tenure.Active() {
			active = append(active, m)
		}
	}
	return active
}

// All returns every member in file order.
func (d *Directory) All() []storage.Member {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]storage.Member(nil), d.members...)
}

// OnAggregateUpdated keeps the directory in step with generator runs.
func (d *Directory) OnAggregateUpdated(agg Aggregate) {
	if agg.Members != nil {
		d.Replace(agg.Members)
	}
}
