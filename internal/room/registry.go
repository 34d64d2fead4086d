// internal/room/registry.go
package room

import (
	"errors"
	"sync"
)

// Registry maps room ids to live room actors. It is the only state shared
// across goroutines directly; everything else moves through room mailboxes.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	opts  Options
}

// NewRegistry builds an empty registry; rooms spawn lazily on first join.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		opts:  opts,
	}
}

// GetOrCreate returns the room for id, spawning one if absent. Check and
// insert happen under a single write-lock section so two concurrent callers
// for the same unseen id can never spawn two rooms.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.RLock()
	r, ok := reg.rooms[id]
	reg.mu.RUnlock()
	if ok {
		return r
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[id]; ok {
		return r
	}
	r = newRoom(id, reg, reg.opts)
	reg.rooms[id] = r
	go r.run()
	return r
}

// Get returns an existing room without creating one.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// Len reports the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Join resolves the room for roomID and enqueues the join, retrying when it
// races a room that is retiring: the next GetOrCreate spawns a fresh one.
func (reg *Registry) Join(roomID string, connID ConnID, name string, sink Sink) (*Room, error) {
	for {
		r := reg.GetOrCreate(roomID)
		err := r.Join(connID, name, sink)
		if err == nil {
			return r, nil
		}
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		return nil, err
	}
}

// retire removes a room that believes it is idle. The room's closed flag
// flips under its write lock while the registry lock is held, and only if
// no command is pending, so a command can never land in a removed room:
// either it is already in the mailbox (retirement aborts) or its send
// observes the closed flag and fails.
func (reg *Registry) retire(r *Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if len(r.cmds) > 0 {
		return false
	}
	r.closed = true
	delete(reg.rooms, r.id)
	return true
}
