package relay

import (
	"sync"
)

// group is the set of live connections sharing one session code.
type group struct {
	mu    sync.RWMutex
	conns map[Conn]struct{}

	// dead marks a group that emptied out and was unlinked from the
	// registry; a racing add must not resurrect it.
	dead bool
}

func newGroup() *group { return &group{conns: map[Conn]struct{}{}} }

func (g *group) add(c Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dead {
		return false
	}
	g.conns[c] = struct{}{}
	return true
}

// remove deletes c and reports whether the group emptied out. An emptied
// group is marked dead under the same lock, so empty and dead never diverge.
func (g *group) remove(c Conn) (emptied bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.conns[c]; !ok {
		return false
	}
	delete(g.conns, c)
	if len(g.conns) == 0 {
		g.dead = true
		return true
	}
	return false
}

func (g *group) snapshot() []Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()

	conns := make([]Conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	return conns
}

func (g *group) size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// Registry keeps connection sets per session code. It owns no other state:
// session codes live exactly as long as their group is non-empty.
type Registry struct {
	groups sync.Map // session code -> *group
}

func NewRegistry() *Registry { return &Registry{} }

// AddToGroup registers c under code, creating the group lazily. Adding the
// same connection twice is idempotent.
func (r *Registry) AddToGroup(code string, c Conn) {
	for {
		v, _ := r.groups.LoadOrStore(code, newGroup())
		g := v.(*group)
		if g.add(c) {
			return
		}
		// Lost a race with the last removal; unlink the dead group and retry.
		r.groups.CompareAndDelete(code, v)
	}
}

// RemoveFromGroup drops c from code's group. When the group becomes empty
// its registry entry is deleted entirely, so reused short codes never leak
// stale groups over a long-running process.
func (r *Registry) RemoveFromGroup(code string, c Conn) {
	v, ok := r.groups.Load(code)
	if !ok {
		return
	}
	if v.(*group).remove(c) {
		r.groups.CompareAndDelete(code, v)
	}
}

// Broadcast sends data to every member of code's group except exclude,
// so a sender never echoes its own message back to itself. An unknown or
// already-emptied code is a silent no-op. Writes happen outside the group
// lock; connections whose write fails are pruned and closed.
func (r *Registry) Broadcast(code string, exclude Conn, data []byte) {
	v, ok := r.groups.Load(code)
	if !ok {
		return
	}
	g := v.(*group)

	var failed []Conn
	for _, c := range g.snapshot() {
		if c == exclude {
			continue
		}
		if err := c.Write(data); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		r.RemoveFromGroup(code, c)
		_ = c.Close()
	}
}

// Stats counts live groups and connections, for the /stats endpoint.
func (r *Registry) Stats() (groups, conns int) {
	r.groups.Range(func(_, v any) bool {
		groups++
		conns += v.(*group).size()
		return true
	})
	return groups, conns
}
