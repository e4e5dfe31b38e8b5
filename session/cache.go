package session

import (
	"sync"

	"github.com/jrsteele09/servicedesk/users"
)

// State is the cached view of who is signed in
type State struct {
	Profile   *users.User // nil when no profile is resolved
	IsLoading bool        // true while a session check is in flight
}

// SignedIn reports whether a profile is present
func (s State) SignedIn() bool {
	return s.Profile != nil
}

// Cache is the single process-wide slot holding the current profile. Writes are
// serialized and observers see every write, in write order.
type Cache struct {
	mu        sync.Mutex
	state     State
	observers map[int]func(State)
	order     []int
	nextID    int
	closed    bool

	// held across a write and its notifications so observers see writes in order;
	// observers must therefore not write to the cache
	notifyMu sync.Mutex
}

// NewCache starts in the loading state, before the first session check resolves
func NewCache() *Cache {
	return &Cache{
		state:     State{IsLoading: true},
		observers: make(map[int]func(State)),
	}
}

func (c *Cache) Get() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Profile: c.state.Profile.Clone(), IsLoading: c.state.IsLoading}
}

func (c *Cache) Set(profile *users.User) {
	c.write(func(s *State) {
		s.Profile = profile.Clone()
	})
}

func (c *Cache) SetLoading(loading bool) {
	c.write(func(s *State) {
		s.IsLoading = loading
	})
}

// Subscribe registers fn to run after every write. fn runs outside the state lock
// and may call Get.
func (c *Cache) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.order = append(c.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.observers, id)
		})
	}
}

// Close drops every observer. Writes after Close are discarded.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.observers = make(map[int]func(State))
	c.order = nil
}

func (c *Cache) write(mutate func(*State)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	mutate(&c.state)
	snapshot := c.state
	fns := make([]func(State), 0, len(c.observers))
	live := c.order[:0]
	for _, id := range c.order {
		if fn, ok := c.observers[id]; ok {
			fns = append(fns, fn)
			live = append(live, id)
		}
	}
	c.order = live
	c.mu.Unlock()

	for _, fn := range fns {
		fn(State{Profile: snapshot.Profile.Clone(), IsLoading: snapshot.IsLoading})
	}
}
