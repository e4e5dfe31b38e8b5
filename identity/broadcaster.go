package identity

import "sync"

// Broadcaster fans session events out to subscribers. Publish never blocks: each
// subscriber owns an unbounded FIFO drained by its own pump goroutine, so a slow
// listener delays only itself and always sees events in publish order.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]*subscriber)}
}

// Subscribe returns the event channel and an idempotent unsubscribe func that
// closes it. Subscribing to a closed broadcaster yields an already closed channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	s := newSubscriber()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.out)
		return s.out, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go s.pump()

	var once sync.Once
	return s.out, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			s.stop()
		})
	}
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, s := range b.subs {
		s.enqueue(e)
	}
}

// Subscribers is the number of live subscriptions
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription; later publishes are dropped
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

type subscriber struct {
	mu     sync.Mutex
	events []Event
	signal chan struct{} // buffered, size 1
	done   chan struct{}
	out    chan Event
	once   sync.Once
}

func newSubscriber() *subscriber {
	return &subscriber{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event),
	}
}

func (s *subscriber) enqueue(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) tryDequeue() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return Event{}, false
	}
	e := s.events[0]
	s.events[0] = Event{}
	if len(s.events) == 1 {
		s.events = s.events[:0]
	} else {
		s.events = s.events[1:]
	}
	return e, true
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		e, ok := s.tryDequeue()
		if !ok {
			select {
			case <-s.done:
				return
			case <-s.signal:
				continue
			}
		}
		select {
		case <-s.done:
			return
		case s.out <- e:
		}
	}
}

// stop ends delivery; the pump closes out on its way out
func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}
