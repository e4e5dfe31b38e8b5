package navigation

import (
	"sort"
	"sync"
)

// Navigator is what the route guard needs from a router
type Navigator interface {
	CurrentSegments() []string
	IsReady() bool
	Replace(path string)
}

// Stack is an in-memory history router. It becomes ready once, when MarkReady
// is called, mirroring a UI router finishing its first layout.
type Stack struct {
	mu        sync.Mutex
	history   []string
	ready     bool
	observers map[int]func()
	nextID    int
}

var _ Navigator = (*Stack)(nil)

func NewStack(initial string) *Stack {
	return &Stack{
		history:   []string{Clean(initial)},
		observers: make(map[int]func()),
	}
}

func (s *Stack) Push(path string) {
	s.mu.Lock()
	s.history = append(s.history, Clean(path))
	s.mu.Unlock()
	s.notify()
}

// Replace swaps the current location so it is not left in history
func (s *Stack) Replace(path string) {
	s.mu.Lock()
	s.history[len(s.history)-1] = Clean(path)
	s.mu.Unlock()
	s.notify()
}

// Back pops the current location. It returns false at the bottom of the stack.
func (s *Stack) Back() bool {
	s.mu.Lock()
	if len(s.history) == 1 {
		s.mu.Unlock()
		return false
	}
	s.history = s.history[:len(s.history)-1]
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Stack) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[len(s.history)-1]
}

func (s *Stack) CurrentSegments() []string {
	return Segments(s.CurrentPath())
}

func (s *Stack) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

func (s *Stack) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// MarkReady flips readiness once; later calls do nothing
func (s *Stack) MarkReady() {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return
	}
	s.ready = true
	s.mu.Unlock()
	s.notify()
}

// OnChange registers fn to run after every location or readiness change.
// Observers run on the caller's goroutine, outside the stack lock.
func (s *Stack) OnChange(fn func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Stack) notify() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.observers[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
