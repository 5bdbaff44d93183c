package session

import "sync"

// Signal is a latch with subscribers. Raise notifies subscribers only on
// the transition from lowered to raised; later raises are absorbed until
// Reset. This is what keeps a burst of 401s down to one redirect.
type Signal struct {
	mu     sync.Mutex
	raised bool
	nextID int
	subs   []subscriber
}

type subscriber struct {
	id int
	fn func()
}

// NewSignal returns a lowered signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Signal) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Raise sets the latch. It returns true, after notifying subscribers, only
// for the call that actually raised it.
func (s *Signal) Raise() bool {
	s.mu.Lock()
	if s.raised {
		s.mu.Unlock()
		return false
	}
	s.raised = true
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn()
	}
	return true
}

// Reset lowers the latch so the next Raise notifies again.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raised = false
}

// Raised reports whether the latch is set.
func (s *Signal) Raised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised
}
