package pomodoro

import "sync"

// VisibilitySource reports when the hosting view loses and regains the
// ability to run the tick loop. Subscribe returns a function that removes
// the subscription.
type VisibilitySource interface {
	Subscribe(onHidden, onVisible func()) (unsubscribe func())
}

type visibilityListener struct {
	onHidden, onVisible func()
}

// VisibilitySignal is a VisibilitySource driven by explicit Hide/Show calls.
// Repeated calls in the same direction are ignored.
type VisibilitySignal struct {
	mu        sync.Mutex
	hidden    bool
	nextID    int
	listeners map[int]visibilityListener
}

var _ VisibilitySource = (*VisibilitySignal)(nil)

func NewVisibilitySignal() *VisibilitySignal {
	return &VisibilitySignal{listeners: make(map[int]visibilityListener)}
}

func (s *VisibilitySignal) Subscribe(onHidden, onVisible func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = visibilityListener{onHidden: onHidden, onVisible: onVisible}
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *VisibilitySignal) Hide() {
	for _, l := range s.flip(true) {
		if l.onHidden != nil {
			l.onHidden()
		}
	}
}

func (s *VisibilitySignal) Show() {
	for _, l := range s.flip(false) {
		if l.onVisible != nil {
			l.onVisible()
		}
	}
}

func (s *VisibilitySignal) Hidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden
}

// flip returns a snapshot of listeners to notify, or nil if the state did not change.
func (s *VisibilitySignal) flip(hidden bool) []visibilityListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hidden == hidden {
		return nil
	}
	s.hidden = hidden
	ls := make([]visibilityListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	return ls
}
