package camera

import "sync"

// propertyHub fans property events out to subscribers.
// Each subscriber holds at most one pending value per property: a slow
// reader skips intermediate values but always receives the latest one.
type propertyHub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	mu      sync.Mutex
	pending map[Property]PropertyEvent
	order   []Property // arrival order of pending properties

	wake chan struct{}
	quit chan struct{}
	out  chan PropertyEvent
}

func newPropertyHub() *propertyHub {
	return &propertyHub{subs: make(map[*subscriber]struct{})}
}

func (h *propertyHub) subscribe() (<-chan PropertyEvent, func()) {
	s := &subscriber{
		pending: make(map[Property]PropertyEvent),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		out:     make(chan PropertyEvent),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	go s.pump()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
			close(s.quit)
		})
	}
	return s.out, cancel
}

func (h *propertyHub) publish(evt PropertyEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		s.offer(evt)
	}
}

func (h *propertyHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// offer replaces any pending value for the same property and never blocks.
func (s *subscriber) offer(evt PropertyEvent) {
	s.mu.Lock()
	if _, queued := s.pending[evt.Property]; !queued {
		s.order = append(s.order, evt.Property)
	}
	s.pending[evt.Property] = evt
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) take() []PropertyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]PropertyEvent, 0, len(s.order))
	for _, p := range s.order {
		batch = append(batch, s.pending[p])
		delete(s.pending, p)
	}
	s.order = s.order[:0]
	return batch
}

// pump delivers pending values until the subscription is cancelled, then closes out.
func (s *subscriber) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.wake:
		case <-s.quit:
			return
		}
		for _, evt := range s.take() {
			select {
			case s.out <- evt:
			case <-s.quit:
				return
			}
		}
	}
}
