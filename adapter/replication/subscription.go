package replication

import "sync"

// Subscription implements [domain.Subscription]. Batches are queued without
// bound so that publishing never blocks the committing goroutine.
type Subscription struct {
	log    *Log
	out    chan []byte
	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	queue     [][]byte
	finishing bool
}

func newSubscription(l *Log) *Subscription {
	s := &Subscription{
		log:    l,
		out:    make(chan []byte),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// C implements [domain.Subscription].
func (s *Subscription) C() <-chan []byte {
	return s.out
}

// Close implements [domain.Subscription].
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.log.remove(s)
	})
}

func (s *Subscription) push(b []byte) {
	s.mu.Lock()
	if s.finishing {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, b)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) finish() {
	s.mu.Lock()
	s.finishing = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			finishing := s.finishing
			s.mu.Unlock()
			if finishing {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		b := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- b:
		case <-s.done:
			return
		}
	}
}
