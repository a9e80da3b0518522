package intent

import (
	"context"
	"sync"
)

// settlement is the pending/settled result of one handshake. It owns the
// handshake's single window subscription and drops it when settled.
type settlement struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	result  any
	err     error
	cancel  func()
}

func newSettlement() *settlement {
	return &settlement{done: make(chan struct{})}
}

// subscribe attaches fn to w. If the handshake settles while Subscribe is
// still running, the subscription is dropped as soon as it returns.
func (s *settlement) subscribe(w Window, fn func(MessageEvent)) {
	cancel := w.Subscribe(fn)
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()
}

// settle moves to the settled state. Only the first call has an effect;
// it reports whether this call settled.
func (s *settlement) settle(result any, err error) bool {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return false
	}
	s.settled = true
	s.result, s.err = result, err
	cancel := s.cancel
	s.cancel = nil
	close(s.done)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

func (s *settlement) isSettled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

func (s *settlement) wait(ctx context.Context) (any, error) {
	select {
	case <-s.done:
		return s.result, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
