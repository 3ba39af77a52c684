package relay

import (
	"context"
	"sync"
)

// Signal is an event from the producer to the sender worker.
type Signal int

const (
	// SignalNewElement means the queue changed and should be re-checked.
	SignalNewElement Signal = iota
	// SignalShutdown is terminal.
	SignalShutdown
)

// signals is an unbounded, ordered, single-producer/single-consumer queue.
// send never blocks the producer; recv blocks until a signal is available.
type signals struct {
	mu      sync.Mutex
	pending []Signal
	ready   chan struct{}
}

func newSignals() *signals {
	return &signals{ready: make(chan struct{}, 1)}
}

func (s *signals) send(sig Signal) {
	s.mu.Lock()
	s.pending = append(s.pending, sig)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *signals) recv(ctx context.Context) (Signal, error) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			sig := s.pending[0]
			s.pending = s.pending[1:]
			if len(s.pending) == 0 {
				s.pending = nil
			}
			s.mu.Unlock()
			return sig, nil
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-ctx.Done():
			return SignalShutdown, ctx.Err()
		}
	}
}
