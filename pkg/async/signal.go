package async

import "sync"

// Signal is a cooperative cancellation token. Abort fires at most once;
// Aborted never blocks. Listeners registered after the abort fire
// immediately on the caller's goroutine.
type Signal struct {
	mu        sync.Mutex
	done      chan struct{}
	reason    error
	listeners []func(error)
}

// NewSignal creates an un-aborted signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Abort fires the signal with the given reason. Only the first call has
// any effect; it reports whether this call performed the abort.
func (s *Signal) Abort(reason error) bool {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return false
	default:
	}
	s.reason = reason
	close(s.done)
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(reason)
	}
	return true
}

// Aborted reports whether the signal has fired. It never blocks.
func (s *Signal) Aborted() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Err returns the abort reason, or nil while the signal has not fired.
func (s *Signal) Err() error {
	select {
	case <-s.done:
		return s.reason
	default:
		return nil
	}
}

// Done returns a channel closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// OnAbort registers a listener for the abort notification. If the signal
// already fired, fn runs synchronously before OnAbort returns.
func (s *Signal) OnAbort(fn func(error)) {
	s.mu.Lock()
	select {
	case <-s.done:
		reason := s.reason
		s.mu.Unlock()
		fn(reason)
		return
	default:
	}
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
