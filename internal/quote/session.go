package quote

import (
	"context"
	"errors"
	"sync"

	"swapquote/internal/aggregator"
)

// ErrStale is returned for a request superseded by a newer one.
var ErrStale = errors.New("quote superseded by a newer request")

// Quoter is satisfied by *Service.
type Quoter interface {
	Quote(ctx context.Context, req aggregator.Request) (Result, error)
}

// Session serializes re-quoting for one caller. Starting a new Quote cancels
// the one in flight, and only the most recent request may return a result.
type Session struct {
	q Quoter

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewSession(q Quoter) *Session {
	return &Session{q: q}
}

func (s *Session) Quote(ctx context.Context, req aggregator.Request) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	res, err := s.q.Quote(ctx, req)

	s.mu.Lock()
	current := s.gen == gen
	if current {
		s.cancel = nil
	}
	s.mu.Unlock()
	cancel()

	if !current {
		return Result{}, ErrStale
	}
	return res, err
}

// Close cancels the request in flight, if any.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
