package container

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Scope is a unit of work (typically one HTTP request) that owns the
// instances of Scoped plans. It travels through resolution in a
// context.Context:
//
//	scope := c.BeginScope()
//	defer scope.End()
//
//	ctx = container.WithScope(ctx, scope)
//	uow, err := container.Resolve[*UnitOfWork](ctx, c, unitOfWork)
type Scope struct {
	id uuid.UUID

	mu        sync.RWMutex
	instances map[uint64]any
	ended     bool

	flight  singleflight.Group
	closers disposer
}

type scopeKey struct{}

// BeginScope starts a new scope.
func (c *Container) BeginScope() *Scope {
	s := &Scope{
		id:        uuid.New(),
		instances: make(map[uint64]any),
	}
	c.logger.Debug("scope started", scopeField(s))
	return s
}

// WithScope returns a context carrying s as the ambient scope.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the ambient scope of ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() uuid.UUID { return s.id }

// End discards the scope's cache and closes every owned io.Closer in reverse
// construction order. Calling End more than once is a no-op.
func (s *Scope) End() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.instances = nil
	s.mu.Unlock()

	return errors.Join(s.closers.close(context.Background())...)
}

// instance returns the cached instance for plan id, constructing it once.
// Concurrent first requests within the scope share one construction; a
// failed construction is not cached. Closers are only recorded when owned.
func (s *Scope) instance(ctx context.Context, id uint64, owned bool, build func(context.Context) (any, error)) (any, error) {
	if v, ok, err := s.lookup(id); err != nil || ok {
		return v, err
	}

	v, err, _ := s.flight.Do(strconv.FormatUint(id, 10), func() (any, error) {
		if v, ok, err := s.lookup(id); err != nil || ok {
			return v, err
		}

		v, err := build(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ended {
			return nil, ErrScopeEnded
		}
		s.instances[id] = v
		if closer, ok := v.(io.Closer); ok && owned {
			s.closers.add(closer)
		}
		return v, nil
	})
	return v, err
}

func (s *Scope) lookup(id uint64) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return nil, false, ErrScopeEnded
	}
	v, ok := s.instances[id]
	return v, ok, nil
}
