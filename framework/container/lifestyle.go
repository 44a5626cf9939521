package container

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// Lifestyle controls how often a plan's construction runs.
type Lifestyle int

const (
	// Transient runs construction on every invocation.
	Transient Lifestyle = iota

	// Singleton runs construction once per container. Concurrent first
	// requests block until one construction finishes; a failed construction
	// is not cached.
	Singleton

	// Scoped runs construction once per Scope. Invoking a scoped plan
	// without a scope in the context fails with ErrNoActiveScope.
	Scoped
)

// String returns the human-readable name of the lifestyle.
func (l Lifestyle) String() string {
	switch l {
	case Transient:
		return "transient"
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	default:
		return "unknown"
	}
}

// ParseLifestyle parses the names produced by String.
func ParseLifestyle(s string) (Lifestyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transient":
		return Transient, nil
	case "singleton":
		return Singleton, nil
	case "scoped":
		return Scoped, nil
	default:
		return Transient, fmt.Errorf("unknown lifestyle %q", s)
	}
}

// ── Plan wrappers ─────────────────────────────────────────────────────────────

// planWrapper rewrites a plan into a new plan. Lifestyles and decorators are
// both expressed as planWrappers.
type planWrapper func(*Plan) *Plan

// lifestyleWrapper returns the caching combinator for l.
func (c *Container) lifestyleWrapper(l Lifestyle) planWrapper {
	switch l {
	case Singleton:
		return c.singleton
	case Scoped:
		return c.scoped
	default:
		return transient
	}
}

func transient(p *Plan) *Plan {
	var self *Plan
	inner := p.invoke
	self = p.derive(Transient, func(ctx context.Context) (any, error) {
		ctx, err := enterPlan(ctx, self)
		if err != nil {
			return nil, err
		}
		return inner(ctx)
	})
	return self
}

// singletonCell caches one instance per plan. The mutex only guards the
// first construction; later reads go through the atomic pointer.
type singletonCell struct {
	mu    sync.Mutex
	value atomic.Pointer[any]
}

func (c *Container) singleton(p *Plan) *Plan {
	var self *Plan
	cell := &singletonCell{}
	inner := p.invoke
	self = p.derive(Singleton, func(ctx context.Context) (any, error) {
		if v := cell.value.Load(); v != nil {
			return *v, nil
		}

		ctx, err := enterPlan(ctx, self)
		if err != nil {
			return nil, err
		}

		cell.mu.Lock()
		defer cell.mu.Unlock()

		if v := cell.value.Load(); v != nil {
			return *v, nil
		}

		v, err := inner(ctx)
		if err != nil {
			return nil, err
		}
		cell.value.Store(&v)

		if closer, ok := v.(io.Closer); ok && !self.external {
			c.disposables.add(closer)
		}
		return v, nil
	})
	return self
}

func (c *Container) scoped(p *Plan) *Plan {
	var self *Plan
	inner := p.invoke
	self = p.derive(Scoped, func(ctx context.Context) (any, error) {
		s := ScopeFrom(ctx)
		if s == nil {
			return nil, &ResolutionError{
				Service:        self.service,
				Implementation: self.implementation,
				Err:            ErrNoActiveScope,
			}
		}
		ctx, err := enterPlan(ctx, self)
		if err != nil {
			return nil, err
		}
		return s.instance(ctx, self.id, !self.external, inner)
	})
	return self
}

// ── Re-entry guard ────────────────────────────────────────────────────────────

// activation is one plan under construction in the current call chain.
type activation struct {
	plan   *Plan
	parent *activation
}

type activationKey struct{}

// enterPlan records p as under construction in ctx. Plan building rejects
// static cycles; a delegate that resolves a service still under construction
// in the same call chain is reported here instead.
func enterPlan(ctx context.Context, p *Plan) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	head, _ := ctx.Value(activationKey{}).(*activation)
	for a := head; a != nil; a = a.parent {
		if a.plan != p {
			continue
		}
		var cycle []Descriptor
		for b := head; b != a.parent; b = b.parent {
			cycle = append([]Descriptor{b.plan.service}, cycle...)
		}
		cycle = append(cycle, p.service)
		return nil, &ResolutionError{
			Service:        p.service,
			Implementation: p.implementation,
			Err:            fmt.Errorf("%w: %s", ErrCircularDependency, formatChain(cycle)),
		}
	}
	return context.WithValue(ctx, activationKey{}, &activation{plan: p, parent: head}), nil
}

// ── Disposal ──────────────────────────────────────────────────────────────────

// disposer records closers in construction order and closes them in reverse.
type disposer struct {
	mu      sync.Mutex
	closers []io.Closer
}

func (d *disposer) add(c io.Closer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closers = append(d.closers, c)
}

// close closes every recorded closer in reverse order. The context is
// checked between closers; once it is done the remaining closers are skipped
// and the context error is included in the result.
func (d *disposer) close(ctx context.Context) []error {
	d.mu.Lock()
	closers := d.closers
	d.closers = nil
	d.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
