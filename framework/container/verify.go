package container

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ── Verification ──────────────────────────────────────────────────────────────

// tracker records which plans ran during a verification.
type tracker struct {
	mu      sync.Mutex
	visited map[*Plan]bool
}

type trackerKey struct{}

func withTracker(ctx context.Context, t *tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

func trackerFrom(ctx context.Context) *tracker {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(trackerKey{}).(*tracker)
	return t
}

func (t *tracker) visit(p *Plan) {
	t.mu.Lock()
	t.visited[p] = true
	t.mu.Unlock()
}

func (t *tracker) seen(p *Plan) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visited[p]
}

// verificationRoot is one plan the verifier has to exercise.
type verificationRoot struct {
	key     string
	service Descriptor
	build   func(*buildPath) (*Plan, error)
}

// Verify locks the container, then builds and invokes every registration
// and every plan discovered while doing so, until no new plans appear.
// Scoped plans run inside a private scope that is ended before Verify
// returns. Each plan is invoked directly at most once; collections are
// iterated once.
//
// A failure is reported as a *VerificationError naming the root being
// verified, the failing service and the dependency chain.
func (c *Container) Verify(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	c.mu.Lock()
	if c.guard.lock() {
		c.logger.Info("container locked", zap.String("trigger", "verify"))
	}
	err := c.store.materialize()
	c.mu.Unlock()

	if err == nil {
		scope := c.BeginScope()
		t := &tracker{visited: make(map[*Plan]bool)}
		err = c.verify(WithScope(withTracker(ctx, t), scope), t)
		if endErr := scope.End(); endErr != nil {
			c.logger.Warn("verification scope disposal failed", zap.Error(endErr))
		}
	} else {
		err = &VerificationError{Err: err}
	}

	c.metrics.verified(err, start)
	if err != nil {
		c.logger.Error("container verification failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return err
	}
	c.logger.Info("container verified",
		zap.Int("plans", len(c.Registrations())),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (c *Container) verify(ctx context.Context, t *tracker) error {
	done := make(map[string]bool)
	for pass := 1; ; pass++ {
		progressed := false
		for _, root := range c.verificationRoots() {
			if done[root.key] {
				continue
			}
			done[root.key] = true
			progressed = true

			if err := ctx.Err(); err != nil {
				return &VerificationError{Root: root.service, Err: err}
			}

			plan, err := c.plan(root.key, root.build)
			if err != nil {
				return verificationFailed(root.service, err)
			}
			if err := c.exercise(ctx, t, plan, nil, make(map[*Plan]bool)); err != nil {
				return verificationFailed(root.service, err)
			}
		}
		if !progressed {
			c.logger.Debug("verification reached a fixed point", zap.Int("passes", pass))
			return nil
		}
	}
}

// verificationRoots lists every registered service, every conditional
// registration, every closed collection and every single or collection plan
// built so far.
func (c *Container) verificationRoots() []verificationRoot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var roots []verificationRoot
	for _, key := range c.store.singleOrder {
		service := c.store.single[key].service
		roots = append(roots, verificationRoot{
			key:     "one:" + key,
			service: service,
			build: func(path *buildPath) (*Plan, error) {
				return c.singlePlan(service, Descriptor{}, path)
			},
		})
	}

	// conditional registrations are built regardless of their predicate
	var conditional []*registration
	for _, regs := range c.store.conditional {
		conditional = append(conditional, regs...)
	}
	sort.Slice(conditional, func(i, j int) bool { return conditional[i].id < conditional[j].id })
	for _, r := range conditional {
		m := match{kind: matchConditional, reg: r, service: r.service}
		roots = append(roots, verificationRoot{
			key:     fmt.Sprintf("cond:%d", r.id),
			service: r.service,
			build: func(path *buildPath) (*Plan, error) {
				base, err := c.registrationPlan(m, path)
				if err != nil {
					return nil, err
				}
				return c.decorate(m.service, base, path)
			},
		})
	}
	for _, key := range c.store.collectionOrder {
		service := c.store.collections[key].service
		if service.IsOpen() {
			continue
		}
		roots = append(roots, verificationRoot{
			key:     "many:" + key,
			service: collectionDescriptor(service),
			build: func(path *buildPath) (*Plan, error) {
				return c.collectionPlan(service, path)
			},
		})
	}
	for _, key := range c.cache.rootKeys() {
		p := c.cache.plans[key]
		service := p.service
		if strings.HasPrefix(key, "many:") {
			service = collectionDescriptor(service)
		}
		roots = append(roots, verificationRoot{
			key:     key,
			service: service,
			build:   func(*buildPath) (*Plan, error) { return p, nil },
		})
	}
	return roots
}

// exercise invokes plan unless it already ran, then walks its dependencies.
// Nodes a parent did not run itself (lazy factories, cached singletons,
// collection elements) are invoked directly.
func (c *Container) exercise(ctx context.Context, t *tracker, plan *Plan, trail []Descriptor, walked map[*Plan]bool) error {
	if walked[plan] {
		return nil
	}
	walked[plan] = true

	if !t.seen(plan) {
		if _, err := plan.call(ctx); err != nil {
			if len(trail) > 0 {
				return requiredBy(err, trail...)
			}
			return err
		}
	}

	var next []Descriptor
	if plan.kind == collectionPlan {
		next = append(append([]Descriptor(nil), trail...), collectionDescriptor(plan.service))
	} else {
		next = append(append([]Descriptor(nil), trail...), plan.service)
		if !plan.implementation.IsZero() && !plan.implementation.Equal(plan.service) {
			next = append(next, plan.implementation)
		}
	}
	for _, dep := range plan.dependencies {
		if err := c.exercise(ctx, t, dep, next, walked); err != nil {
			return err
		}
	}
	return nil
}

func verificationFailed(root Descriptor, err error) error {
	var re *ResolutionError
	if errors.As(err, &re) {
		return &VerificationError{
			Root:           root,
			Service:        re.Service,
			Implementation: re.Implementation,
			Chain:          re.Chain,
			Err:            re.Err,
		}
	}
	return &VerificationError{Root: root, Err: err}
}
