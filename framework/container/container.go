package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ── Container ─────────────────────────────────────────────────────────────────

// Resolver resolves services. *Container implements it; Func delegates
// receive one to resolve what they need.
type Resolver interface {
	GetInstance(ctx context.Context, service Descriptor) (any, error)
	GetAllInstances(ctx context.Context, service Descriptor) ([]any, error)
}

// Container is the dependency-injection container.
//
// It has two phases. While configuring, services are registered; the first
// successful resolution (or a call to Verify) locks it, after which every
// configuration call fails with ErrContainerLocked.
//
// It supports:
//   - Register / RegisterInstance / RegisterConditional
//   - RegisterOpenGeneric (open-generic templates)
//   - RegisterCollection / RegisterCollectionProvider / AppendToCollection
//   - RegisterDecorator (open-generic and predicate decorators)
//   - DeclareVariance / DeclareSubtype (variance resolution)
//   - GetInstance / GetAllInstances / GetRegistration
//   - Verify
//   - BeginScope (Scoped lifestyle)
type Container struct {
	mu sync.RWMutex

	guard lockGuard
	store *store
	cache *producerCache

	allowOverride    bool
	defaultLifestyle Lifestyle

	logger  *zap.Logger
	metrics *Metrics

	// singletons implementing io.Closer, in construction order
	disposables disposer
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Container) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records resolutions, constructions and verifications.
func WithMetrics(m *Metrics) Option {
	return func(c *Container) { c.metrics = m }
}

// WithAllowOverride lets later registrations replace earlier ones.
func WithAllowOverride(allow bool) Option {
	return func(c *Container) { c.allowOverride = allow }
}

// WithDefaultLifestyle sets the lifestyle of registrations made without
// WithLifestyle. Decorators and collection elements are unaffected.
func WithDefaultLifestyle(l Lifestyle) Option {
	return func(c *Container) { c.defaultLifestyle = l }
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		store:            newStore(),
		cache:            newProducerCache(),
		defaultLifestyle: Transient,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

// configure is the only path to a mutation: it takes the write lock and
// consults the lock guard before running fn.
func (c *Container) configure(op string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard.check(op); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	c.logger.Debug("container configured", zap.String("operation", op))
	return nil
}

// Register binds a closed service descriptor to an implementation.
//
//	c.Register(container.Type("Weapon"), katana, container.WithLifestyle(container.Singleton))
func (c *Container) Register(service Descriptor, impl Implementation, opts ...RegisterOption) error {
	return c.configure("register "+service.String(), func() error {
		if err := checkClosed(service); err != nil {
			return err
		}
		if err := impl.validate(false); err != nil {
			return err
		}
		r := c.store.newRegistration(service, impl, c.defaultLifestyle)
		for _, opt := range opts {
			opt(r)
		}
		if r.predicate != nil {
			return fmt.Errorf("%w: %s: use RegisterConditional for predicated registrations", ErrInvalidRegistration, service)
		}
		return c.store.register(r, c.allowOverride)
	})
}

// RegisterInstance registers a pre-built value as a singleton.
func (c *Container) RegisterInstance(service Descriptor, v any, opts ...RegisterOption) error {
	if v == nil {
		return fmt.Errorf("%w: %s: instance is nil", ErrInvalidRegistration, service)
	}
	opts = append([]RegisterOption{WithLifestyle(Singleton)}, opts...)
	return c.Register(service, Instance(service, v), opts...)
}

// RegisterConditional adds one of possibly several registrations for a
// service, selected per consumer by the predicate. Exactly one conditional
// registration must accept a consumer; none falls through to templates and
// variance, more than one is ErrAmbiguousResolution.
func (c *Container) RegisterConditional(service Descriptor, impl Implementation, predicate Predicate, opts ...RegisterOption) error {
	return c.configure("register conditional "+service.String(), func() error {
		if err := checkClosed(service); err != nil {
			return err
		}
		if predicate == nil {
			return fmt.Errorf("%w: %s: conditional registration without predicate", ErrInvalidRegistration, service)
		}
		if err := impl.validate(false); err != nil {
			return err
		}
		r := c.store.newRegistration(service, impl, c.defaultLifestyle)
		for _, opt := range opts {
			opt(r)
		}
		r.predicate = predicate
		c.store.registerConditional(r)
		return nil
	})
}

// RegisterOpenGeneric registers a template for an open service, closed on
// demand for every matching request.
//
//	T := container.Param("T")
//	c.RegisterOpenGeneric(container.Type("Handler", T), multipleDispatch,
//	    container.WithLifestyle(container.Singleton))
func (c *Container) RegisterOpenGeneric(service Descriptor, impl Implementation, opts ...RegisterOption) error {
	return c.configure("register open-generic "+service.String(), func() error {
		if service.IsZero() || !service.IsOpen() {
			return fmt.Errorf("%w: %s is not an open-generic descriptor", ErrInvalidRegistration, service)
		}
		if err := impl.validate(false); err != nil {
			return err
		}
		if err := checkBound(service, impl); err != nil {
			return err
		}
		r := c.store.newRegistration(service, impl, c.defaultLifestyle)
		for _, opt := range opts {
			opt(r)
		}
		return c.store.registerTemplate(r, c.allowOverride)
	})
}

// RegisterCollection registers the ordered elements of "all implementations
// of service". service may be open; each element's Service must then be an
// instance of that pattern.
func (c *Container) RegisterCollection(service Descriptor, elements ...Element) error {
	return c.configure("register collection "+service.String(), func() error {
		regs, err := c.elements(service, elements)
		if err != nil {
			return err
		}
		return c.store.registerCollection(service, regs, nil, c.allowOverride)
	})
}

// RegisterCollectionProvider registers a collection whose elements are
// supplied by provider the first time the container builds a plan.
func (c *Container) RegisterCollectionProvider(service Descriptor, provider CollectionProvider) error {
	return c.configure("register collection "+service.String(), func() error {
		if service.IsZero() || provider == nil {
			return fmt.Errorf("%w: collection provider for %s", ErrInvalidRegistration, service)
		}
		return c.store.registerCollection(service, nil, provider, c.allowOverride)
	})
}

// AppendToCollection adds one element to the collection for service,
// creating the collection if it does not exist yet.
func (c *Container) AppendToCollection(service Descriptor, element Element) error {
	return c.configure("append to collection "+service.String(), func() error {
		regs, err := c.elements(service, []Element{element})
		if err != nil {
			return err
		}
		c.store.appendToCollection(service, regs[0])
		return nil
	})
}

func (c *Container) elements(service Descriptor, elements []Element) ([]*registration, error) {
	if service.IsZero() {
		return nil, fmt.Errorf("%w: collection has no service", ErrInvalidRegistration)
	}
	regs := make([]*registration, 0, len(elements))
	for _, el := range elements {
		if !el.Service.IsZero() {
			if _, ok := unify(service, el.Service, nil); !ok {
				return nil, fmt.Errorf("%w: element service %s does not match collection %s", ErrInvalidRegistration, el.Service, service)
			}
		}
		r, err := c.store.element(service, el)
		if err != nil {
			return nil, err
		}
		regs = append(regs, r)
	}
	return regs, nil
}

// RegisterDecorator wraps every plan for service (or every closed instance of
// an open service) with impl. impl must declare exactly one Decorated or
// DecoratedFactory dependency. Decorators default to Transient and apply in
// registration order: the first registered ends up outermost.
func (c *Container) RegisterDecorator(service Descriptor, impl Implementation, opts ...RegisterOption) error {
	return c.configure("register decorator "+service.String(), func() error {
		if service.IsZero() {
			return fmt.Errorf("%w: decorator has no service", ErrInvalidRegistration)
		}
		if err := impl.validate(true); err != nil {
			return err
		}
		if err := checkBound(service, impl); err != nil {
			return err
		}
		r := c.store.newRegistration(service, impl, Transient)
		for _, opt := range opts {
			opt(r)
		}
		c.store.registerDecorator(r)
		return nil
	})
}

// SetAllowOverride changes whether duplicate registrations replace earlier
// ones.
func (c *Container) SetAllowOverride(allow bool) error {
	return c.configure("set allow override", func() error {
		c.allowOverride = allow
		return nil
	})
}

// DeclareVariance declares the variance of each type parameter of the
// generic service name, in order.
//
//	c.DeclareVariance("Handler", container.Contravariant)
func (c *Container) DeclareVariance(name string, variances ...Variance) error {
	return c.configure("declare variance "+name, func() error {
		if name == "" {
			return fmt.Errorf("%w: variance without service name", ErrInvalidRegistration)
		}
		c.store.variance[name] = append([]Variance(nil), variances...)
		return nil
	})
}

// DeclareSubtype records that sub is assignable to super.
//
//	c.DeclareSubtype(container.Type("CustomerMovedAbroad"), container.Type("CustomerMoved"))
func (c *Container) DeclareSubtype(sub, super Descriptor) error {
	return c.configure("declare subtype "+sub.String(), func() error {
		if err := checkClosed(sub); err != nil {
			return err
		}
		if err := checkClosed(super); err != nil {
			return err
		}
		if sub.Equal(super) {
			return fmt.Errorf("%w: %s declared as its own subtype", ErrInvalidRegistration, sub)
		}
		c.store.supertypes[sub.key] = append(c.store.supertypes[sub.key], super)
		return nil
	})
}

func checkClosed(service Descriptor) error {
	if service.IsZero() {
		return fmt.Errorf("%w: empty descriptor", ErrInvalidRegistration)
	}
	if service.IsOpen() {
		return fmt.Errorf("%w: %s is open; use RegisterOpenGeneric", ErrInvalidRegistration, service)
	}
	return nil
}

// ── Resolution ────────────────────────────────────────────────────────────────

// GetInstance resolves one instance of service.
func (c *Container) GetInstance(ctx context.Context, service Descriptor) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	plan, err := c.plan("one:"+service.key, func(path *buildPath) (*Plan, error) {
		return c.singlePlan(service, Descriptor{}, path)
	})
	if err != nil {
		c.metrics.resolved("instance", err, start)
		return nil, err
	}

	v, err := plan.call(ctx)
	if err == nil && v == nil {
		err = &ResolutionError{Service: service, Implementation: plan.implementation, Err: ErrNullInstance}
	}
	c.metrics.resolved("instance", err, start)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetAllInstances resolves every implementation of service, in order. A
// service with no registrations yields an empty slice.
func (c *Container) GetAllInstances(ctx context.Context, service Descriptor) ([]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	plan, err := c.plan("many:"+service.key, func(path *buildPath) (*Plan, error) {
		return c.collectionPlan(service, path)
	})
	if err != nil {
		c.metrics.resolved("collection", err, start)
		return nil, err
	}

	v, err := plan.call(ctx)
	if err != nil {
		c.metrics.resolved("collection", err, start)
		return nil, err
	}
	out, err := v.(*Collection).All(ctx)
	c.metrics.resolved("collection", err, start)
	return out, err
}

// GetRegistration builds, without invoking, the plan for service.
func (c *Container) GetRegistration(service Descriptor) (*Plan, error) {
	return c.plan("one:"+service.key, func(path *buildPath) (*Plan, error) {
		return c.singlePlan(service, Descriptor{}, path)
	})
}

// GetCollectionRegistration builds, without invoking, the collection plan
// for service.
func (c *Container) GetCollectionRegistration(service Descriptor) (*Plan, error) {
	return c.plan("many:"+service.key, func(path *buildPath) (*Plan, error) {
		return c.collectionPlan(service, path)
	})
}

// Registrations returns every single and collection plan built so far, in
// build order. After Verify this includes everything discovered through
// open-generic and variance resolution.
func (c *Container) Registrations() []*Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.roots()
}

// IsLocked reports whether the container has been locked.
func (c *Container) IsLocked() bool { return c.guard.phase() == locked }

// IsRegistered reports whether anything is registered that could serve
// service: an exact, conditional or open-generic registration, or a
// collection. It does not consider variance.
func (c *Container) IsRegistered(service Descriptor) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.store.lookup(service); ok {
		return true
	}
	if len(c.store.lookupConditional(service)) > 0 {
		return true
	}
	if _, ok := c.store.lookupCollection(service); ok {
		return true
	}
	return len(c.store.lookupOpenTemplates(service)) > 0
}

// Dispose closes every constructed singleton implementing io.Closer, in
// reverse construction order. Once ctx is done, the remaining closers are
// skipped and the context error is part of the result.
func (c *Container) Dispose(ctx context.Context) error {
	errs := c.disposables.close(ctx)
	if len(errs) > 0 {
		c.logger.Warn("container disposal finished with errors", zap.Error(errors.Join(errs...)))
	}
	return errors.Join(errs...)
}

// plan returns the cached plan under key, building it when missing. A
// successful build locks the container.
func (c *Container) plan(key string, build func(*buildPath) (*Plan, error)) (*Plan, error) {
	c.mu.RLock()
	p, ok := c.cache.get(key)
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.materialize(); err != nil {
		return nil, err
	}

	c.cache.begin()
	p, err := build(newBuildPath())
	if err != nil {
		c.cache.rollback()
		c.logger.Debug("plan build failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	added := c.cache.commit()
	c.metrics.built(added)

	if c.guard.lock() {
		c.logger.Info("container locked", zap.String("trigger", key))
	}
	return p, nil
}

// ── Generic helpers ───────────────────────────────────────────────────────────

// Resolve resolves service and asserts the result to T.
//
//	handler, err := container.Resolve[events.Handler](ctx, c, handlerOfMoved)
func Resolve[T any](ctx context.Context, r Resolver, service Descriptor) (T, error) {
	var zero T
	v, err := r.GetInstance(ctx, service)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("resolve %s: %T is not %T", service, v, zero)
	}
	return typed, nil
}

// ResolveAll resolves every implementation of service and asserts each to T.
func ResolveAll[T any](ctx context.Context, r Resolver, service Descriptor) ([]T, error) {
	vs, err := r.GetAllInstances(ctx, service)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(vs))
	for i, v := range vs {
		typed, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("resolve all %s: element %d is %T, not %T", service, i, v, *new(T))
		}
		out[i] = typed
	}
	return out, nil
}

func scopeField(s *Scope) zap.Field {
	return zap.String("scope", s.id.String())
}
