package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ── Producer cache ────────────────────────────────────────────────────────────

// producerCache memoizes plans by key:
//
//	one:<service>[@<consumer>]   single-instance plans
//	many:<service>               collection plans
//	reg:<id>:<implementation>    lifestyle-wrapped registration plans
//
// Builds are transactional: plans added during a failed build are dropped,
// so a failed resolution leaves the cache as it was.
type producerCache struct {
	plans map[string]*Plan
	order []string

	recording bool
	journal   []string
}

func newProducerCache() *producerCache {
	return &producerCache{plans: make(map[string]*Plan)}
}

func (pc *producerCache) get(key string) (*Plan, bool) {
	p, ok := pc.plans[key]
	return p, ok
}

func (pc *producerCache) put(key string, p *Plan) {
	if _, ok := pc.plans[key]; !ok {
		pc.order = append(pc.order, key)
		if pc.recording {
			pc.journal = append(pc.journal, key)
		}
	}
	pc.plans[key] = p
}

func (pc *producerCache) begin() {
	pc.recording = true
	pc.journal = pc.journal[:0]
}

// commit ends the build and returns how many plans it added.
func (pc *producerCache) commit() int {
	n := len(pc.journal)
	pc.recording = false
	pc.journal = pc.journal[:0]
	return n
}

func (pc *producerCache) rollback() {
	if len(pc.journal) > 0 {
		dropped := make(map[string]bool, len(pc.journal))
		for _, key := range pc.journal {
			delete(pc.plans, key)
			dropped[key] = true
		}
		kept := pc.order[:0]
		for _, key := range pc.order {
			if !dropped[key] {
				kept = append(kept, key)
			}
		}
		pc.order = kept
	}
	pc.recording = false
	pc.journal = pc.journal[:0]
}

// rootKeys returns the keys of every single and collection plan, in build
// order.
func (pc *producerCache) rootKeys() []string {
	var out []string
	for _, key := range pc.order {
		if strings.HasPrefix(key, "one:") || strings.HasPrefix(key, "many:") {
			out = append(out, key)
		}
	}
	return out
}

func (pc *producerCache) roots() []*Plan {
	keys := pc.rootKeys()
	out := make([]*Plan, len(keys))
	for i, key := range keys {
		out[i] = pc.plans[key]
	}
	return out
}

// ── Build path ────────────────────────────────────────────────────────────────

// buildPath tracks the plans under construction so that a plan reached
// again before it is finished is reported as a cycle.
type buildPath struct {
	active map[string]int
	stack  []Descriptor
	keys   []string
}

func newBuildPath() *buildPath {
	return &buildPath{active: make(map[string]int)}
}

// enter pushes key. d is appended to the visible chain unless it is zero.
func (b *buildPath) enter(key string, d Descriptor) error {
	if at, ok := b.active[key]; ok {
		var cycle []Descriptor
		for _, s := range append(b.stack[at:len(b.stack):len(b.stack)], d) {
			if !s.IsZero() {
				cycle = append(cycle, s)
			}
		}
		return &ResolutionError{
			Service: d,
			Chain:   b.chain(),
			Err:     fmt.Errorf("%w: %s", ErrCircularDependency, formatChain(cycle)),
		}
	}
	if d.depth() > maxNestingDepth {
		return &ResolutionError{
			Service: d,
			Chain:   b.chain(),
			Err:     fmt.Errorf("%w: type arguments nest deeper than %d", ErrInvalidRegistration, maxNestingDepth),
		}
	}
	b.active[key] = len(b.stack)
	b.keys = append(b.keys, key)
	b.stack = append(b.stack, d)
	return nil
}

func (b *buildPath) leave() {
	n := len(b.keys) - 1
	delete(b.active, b.keys[n])
	b.keys = b.keys[:n]
	b.stack = b.stack[:n]
}

// chain returns the visible dependents, outermost first.
func (b *buildPath) chain() []Descriptor {
	out := make([]Descriptor, 0, len(b.stack))
	for _, d := range b.stack {
		if !d.IsZero() {
			out = append(out, d)
		}
	}
	return out
}

// ── Plan building ─────────────────────────────────────────────────────────────

func (c *Container) resolver() resolver { return resolver{store: c.store} }

// singlePlan returns the plan serving one instance of service to consumer.
// Callers hold c.mu.
func (c *Container) singlePlan(service, consumer Descriptor, path *buildPath) (*Plan, error) {
	if service.IsZero() {
		return nil, &ResolutionError{Service: service, Chain: path.chain(), Err: fmt.Errorf("%w: empty descriptor", ErrInvalidRegistration)}
	}
	if service.IsOpen() {
		return nil, &ResolutionError{Service: service, Chain: path.chain(), Err: fmt.Errorf("%w: open descriptor %s cannot be resolved", ErrInvalidRegistration, service)}
	}
	key := "one:" + service.key
	if p, ok := c.cache.get(key); ok {
		return p, nil
	}

	m, err := c.resolver().resolveSingle(service, consumer)
	if err != nil {
		if errors.Is(err, ErrMissingRegistration) {
			return nil, missing(service, path.chain())
		}
		return nil, withChain(err, path.chain())
	}

	if m.kind == matchConditional {
		key += "@" + consumer.key
		if p, ok := c.cache.get(key); ok {
			return p, nil
		}
	}

	if err := path.enter(key, service); err != nil {
		return nil, err
	}
	defer path.leave()

	base, err := c.registrationPlan(m, path)
	if err != nil {
		return nil, err
	}
	plan, err := c.decorate(service, base, path)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, plan)
	return plan, nil
}

// collectionPlan returns the plan producing the *Collection for service.
func (c *Container) collectionPlan(service Descriptor, path *buildPath) (*Plan, error) {
	if service.IsZero() || service.IsOpen() {
		return nil, &ResolutionError{Service: service, Chain: path.chain(), Err: fmt.Errorf("%w: collection of %q cannot be resolved", ErrInvalidRegistration, service)}
	}
	key := "many:" + service.key
	if p, ok := c.cache.get(key); ok {
		return p, nil
	}

	if err := path.enter(key, collectionDescriptor(service)); err != nil {
		return nil, err
	}
	defer path.leave()

	matches := c.resolver().resolveCollection(service)
	elements := make([]*Plan, 0, len(matches))
	for _, m := range matches {
		base, err := c.registrationPlan(m, path)
		if err != nil {
			return nil, err
		}
		el, err := c.decorate(service, base, path)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}

	coll := &Collection{service: service, elements: elements}
	plan := &Plan{
		id:           planIDs.Add(1),
		kind:         collectionPlan,
		service:      service,
		lifestyle:    Singleton,
		dependencies: elements,
		invoke:       func(context.Context) (any, error) { return coll, nil },
	}
	c.cache.put(key, plan)
	return plan, nil
}

// registrationPlan returns the lifestyle-wrapped plan of one registration,
// closed over the bindings of the match. Registrations reached through
// several services share the plan, and with it the singleton instance.
func (c *Container) registrationPlan(m match, path *buildPath) (*Plan, error) {
	impl := m.reg.impl.close(m.bindings)
	key := fmt.Sprintf("reg:%d:%s", m.reg.id, impl.Name.key)
	if p, ok := c.cache.get(key); ok {
		return p, nil
	}

	var visible Descriptor
	if !impl.Name.Equal(m.service) {
		visible = impl.Name
	}
	if err := path.enter(key, visible); err != nil {
		return nil, err
	}
	defer path.leave()

	deps, err := c.dependencyPlans(impl, nil, path)
	if err != nil {
		return nil, err
	}
	raw := &Plan{
		id:             planIDs.Add(1),
		kind:           instancePlan,
		service:        m.service,
		implementation: impl.Name,
		lifestyle:      m.reg.lifestyle,
		dependencies:   deps,
		kinds:          impl.kinds(),
		external:       impl.external,
		invoke:         c.activator(m.service, impl, deps, m.bindings, m.reg.lifestyle),
	}
	plan := c.lifestyleWrapper(m.reg.lifestyle)(raw)
	c.cache.put(key, plan)
	return plan, nil
}

// dependencyPlans builds the plan of every dependency of impl. decoratee
// fills Decoratee and DecorateeFactory slots.
func (c *Container) dependencyPlans(impl Implementation, decoratee *Plan, path *buildPath) ([]*Plan, error) {
	plans := make([]*Plan, len(impl.Deps))
	for i, d := range impl.Deps {
		var (
			p   *Plan
			err error
		)
		switch d.Kind {
		case Many:
			p, err = c.collectionPlan(d.Service, path)
		case Decoratee, DecorateeFactory:
			p = decoratee
		default:
			p, err = c.singlePlan(d.Service, impl.Name, path)
		}
		if err != nil {
			return nil, err
		}
		plans[i] = p
	}
	return plans, nil
}

// activator returns the raw invoker of impl: resolve arguments, call the
// constructor, reject nil. Constructor panics become ErrConstructorPanic.
func (c *Container) activator(service Descriptor, impl Implementation, deps []*Plan, bindings Bindings, l Lifestyle) func(context.Context) (any, error) {
	kinds := impl.kinds()
	dependents := []Descriptor{service}
	if !impl.Name.Equal(service) {
		dependents = append(dependents, impl.Name)
	}

	return func(ctx context.Context) (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				v = nil
				err = &ResolutionError{
					Service:        service,
					Implementation: impl.Name,
					Err:            fmt.Errorf("%w: %v", ErrConstructorPanic, r),
				}
			}
		}()

		values := make([]any, len(deps))
		for i, dep := range deps {
			switch kinds[i] {
			case Lazy, DecorateeFactory:
				values[i] = Factory(dep.Invoke)
			default:
				dv, err := dep.call(ctx)
				if err != nil {
					return nil, requiredBy(err, dependents...)
				}
				if dv == nil {
					return nil, requiredBy(&ResolutionError{Service: dep.service, Implementation: dep.implementation, Err: ErrNullInstance}, dependents...)
				}
				values[i] = dv
			}
		}

		v, err = impl.New(Args{ctx: ctx, values: values, bindings: bindings, resolver: c})
		if err != nil {
			return nil, activationFailed(service, impl.Name, err)
		}
		if v == nil {
			return nil, &ResolutionError{Service: service, Implementation: impl.Name, Err: ErrNullInstance}
		}
		c.metrics.constructed(l)
		return v, nil
	}
}
