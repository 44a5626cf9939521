package container

import (
	"fmt"
)

// ── Decorator weaving ─────────────────────────────────────────────────────────

type decoratorMatch struct {
	reg      *registration
	bindings Bindings
}

// decorators returns the decorators registered for service, in registration
// order. Open decorators match every closed instance of their pattern.
func (c *Container) decorators(service Descriptor) []decoratorMatch {
	var out []decoratorMatch
	for _, d := range c.store.decorators {
		if !d.service.IsOpen() {
			if d.service.Equal(service) {
				out = append(out, decoratorMatch{reg: d})
			}
			continue
		}
		if b, ok := unify(d.service, service, nil); ok {
			out = append(out, decoratorMatch{reg: d, bindings: b})
		}
	}
	return out
}

// decorate wraps base with every applicable decorator. Decorators registered
// as A then B produce A(B(base)): the last registered is applied first.
// Each applied decorator is a planWrapper followed by its own lifestyle.
func (c *Container) decorate(service Descriptor, base *Plan, path *buildPath) (*Plan, error) {
	matches := c.decorators(service)
	if len(matches) == 0 {
		return base, nil
	}

	plan := base
	var applied []Descriptor
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		impl := m.reg.impl.close(m.bindings)

		if m.reg.predicate != nil {
			ok := m.reg.predicate(PredicateContext{
				Service:        service,
				Implementation: base.implementation,
				Applied:        append([]Descriptor(nil), applied...),
			})
			if !ok {
				continue
			}
		}

		wrapped, err := c.decorator(service, impl, m, plan, path)
		if err != nil {
			return nil, err
		}
		plan = wrapped
		applied = append(applied, impl.Name)
	}
	return plan, nil
}

// decorator returns the plan of one decorator around decoratee.
func (c *Container) decorator(service Descriptor, impl Implementation, m decoratorMatch, decoratee *Plan, path *buildPath) (*Plan, error) {
	key := fmt.Sprintf("dec:%d:%s:%d", m.reg.id, service.key, decoratee.id)
	if err := path.enter(key, impl.Name); err != nil {
		return nil, err
	}
	defer path.leave()

	deps, err := c.dependencyPlans(impl, decoratee, path)
	if err != nil {
		return nil, err
	}

	woven := make([]Descriptor, 0, len(decoratee.decorators)+1)
	woven = append(woven, decoratee.decorators...)
	woven = append(woven, impl.Name)

	raw := &Plan{
		id:             planIDs.Add(1),
		kind:           decoratorPlan,
		service:        service,
		implementation: impl.Name,
		lifestyle:      m.reg.lifestyle,
		dependencies:   deps,
		kinds:          impl.kinds(),
		decorators:     woven,
		invoke:         c.activator(service, impl, deps, m.bindings, m.reg.lifestyle),
	}
	return c.lifestyleWrapper(m.reg.lifestyle)(raw), nil
}
