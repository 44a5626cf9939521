package container

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// planKind tags what a plan constructs.
type planKind int

const (
	instancePlan planKind = iota
	collectionPlan
	decoratorPlan
)

var planIDs atomic.Uint64

// Plan is a memoized construction plan: a reusable description of how to
// build one instance of a service, including the plans of its dependencies.
// Building a plan never runs constructors; only Invoke does.
type Plan struct {
	id             uint64
	kind           planKind
	service        Descriptor
	implementation Descriptor
	lifestyle      Lifestyle
	dependencies   []*Plan
	kinds          []DependencyKind
	decorators     []Descriptor
	external       bool // yields a caller-owned value; never disposed
	invoke         func(ctx context.Context) (any, error)
}

// Service returns the descriptor the plan produces.
func (p *Plan) Service() Descriptor { return p.service }

// Implementation returns the outermost implementation, which is the last
// applied decorator for decorated plans. It is zero for collection plans.
func (p *Plan) Implementation() Descriptor { return p.implementation }

// Lifestyle returns the lifestyle governing the outermost layer of the plan.
func (p *Plan) Lifestyle() Lifestyle { return p.lifestyle }

// Dependencies returns the plans this plan invokes. For collection plans
// these are the element plans, in order.
func (p *Plan) Dependencies() []*Plan { return append([]*Plan(nil), p.dependencies...) }

// DependencyKinds returns how each dependency is passed, parallel to
// Dependencies. Collection plans report Many for every element.
func (p *Plan) DependencyKinds() []DependencyKind {
	if p.kind == collectionPlan {
		kinds := make([]DependencyKind, len(p.dependencies))
		for i := range kinds {
			kinds[i] = Many
		}
		return kinds
	}
	return append([]DependencyKind(nil), p.kinds...)
}

// Decorators returns the decorators woven into the plan, innermost first.
func (p *Plan) Decorators() []Descriptor { return append([]Descriptor(nil), p.decorators...) }

// IsCollection reports whether the plan produces a *Collection.
func (p *Plan) IsCollection() bool { return p.kind == collectionPlan }

// Invoke runs the plan. Scoped plans read the ambient scope from ctx.
func (p *Plan) Invoke(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return p.call(ctx)
}

// call is the single entry point for invoking a plan. It records the visit
// when a verification is tracking the invocation.
func (p *Plan) call(ctx context.Context) (any, error) {
	v, err := p.invoke(ctx)
	if err == nil {
		if t := trackerFrom(ctx); t != nil {
			t.visit(p)
		}
	}
	return v, err
}

// derive returns a copy of p with a new identity, lifestyle and invoker.
func (p *Plan) derive(l Lifestyle, invoke func(context.Context) (any, error)) *Plan {
	return &Plan{
		id:             planIDs.Add(1),
		kind:           p.kind,
		service:        p.service,
		implementation: p.implementation,
		lifestyle:      l,
		dependencies:   p.dependencies,
		kinds:          p.kinds,
		decorators:     p.decorators,
		external:       p.external,
		invoke:         invoke,
	}
}

// String renders the plan as a nested construction expression, e.g.
// "Logging(Handler<X> as CustomerMovedHandler(Log)) [transient]".
func (p *Plan) String() string {
	var b strings.Builder
	p.render(&b, make(map[*Plan]bool))
	return b.String()
}

func (p *Plan) render(b *strings.Builder, seen map[*Plan]bool) {
	if seen[p] {
		b.WriteString(p.service.String())
		return
	}
	seen[p] = true
	defer delete(seen, p)

	if p.kind == collectionPlan {
		fmt.Fprintf(b, "[]%s{", p.service)
	} else {
		fmt.Fprintf(b, "%s(", p.implementation)
	}
	for i, d := range p.dependencies {
		if i > 0 {
			b.WriteString(", ")
		}
		d.render(b, seen)
	}
	if p.kind == collectionPlan {
		b.WriteString("}")
	} else {
		fmt.Fprintf(b, ") [%s]", p.lifestyle)
	}
}

// ── Collections ───────────────────────────────────────────────────────────────

// Collection is the lazily evaluated sequence of every implementation of a
// service. Each iteration invokes the element plans again, so transient
// elements are new on every pass while singleton and scoped elements keep
// their identity. Order is registration order.
type Collection struct {
	service  Descriptor
	elements []*Plan
}

// Service returns the element descriptor.
func (c *Collection) Service() Descriptor { return c.service }

// Len returns the number of elements.
func (c *Collection) Len() int { return len(c.elements) }

// Each invokes fn for every element, in order, stopping at the first error.
func (c *Collection) Each(ctx context.Context, fn func(i int, v any) error) error {
	for i, el := range c.elements {
		v, err := el.call(ctx)
		if err != nil {
			return requiredBy(err, collectionDescriptor(c.service))
		}
		if v == nil {
			return &ResolutionError{
				Service:        el.service,
				Implementation: el.implementation,
				Chain:          []Descriptor{collectionDescriptor(c.service)},
				Err:            ErrNullInstance,
			}
		}
		if err := fn(i, v); err != nil {
			return err
		}
	}
	return nil
}

// All evaluates the collection once and returns every element.
func (c *Collection) All(ctx context.Context) ([]any, error) {
	out := make([]any, 0, len(c.elements))
	err := c.Each(ctx, func(_ int, v any) error {
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CollectionOf evaluates c and asserts every element to T.
//
//	handlers, err := container.CollectionOf[Handler](ctx, args.Collection(0))
func CollectionOf[T any](ctx context.Context, c *Collection) ([]T, error) {
	out := make([]T, 0, c.Len())
	err := c.Each(ctx, func(i int, v any) error {
		typed, ok := v.(T)
		if !ok {
			return fmt.Errorf("collection %s: element %d is %T, not %T", c.service, i, v, *new(T))
		}
		out = append(out, typed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// collectionDescriptor names a collection request in chains and listings.
func collectionDescriptor(service Descriptor) Descriptor {
	return Type("[]" + service.String())
}
