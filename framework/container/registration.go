package container

import (
	"context"
	"fmt"
)

// ── Implementations ───────────────────────────────────────────────────────────

// DependencyKind describes how a constructor wants a dependency supplied.
type DependencyKind int

const (
	// One supplies a single resolved instance.
	One DependencyKind = iota
	// Many supplies a *Collection of every implementation of the service.
	Many
	// Lazy supplies a Factory that resolves the service on each call.
	Lazy
	// Decoratee supplies the instance being decorated. Decorators only.
	Decoratee
	// DecorateeFactory supplies a Factory producing the decorated instance.
	// Decorators only.
	DecorateeFactory
)

func (k DependencyKind) String() string {
	switch k {
	case One:
		return "one"
	case Many:
		return "many"
	case Lazy:
		return "lazy"
	case Decoratee:
		return "decoratee"
	case DecorateeFactory:
		return "decoratee-factory"
	default:
		return "unknown"
	}
}

// Dependency is one constructor argument of an Implementation.
type Dependency struct {
	Service Descriptor
	Kind    DependencyKind
}

// Need declares a single-instance dependency.
func Need(service Descriptor) Dependency { return Dependency{Service: service, Kind: One} }

// NeedAll declares a collection dependency.
func NeedAll(service Descriptor) Dependency { return Dependency{Service: service, Kind: Many} }

// NeedLazy declares a deferred dependency supplied as a Factory.
func NeedLazy(service Descriptor) Dependency { return Dependency{Service: service, Kind: Lazy} }

// Decorated declares the decorated instance of a decorator.
func Decorated() Dependency { return Dependency{Kind: Decoratee} }

// DecoratedFactory declares the decorated instance as a Factory.
func DecoratedFactory() Dependency { return Dependency{Kind: DecorateeFactory} }

// Constructor builds an instance from its resolved arguments.
type Constructor func(args Args) (any, error)

// Implementation describes how to construct a service: its descriptor, the
// dependencies its constructor needs, in order, and the constructor itself.
// Dependencies may reference the type parameters of an open-generic service.
//
//	container.Implementation{
//	    Name: container.Type("UserService"),
//	    Deps: []container.Dependency{container.Need(container.Type("UserRepository"))},
//	    New: func(a container.Args) (any, error) {
//	        return &UserService{Repo: container.Arg[UserRepository](a, 0)}, nil
//	    },
//	}
type Implementation struct {
	Name Descriptor
	Deps []Dependency
	New  Constructor

	external bool
}

// Instance returns an Implementation that always yields v. The caller keeps
// ownership of v: the container never closes it.
func Instance(name Descriptor, v any) Implementation {
	return Implementation{
		Name:     name,
		New:      func(Args) (any, error) { return v, nil },
		external: true,
	}
}

// Func returns an Implementation backed by a delegate that resolves what it
// needs through the Resolver. Its dependencies are not known in advance, so
// they are only discovered (and verified) when the delegate runs.
func Func(name Descriptor, fn func(ctx context.Context, r Resolver) (any, error)) Implementation {
	return Implementation{
		Name: name,
		New: func(a Args) (any, error) {
			return fn(a.Context(), a.resolver)
		},
	}
}

// close substitutes bound type parameters throughout the implementation.
func (impl Implementation) close(b Bindings) Implementation {
	if len(b) == 0 {
		return impl
	}
	out := Implementation{Name: b.substitute(impl.Name), New: impl.New, external: impl.external}
	if len(impl.Deps) > 0 {
		out.Deps = make([]Dependency, len(impl.Deps))
		for i, d := range impl.Deps {
			out.Deps[i] = Dependency{Service: b.substitute(d.Service), Kind: d.Kind}
		}
	}
	return out
}

func (impl Implementation) kinds() []DependencyKind {
	kinds := make([]DependencyKind, len(impl.Deps))
	for i, d := range impl.Deps {
		kinds[i] = d.Kind
	}
	return kinds
}

func (impl Implementation) validate(decorator bool) error {
	if impl.Name.IsZero() {
		return fmt.Errorf("%w: implementation has no name", ErrInvalidRegistration)
	}
	if impl.New == nil {
		return fmt.Errorf("%w: %s has no constructor", ErrInvalidRegistration, impl.Name)
	}
	decoratees := 0
	for i, d := range impl.Deps {
		switch d.Kind {
		case Decoratee, DecorateeFactory:
			decoratees++
		default:
			if d.Service.IsZero() {
				return fmt.Errorf("%w: %s dependency %d has no service", ErrInvalidRegistration, impl.Name, i)
			}
		}
	}
	if decorator && decoratees != 1 {
		return fmt.Errorf("%w: decorator %s must declare exactly one decorated dependency", ErrInvalidRegistration, impl.Name)
	}
	if !decorator && decoratees > 0 {
		return fmt.Errorf("%w: %s declares a decorated dependency but is not a decorator", ErrInvalidRegistration, impl.Name)
	}
	return nil
}

// ── Args ──────────────────────────────────────────────────────────────────────

// Factory produces an instance on demand. Lazy and DecorateeFactory
// dependencies are supplied as a Factory.
type Factory func(ctx context.Context) (any, error)

// Args carries the resolved constructor arguments, in Deps order.
type Args struct {
	ctx      context.Context
	values   []any
	bindings Bindings
	resolver Resolver
}

// Context returns the context of the resolution that triggered construction.
func (a Args) Context() context.Context { return a.ctx }

// Len returns the number of arguments.
func (a Args) Len() int { return len(a.values) }

// Value returns the raw argument at i.
func (a Args) Value(i int) any { return a.values[i] }

// Factory returns the Lazy or DecorateeFactory argument at i.
func (a Args) Factory(i int) Factory {
	f, _ := a.values[i].(Factory)
	return f
}

// Collection returns the Many argument at i.
func (a Args) Collection(i int) *Collection {
	c, _ := a.values[i].(*Collection)
	return c
}

// TypeArg returns the descriptor bound to an open-generic type parameter.
func (a Args) TypeArg(param string) Descriptor { return a.bindings[param] }

// Arg returns argument i asserted to T. A mismatch panics; the container
// converts the panic into an ErrConstructorPanic resolution error.
//
//	repo := container.Arg[UserRepository](args, 0)
func Arg[T any](a Args, i int) T {
	v, ok := a.values[i].(T)
	if !ok {
		panic(fmt.Sprintf("container: Arg[%T]: argument %d is %T", *new(T), i, a.values[i]))
	}
	return v
}

// ── Registrations ─────────────────────────────────────────────────────────────

// PredicateContext is what a Predicate sees when deciding whether a
// conditional registration or decorator applies.
type PredicateContext struct {
	// Service is the closed descriptor being resolved.
	Service Descriptor
	// Implementation is the implementation being decorated (decorators only).
	Implementation Descriptor
	// Consumer is the implementation that depends on Service; zero for a
	// root request (conditional registrations only).
	Consumer Descriptor
	// Applied lists the decorators already wrapped around Implementation,
	// innermost first.
	Applied []Descriptor
}

// Predicate accepts or rejects a conditional registration or decorator.
type Predicate func(PredicateContext) bool

// Element is one member of a collection registration. A zero Service means
// the collection's own descriptor.
type Element struct {
	Service        Descriptor
	Implementation Implementation
	Lifestyle      Lifestyle
}

// Elements builds transient elements, one per implementation.
func Elements(impls ...Implementation) []Element {
	out := make([]Element, len(impls))
	for i, impl := range impls {
		out[i] = Element{Implementation: impl}
	}
	return out
}

// CollectionProvider supplies collection elements dynamically. It is called
// once, the first time the container builds a plan.
type CollectionProvider func() ([]Element, error)

// registration is the store's internal record.
type registration struct {
	id          uint64
	service     Descriptor
	impl        Implementation
	lifestyle   Lifestyle
	predicate   Predicate
	override    bool
	conditional bool
}

// RegisterOption configures a registration.
type RegisterOption func(*registration)

// WithLifestyle sets the Lifestyle. The default is the container's default
// lifestyle (Transient unless changed with WithDefaultLifestyle).
func WithLifestyle(l Lifestyle) RegisterOption {
	return func(r *registration) { r.lifestyle = l }
}

// Override allows this registration to replace an existing one.
func Override() RegisterOption {
	return func(r *registration) { r.override = true }
}

// When restricts a decorator to the resolutions its predicate accepts.
func When(p Predicate) RegisterOption {
	return func(r *registration) { r.predicate = p }
}
