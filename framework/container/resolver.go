package container

import (
	"fmt"
	"sort"
)

// Variance describes how a generic service's type parameter relates
// requests for one argument to registrations for another.
type Variance int

const (
	// Invariant parameters only match identical arguments.
	Invariant Variance = iota
	// Contravariant parameters (`in T`) let a registration for a supertype
	// serve a request for a subtype: Handler<Base> serves Handler<Derived>.
	Contravariant
	// Covariant parameters (`out T`) let a registration for a subtype serve a
	// request for a supertype: Source<Derived> serves Source<Base>.
	Covariant
)

func (v Variance) String() string {
	switch v {
	case Contravariant:
		return "in"
	case Covariant:
		return "out"
	default:
		return "invariant"
	}
}

// ── Matches ───────────────────────────────────────────────────────────────────

// matchKind tags how a request was satisfied.
type matchKind int

const (
	matchExact matchKind = iota
	matchConditional
	matchTemplate
	matchVariant
)

func (k matchKind) String() string {
	switch k {
	case matchExact:
		return "exact"
	case matchConditional:
		return "conditional"
	case matchTemplate:
		return "open-generic"
	case matchVariant:
		return "variant"
	default:
		return "unknown"
	}
}

// match is the outcome of resolving one registration for a request. service
// is the closed service descriptor the registration serves.
type match struct {
	kind     matchKind
	reg      *registration
	bindings Bindings
	service  Descriptor
}

// identity deduplicates collection elements: the same registration closed
// over the same implementation is one element.
func (m match) identity() string {
	return fmt.Sprintf("%d:%s", m.reg.id, m.reg.impl.Name.key)
}

// resolver is the pure pattern-matcher over the registration store. It never
// builds or invokes plans and never mutates the store.
type resolver struct {
	store *store
}

// resolveSingle picks the registration for a single-instance request:
// exact, then conditional, then open-generic template, then variant search.
func (r resolver) resolveSingle(service, consumer Descriptor) (match, error) {
	if reg, ok := r.store.lookup(service); ok {
		return match{kind: matchExact, reg: reg, service: service}, nil
	}

	if conds := r.store.lookupConditional(service); len(conds) > 0 {
		var accepted []*registration
		for _, c := range conds {
			if c.predicate == nil || c.predicate(PredicateContext{Service: service, Consumer: consumer}) {
				accepted = append(accepted, c)
			}
		}
		switch len(accepted) {
		case 0:
		case 1:
			return match{kind: matchConditional, reg: accepted[0], service: service}, nil
		default:
			return match{}, ambiguous(service, registrationNames(accepted))
		}
	}

	if templates := r.store.lookupOpenTemplates(service); len(templates) > 0 {
		most := r.mostSpecificTemplates(templates)
		if len(most) > 1 {
			regs := make([]*registration, len(most))
			for i, t := range most {
				regs[i] = t.reg
			}
			return match{}, ambiguous(service, registrationNames(regs))
		}
		return match{kind: matchTemplate, reg: most[0].reg, bindings: most[0].bindings, service: service}, nil
	}

	if candidates := r.variantSingles(service); len(candidates) > 0 {
		most := r.mostSpecific(candidates)
		if len(most) > 1 {
			return match{}, ambiguous(service, registrationNames(most))
		}
		return match{kind: matchVariant, reg: most[0], service: most[0].service}, nil
	}

	return match{}, ErrMissingRegistration
}

// resolveCollection aggregates every element serving a collection request:
// the exact explicit collection first, then elements discovered through open
// collection templates and variance, in registration order.
func (r resolver) resolveCollection(service Descriptor) []match {
	var explicit, discovered []match
	seen := make(map[string]bool)

	add := func(into *[]match, m match) {
		id := m.identity()
		if m.bindings != nil {
			id += "|" + m.reg.impl.close(m.bindings).Name.key
		}
		if seen[id] {
			return
		}
		seen[id] = true
		*into = append(*into, m)
	}

	if entry, ok := r.store.lookupCollection(service); ok {
		for _, el := range entry.elements {
			if m, ok := r.matchElement(el, service); ok {
				m.kind = matchExact
				add(&explicit, m)
			}
		}
	}

	for _, key := range r.store.collectionOrder {
		entry := r.store.collections[key]
		if entry.service.Equal(service) {
			continue
		}
		if !r.collectionMayServe(entry.service, service) {
			continue
		}
		for _, el := range entry.elements {
			if m, ok := r.matchElement(el, service); ok {
				add(&discovered, m)
			}
		}
	}

	sort.SliceStable(discovered, func(i, j int) bool {
		return discovered[i].reg.id < discovered[j].reg.id
	})
	return append(explicit, discovered...)
}

// collectionMayServe reports whether a collection registered for pattern can
// hold elements for the requested service.
func (r resolver) collectionMayServe(pattern, service Descriptor) bool {
	if pattern.name != service.name || len(pattern.args) != len(service.args) {
		return false
	}
	if pattern.IsOpen() {
		if _, ok := unify(pattern, service, nil); ok {
			return true
		}
	}
	return r.assignable(pattern, service)
}

// matchElement decides whether one collection element serves service.
func (r resolver) matchElement(el *registration, service Descriptor) (match, bool) {
	if el.service.IsOpen() {
		b, ok := unify(el.service, service, nil)
		if !ok {
			return match{}, false
		}
		return match{kind: matchTemplate, reg: el, bindings: b, service: service}, true
	}
	if el.service.Equal(service) {
		return match{kind: matchExact, reg: el, service: el.service}, true
	}
	if r.assignable(el.service, service) {
		return match{kind: matchVariant, reg: el, service: el.service}, true
	}
	return match{}, false
}

// variantSingles returns the closed single registrations of the same
// generic service that are assignable to service under its variance.
func (r resolver) variantSingles(service Descriptor) []*registration {
	if len(service.args) == 0 || len(r.store.variance[service.name]) == 0 {
		return nil
	}
	var out []*registration
	for _, key := range r.store.singleOrder {
		reg := r.store.single[key]
		if reg.service.name != service.name || reg.service.Equal(service) {
			continue
		}
		if r.assignable(reg.service, service) {
			out = append(out, reg)
		}
	}
	return out
}

// mostSpecific drops every candidate that is more general than another one:
// a candidate that could stand in for another, but not the reverse.
func (r resolver) mostSpecific(candidates []*registration) []*registration {
	var out []*registration
	for i, c := range candidates {
		dominated := false
		for j, o := range candidates {
			if i == j {
				continue
			}
			if r.assignable(c.service, o.service) && !r.assignable(o.service, c.service) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, c)
		}
	}
	return out
}

// mostSpecificTemplates prefers templates with the most concrete pattern:
// Handler<List<T>> beats Handler<T> for Handler<List<X>>.
func (r resolver) mostSpecificTemplates(templates []templateMatch) []templateMatch {
	best := -1
	var out []templateMatch
	for _, t := range templates {
		score := concreteness(t.reg.service)
		switch {
		case score > best:
			best = score
			out = []templateMatch{t}
		case score == best:
			out = append(out, t)
		}
	}
	return out
}

func concreteness(d Descriptor) int {
	if d.param {
		return 0
	}
	n := 1
	for _, a := range d.args {
		n += concreteness(a)
	}
	return n
}

// ── Type relations ────────────────────────────────────────────────────────────

// assignable reports whether an instance registered for from can serve a
// request for to: identity, a declared supertype chain, or a per-parameter
// variance rule of a shared generic service.
func (r resolver) assignable(from, to Descriptor) bool {
	return r.assignableSeen(from, to, make(map[string]bool))
}

func (r resolver) assignableSeen(from, to Descriptor, seen map[string]bool) bool {
	if from.Equal(to) {
		return true
	}
	// seen holds the pairs on the current path; it only guards against
	// cycles in declared supertypes.
	pair := from.key + "→" + to.key
	if seen[pair] {
		return false
	}
	seen[pair] = true
	defer delete(seen, pair)

	if from.name == to.name && len(from.args) == len(to.args) && len(from.args) > 0 {
		if r.variantCompatible(from, to, seen) {
			return true
		}
	}
	for _, super := range r.store.supertypes[from.key] {
		if r.assignableSeen(super, to, seen) {
			return true
		}
	}
	return false
}

func (r resolver) variantCompatible(from, to Descriptor, seen map[string]bool) bool {
	variances := r.store.variance[from.name]
	for i := range from.args {
		v := Invariant
		if i < len(variances) {
			v = variances[i]
		}
		switch v {
		case Contravariant:
			if !r.assignableSeen(to.args[i], from.args[i], seen) {
				return false
			}
		case Covariant:
			if !r.assignableSeen(from.args[i], to.args[i], seen) {
				return false
			}
		default:
			if !from.args[i].Equal(to.args[i]) {
				return false
			}
		}
	}
	return true
}

func ambiguous(service Descriptor, names []string) error {
	return &ResolutionError{
		Service: service,
		Err:     fmt.Errorf("%w: %d equally specific registrations %v", ErrAmbiguousResolution, len(names), names),
	}
}

func registrationNames(regs []*registration) []string {
	out := make([]string, len(regs))
	for i, r := range regs {
		out[i] = r.impl.Name.String()
	}
	return out
}
