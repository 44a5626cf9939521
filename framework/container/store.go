package container

import (
	"fmt"
)

// collectionEntry is the ordered element list registered for one descriptor.
type collectionEntry struct {
	service   Descriptor
	seq       uint64
	elements  []*registration
	providers []CollectionProvider
}

// store holds every registration. It has no behaviour beyond storage and
// lookup; lookups never trigger construction. The lock guard is enforced by
// the Container before any mutating call reaches the store.
type store struct {
	nextID uint64

	// closed service key → registration
	single map[string]*registration

	// closed service key → conditional registrations, registration order
	conditional map[string][]*registration

	// open-generic single templates, registration order
	templates []*registration

	// service key (closed or open) → collection
	collections     map[string]*collectionEntry
	collectionOrder []string

	// decorators, registration order
	decorators []*registration

	// service name → per-parameter variance
	variance map[string][]Variance

	// closed key → direct supertypes
	supertypes map[string][]Descriptor

	// registration order of closed single registrations, for verification
	singleOrder []string
}

func newStore() *store {
	return &store{
		single:      make(map[string]*registration),
		conditional: make(map[string][]*registration),
		collections: make(map[string]*collectionEntry),
		variance:    make(map[string][]Variance),
		supertypes:  make(map[string][]Descriptor),
	}
}

func (s *store) newRegistration(service Descriptor, impl Implementation, l Lifestyle) *registration {
	s.nextID++
	return &registration{id: s.nextID, service: service, impl: impl, lifestyle: l}
}

// register adds a one-to-one registration for a closed descriptor.
func (s *store) register(r *registration, allowOverride bool) error {
	key := r.service.key
	if existing, ok := s.single[key]; ok && !(allowOverride || r.override) {
		return fmt.Errorf("%w: %s is already registered to %s", ErrDuplicateRegistration, r.service, existing.impl.Name)
	}
	if _, ok := s.single[key]; !ok {
		s.singleOrder = append(s.singleOrder, key)
	}
	s.single[key] = r
	return nil
}

func (s *store) registerConditional(r *registration) {
	r.conditional = true
	s.conditional[r.service.key] = append(s.conditional[r.service.key], r)
}

// registerTemplate adds an open-generic template. A template for an
// identical pattern replaces the earlier one only when overriding.
func (s *store) registerTemplate(r *registration, allowOverride bool) error {
	for i, t := range s.templates {
		if t.service.Equal(r.service) {
			if !(allowOverride || r.override) {
				return fmt.Errorf("%w: open-generic %s is already registered to %s", ErrDuplicateRegistration, r.service, t.impl.Name)
			}
			s.templates[i] = r
			return nil
		}
	}
	s.templates = append(s.templates, r)
	return nil
}

// registerCollection creates or replaces the collection for service.
func (s *store) registerCollection(service Descriptor, elements []*registration, provider CollectionProvider, allowOverride bool) error {
	if _, ok := s.collections[service.key]; ok && !allowOverride {
		return fmt.Errorf("%w: collection %s is already registered", ErrDuplicateRegistration, service)
	}
	entry := s.collectionFor(service)
	entry.elements = elements
	entry.providers = nil
	if provider != nil {
		entry.providers = []CollectionProvider{provider}
	}
	return nil
}

// appendToCollection adds one element, creating the collection if needed.
func (s *store) appendToCollection(service Descriptor, element *registration) {
	entry := s.collectionFor(service)
	entry.elements = append(entry.elements, element)
}

func (s *store) collectionFor(service Descriptor) *collectionEntry {
	entry, ok := s.collections[service.key]
	if !ok {
		s.nextID++
		entry = &collectionEntry{service: service, seq: s.nextID}
		s.collections[service.key] = entry
		s.collectionOrder = append(s.collectionOrder, service.key)
	}
	return entry
}

func (s *store) registerDecorator(r *registration) {
	s.decorators = append(s.decorators, r)
}

// materialize expands dynamic collection providers into elements. Providers
// run once; a failing provider is retried on the next call.
func (s *store) materialize() error {
	for _, key := range s.collectionOrder {
		entry := s.collections[key]
		for len(entry.providers) > 0 {
			elems, err := entry.providers[0]()
			if err != nil {
				return fmt.Errorf("collection provider for %s: %w", entry.service, err)
			}
			for _, el := range elems {
				r, err := s.element(entry.service, el)
				if err != nil {
					return err
				}
				entry.elements = append(entry.elements, r)
			}
			entry.providers = entry.providers[1:]
		}
	}
	return nil
}

// element converts a collection Element into a registration.
func (s *store) element(collection Descriptor, el Element) (*registration, error) {
	service := el.Service
	if service.IsZero() {
		service = collection
	}
	if err := el.Implementation.validate(false); err != nil {
		return nil, err
	}
	if err := checkBound(service, el.Implementation); err != nil {
		return nil, err
	}
	return s.newRegistration(service, el.Implementation, el.Lifestyle), nil
}

// ── Lookup ────────────────────────────────────────────────────────────────────

func (s *store) lookup(service Descriptor) (*registration, bool) {
	r, ok := s.single[service.key]
	return r, ok
}

func (s *store) lookupConditional(service Descriptor) []*registration {
	return s.conditional[service.key]
}

func (s *store) lookupCollection(service Descriptor) (*collectionEntry, bool) {
	e, ok := s.collections[service.key]
	return e, ok
}

// lookupOpenTemplates returns the templates whose pattern matches service,
// with the bindings each match produced.
func (s *store) lookupOpenTemplates(service Descriptor) []templateMatch {
	var out []templateMatch
	for _, t := range s.templates {
		if b, ok := unify(t.service, service, nil); ok {
			out = append(out, templateMatch{reg: t, bindings: b})
		}
	}
	return out
}

type templateMatch struct {
	reg      *registration
	bindings Bindings
}

// checkBound ensures every type parameter used by impl is bound by service.
func checkBound(service Descriptor, impl Implementation) error {
	bound := make(map[string]bool)
	service.params(bound)

	used := make(map[string]bool)
	impl.Name.params(used)
	for _, d := range impl.Deps {
		d.Service.params(used)
	}
	for p := range used {
		if !bound[p] {
			return fmt.Errorf("%w: %s uses type parameter %s not bound by %s", ErrInvalidRegistration, impl.Name, p, service)
		}
	}
	return nil
}
