// Package diagnostics inspects the plans of a container: a flat report of
// every root registration, and an analysis for configuration smells that
// verification does not reject.
//
// Both functions read c.Registrations(), so they see the plans built so far.
// Run them after Verify to cover the whole configuration.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/km-arc/go-ioc/framework/container"
)

// Entry describes one root plan.
type Entry struct {
	Service        string   `json:"service"`
	Implementation string   `json:"implementation,omitempty"`
	Lifestyle      string   `json:"lifestyle"`
	Collection     bool     `json:"collection,omitempty"`
	Decorators     []string `json:"decorators,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
}

// Report lists the root plans of c ordered by service.
func Report(c *container.Container) []Entry {
	plans := c.Registrations()
	entries := make([]Entry, 0, len(plans))
	for _, p := range plans {
		e := Entry{
			Service:    p.Service().String(),
			Lifestyle:  p.Lifestyle().String(),
			Collection: p.IsCollection(),
			Decorators: names(p.Decorators()),
		}
		if !p.Implementation().IsZero() {
			e.Implementation = p.Implementation().String()
		}
		for _, d := range p.Dependencies() {
			e.Dependencies = append(e.Dependencies, label(d))
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Service != entries[j].Service {
			return entries[i].Service < entries[j].Service
		}
		return !entries[i].Collection && entries[j].Collection
	})
	return entries
}

// Filter keeps entries whose service starts with prefix and, when lifestyle
// is not empty, whose lifestyle matches.
func Filter(entries []Entry, prefix, lifestyle string) []Entry {
	var out []Entry
	for _, e := range entries {
		if !strings.HasPrefix(e.Service, prefix) {
			continue
		}
		if lifestyle != "" && e.Lifestyle != lifestyle {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ── Analysis ─────────────────────────────────────────────────────────────────

// Kind names a diagnostic.
type Kind string

const (
	// LifestyleMismatch: a plan holds a dependency that lives shorter than
	// itself, so the dependency outlives its intended lifestyle.
	LifestyleMismatch Kind = "lifestyle_mismatch"
	// EmptyCollection: a collection was requested but has no elements.
	EmptyCollection Kind = "empty_collection"
)

type Severity string

const (
	Warning Severity = "warning"
	Info    Severity = "info"
)

// Result is one finding of Analyze.
type Result struct {
	Kind       Kind     `json:"kind"`
	Severity   Severity `json:"severity"`
	Service    string   `json:"service"`
	Dependency string   `json:"dependency,omitempty"`
	Message    string   `json:"message"`
}

// rank orders lifestyles by how long their instances live.
func rank(l container.Lifestyle) int {
	switch l {
	case container.Singleton:
		return 3
	case container.Scoped:
		return 2
	default:
		return 1
	}
}

// Analyze walks every plan reachable from the roots of c. Edges to lazy
// factories and collections are not checked for mismatches: both are
// re-invoked on every use.
func Analyze(c *container.Container) []Result {
	var (
		results []Result
		seen    = make(map[*container.Plan]bool)
		walk    func(p *container.Plan)
	)
	walk = func(p *container.Plan) {
		if seen[p] {
			return
		}
		seen[p] = true

		deps, kinds := p.Dependencies(), p.DependencyKinds()
		if p.IsCollection() && len(deps) == 0 {
			results = append(results, Result{
				Kind:     EmptyCollection,
				Severity: Info,
				Service:  p.Service().String(),
				Message:  fmt.Sprintf("collection of %s has no elements", p.Service()),
			})
		}
		for i, d := range deps {
			if !p.IsCollection() && checked(kinds[i]) && rank(d.Lifestyle()) < rank(p.Lifestyle()) {
				results = append(results, Result{
					Kind:       LifestyleMismatch,
					Severity:   Warning,
					Service:    label(p),
					Dependency: label(d),
					Message: fmt.Sprintf("%s (%s) depends on %s (%s)",
						label(p), p.Lifestyle(), label(d), d.Lifestyle()),
				})
			}
			walk(d)
		}
	}
	for _, p := range c.Registrations() {
		walk(p)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Kind != results[j].Kind {
			return results[i].Kind < results[j].Kind
		}
		return results[i].Service < results[j].Service
	})
	return results
}

func checked(k container.DependencyKind) bool {
	switch k {
	case container.Lazy, container.DecorateeFactory, container.Many:
		return false
	default:
		return true
	}
}

// label renders a plan as "Service" or "Service as Implementation".
func label(p *container.Plan) string {
	if p.IsCollection() {
		return "[]" + p.Service().String()
	}
	if impl := p.Implementation(); !impl.IsZero() && !impl.Equal(p.Service()) {
		return p.Service().String() + " as " + impl.String()
	}
	return p.Service().String()
}

func names(ds []container.Descriptor) []string {
	if len(ds) == 0 {
		return nil
	}
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
