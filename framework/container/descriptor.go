package container

import (
	"reflect"
	"strings"
)

// maxNestingDepth bounds how deeply type arguments may nest. Recursive
// generic discovery (Service<T> depending on a collection of T, and so on)
// always shrinks the descriptor, but a template that grows it would recurse
// forever without this bound.
const maxNestingDepth = 32

// Descriptor identifies a requested capability: a service name plus optional
// type arguments, e.g. Handler<CustomerMoved>. Descriptors are immutable and
// compared structurally with Equal.
//
//	handler := container.Type("Handler", container.Type("CustomerMoved"))
//	open    := container.Type("Handler", container.Param("T"))
type Descriptor struct {
	name  string
	args  []Descriptor
	param bool
	key   string
}

// Type returns a descriptor for name closed (or partially closed) over args.
func Type(name string, args ...Descriptor) Descriptor {
	d := Descriptor{name: name}
	if len(args) > 0 {
		d.args = append([]Descriptor(nil), args...)
	}
	d.key = d.render()
	return d
}

// Param returns a type parameter placeholder used in open-generic templates.
func Param(name string) Descriptor {
	return Descriptor{name: name, param: true, key: "$" + name}
}

// TypeOf returns a descriptor named after the Go type T, package-qualified.
//
//	container.TypeOf[*UserRepository]()  // "github.com/acme/app.UserRepository"
func TypeOf[T any]() Descriptor {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return Type(t.String())
	}
	return Type(t.PkgPath() + "." + t.Name())
}

// Name returns the unqualified service name without type arguments.
func (d Descriptor) Name() string { return d.name }

// Args returns a copy of the type arguments.
func (d Descriptor) Args() []Descriptor {
	return append([]Descriptor(nil), d.args...)
}

// IsParam reports whether d is a bare type parameter.
func (d Descriptor) IsParam() bool { return d.param }

// IsZero reports whether d is the zero descriptor.
func (d Descriptor) IsZero() bool { return d.name == "" }

// IsOpen reports whether d, or any nested argument, is a type parameter.
func (d Descriptor) IsOpen() bool {
	if d.param {
		return true
	}
	for _, a := range d.args {
		if a.IsOpen() {
			return true
		}
	}
	return false
}

// Equal reports structural equality.
func (d Descriptor) Equal(o Descriptor) bool { return d.key == o.key }

// String returns the canonical form, e.g. "Handler<CustomerMoved>".
func (d Descriptor) String() string {
	if d.key == "" && d.name != "" {
		return d.render()
	}
	return d.key
}

func (d Descriptor) render() string {
	if d.param {
		return "$" + d.name
	}
	if len(d.args) == 0 {
		return d.name
	}
	var b strings.Builder
	b.WriteString(d.name)
	b.WriteByte('<')
	for i, a := range d.args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.String())
	}
	b.WriteByte('>')
	return b.String()
}

// depth returns how deeply type arguments nest below d.
func (d Descriptor) depth() int {
	max := 0
	for _, a := range d.args {
		if n := a.depth() + 1; n > max {
			max = n
		}
	}
	return max
}

// params collects the names of all type parameters in d.
func (d Descriptor) params(into map[string]bool) {
	if d.param {
		into[d.name] = true
		return
	}
	for _, a := range d.args {
		a.params(into)
	}
}

// ── Bindings ──────────────────────────────────────────────────────────────────

// Bindings maps type parameter names to the closed descriptors they were
// bound to while matching an open template.
type Bindings map[string]Descriptor

// substitute replaces every bound parameter in d.
func (b Bindings) substitute(d Descriptor) Descriptor {
	if d.param {
		if v, ok := b[d.name]; ok {
			return v
		}
		return d
	}
	if len(d.args) == 0 || len(b) == 0 {
		return d
	}
	args := make([]Descriptor, len(d.args))
	for i, a := range d.args {
		args[i] = b.substitute(a)
	}
	return Type(d.name, args...)
}

// unify structurally matches pattern against target, binding the pattern's
// type parameters. It never mutates b when the match fails.
func unify(pattern, target Descriptor, b Bindings) (Bindings, bool) {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	if !unifyInto(pattern, target, out) {
		return nil, false
	}
	return out, true
}

func unifyInto(pattern, target Descriptor, b Bindings) bool {
	if pattern.param {
		if bound, ok := b[pattern.name]; ok {
			return bound.Equal(target)
		}
		b[pattern.name] = target
		return true
	}
	if pattern.name != target.name || len(pattern.args) != len(target.args) {
		return false
	}
	for i := range pattern.args {
		if !unifyInto(pattern.args[i], target.args[i], b) {
			return false
		}
	}
	return true
}
