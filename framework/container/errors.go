package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateRegistration is returned when a descriptor is registered a
	// second time without an override.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrContainerLocked is returned by every configuration call made after
	// the container handed out its first plan or was verified.
	ErrContainerLocked = errors.New("the container can't be changed after the first call to resolve or verify")

	// ErrMissingRegistration is returned when nothing is registered for a
	// requested descriptor and no template or variant matches it.
	ErrMissingRegistration = errors.New("no registration found")

	// ErrCircularDependency is returned when a plan depends on itself. The
	// error message includes the full chain.
	ErrCircularDependency = errors.New("circular dependency detected")

	// ErrAmbiguousResolution is returned when a single instance is requested
	// and several equally specific registrations match.
	ErrAmbiguousResolution = errors.New("ambiguous resolution")

	// ErrNoActiveScope is returned when a scoped plan is invoked without a
	// scope in the context.
	ErrNoActiveScope = errors.New("no active scope")

	// ErrVerificationFailed is returned by Verify.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrNullInstance is returned when a plan or collection element produced
	// nil where an instance was required.
	ErrNullInstance = errors.New("constructor produced a nil instance")

	// ErrInvalidRegistration is returned for malformed registrations.
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrConstructorPanic is returned when a constructor panics.
	ErrConstructorPanic = errors.New("constructor panicked")

	// ErrScopeEnded is returned when a scope is used after End.
	ErrScopeEnded = errors.New("scope already ended")
)

// ResolutionError reports a failure to build or invoke the plan for Service.
// Chain lists the dependents that required Service, outermost first.
type ResolutionError struct {
	Service        Descriptor
	Implementation Descriptor
	Chain          []Descriptor
	Err            error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service.String())
	if !e.Implementation.IsZero() && !e.Implementation.Equal(e.Service) {
		fmt.Fprintf(&b, " (implementation %s)", e.Implementation)
	}
	if len(e.Chain) > 0 {
		fmt.Fprintf(&b, " required by %s", formatChain(e.Chain))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// VerificationError is returned by Verify. It matches both
// ErrVerificationFailed and the underlying cause with errors.Is.
type VerificationError struct {
	// Root is the descriptor the verifier was exercising.
	Root Descriptor
	// Service and Implementation name the plan that failed.
	Service        Descriptor
	Implementation Descriptor
	Chain          []Descriptor
	Err            error
}

func (e *VerificationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v while verifying %s", ErrVerificationFailed, e.Root)
	if !e.Service.IsZero() && !e.Service.Equal(e.Root) {
		fmt.Fprintf(&b, ", failing service %s", e.Service)
	}
	if !e.Implementation.IsZero() {
		fmt.Fprintf(&b, " (implementation %s)", e.Implementation)
	}
	if len(e.Chain) > 0 {
		fmt.Fprintf(&b, " required by %s", formatChain(e.Chain))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *VerificationError) Unwrap() []error {
	return []error{ErrVerificationFailed, e.Err}
}

// missing builds the error for an unresolvable dependency.
func missing(service Descriptor, chain []Descriptor) error {
	return &ResolutionError{Service: service, Chain: chain, Err: ErrMissingRegistration}
}

// activationFailed wraps an error raised while invoking the plan for service.
func activationFailed(service, implementation Descriptor, err error) error {
	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}
	return &ResolutionError{Service: service, Implementation: implementation, Err: err}
}

// requiredBy prepends dependents to the chain of a nested resolution error.
func requiredBy(err error, dependents ...Descriptor) error {
	var re *ResolutionError
	if !errors.As(err, &re) {
		return &ResolutionError{Service: dependents[len(dependents)-1], Chain: dependents[:len(dependents)-1], Err: err}
	}
	chain := make([]Descriptor, 0, len(re.Chain)+len(dependents))
	chain = append(chain, dependents...)
	chain = append(chain, re.Chain...)
	return &ResolutionError{
		Service:        re.Service,
		Implementation: re.Implementation,
		Chain:          chain,
		Err:            re.Err,
	}
}

// withChain attaches the build chain to a resolution error that has none.
func withChain(err error, chain []Descriptor) error {
	var re *ResolutionError
	if len(chain) == 0 || !errors.As(err, &re) || len(re.Chain) > 0 {
		return err
	}
	return &ResolutionError{
		Service:        re.Service,
		Implementation: re.Implementation,
		Chain:          append([]Descriptor(nil), chain...),
		Err:            re.Err,
	}
}

func formatChain(chain []Descriptor) string {
	parts := make([]string, len(chain))
	for i, d := range chain {
		parts[i] = d.String()
	}
	return strings.Join(parts, " -> ")
}
