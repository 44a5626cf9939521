package container_test

import (
	"context"
	"errors"
	"testing"

	"github.com/km-arc/go-ioc/framework/container"
)

var (
	eagerD = container.Type("EagerService")
	alphaD = container.Type("Alpha")
	betaD  = container.Type("Beta")
)

// ── stub providers ────────────────────────────────────────────────────────────

type eagerProvider struct {
	container.BaseProvider
	registerCalls int
	bootCalls     int
}

func (p *eagerProvider) Register(c *container.Container) error {
	p.registerCalls++
	return c.RegisterInstance(eagerD, "eager")
}

func (p *eagerProvider) Boot(context.Context, *container.Container) error {
	p.bootCalls++
	return nil
}

func (p *eagerProvider) Provides() []container.Descriptor {
	return []container.Descriptor{eagerD}
}

// multiProvider registers multiple services.
type multiProvider struct {
	container.BaseProvider
}

func (p *multiProvider) Register(c *container.Container) error {
	if err := c.RegisterInstance(alphaD, "α"); err != nil {
		return err
	}
	return c.RegisterInstance(betaD, "β")
}

// liarProvider promises a service it never registers.
type liarProvider struct {
	container.BaseProvider
}

func (p *liarProvider) Register(*container.Container) error { return nil }

func (p *liarProvider) Provides() []container.Descriptor {
	return []container.Descriptor{container.Type("Promised")}
}

// resolvingProvider resolves a service at boot.
type resolvingProvider struct {
	container.BaseProvider
	got string
}

func (p *resolvingProvider) Register(*container.Container) error { return nil }

func (p *resolvingProvider) Boot(ctx context.Context, c *container.Container) error {
	v, err := container.Resolve[string](ctx, c, eagerD)
	p.got = v
	return err
}

type failingProvider struct {
	container.BaseProvider
}

func (p *failingProvider) Register(*container.Container) error { return errBoom }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

func TestRegistry_Register_CallsRegister(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	if err := reg.Register(context.Background(), p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if p.registerCalls != 1 {
		t.Errorf("Register() should be called immediately, got %d calls", p.registerCalls)
	}
	if p.bootCalls != 0 {
		t.Error("Boot() should NOT be called before registry.Boot()")
	}
}

func TestRegistry_Boot_CallsBoot(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	_ = reg.Register(context.Background(), p)
	if err := reg.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if p.bootCalls != 1 {
		t.Errorf("Boot() should be called once, got %d", p.bootCalls)
	}
}

func TestRegistry_ServiceResolvable(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(context.Background(), &eagerProvider{})
	_ = reg.Boot(context.Background())

	got, err := container.Resolve[string](context.Background(), c, eagerD)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "eager" {
		t.Errorf("EagerService: got %q, want 'eager'", got)
	}
}

func TestRegistry_Boot_IdempotentCallsAreIgnored(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	_ = reg.Register(context.Background(), p)

	_ = reg.Boot(context.Background())
	_ = reg.Boot(context.Background()) // second call should be no-op

	if !reg.Booted() {
		t.Error("Booted() should be true after Boot()")
	}
	if p.bootCalls != 1 {
		t.Errorf("Boot() called %d times, want 1", p.bootCalls)
	}
}

func TestRegistry_Booted_FalseBeforeBoot(t *testing.T) {
	reg := container.NewProviderRegistry(container.New())
	if reg.Booted() {
		t.Error("Booted() should be false before Boot()")
	}
}

func TestRegistry_DuplicateRegister_Ignored(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	_ = reg.Register(context.Background(), p)
	if err := reg.Register(context.Background(), p); err != nil {
		t.Fatalf("second Register should be a no-op, got %v", err)
	}

	if p.registerCalls != 1 {
		t.Errorf("provider registered %d times, want 1", p.registerCalls)
	}
	if len(reg.Providers()) != 1 {
		t.Errorf("Providers(): got %d, want 1", len(reg.Providers()))
	}
}

func TestRegistry_MultipleServices(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(context.Background(), &multiProvider{})
	_ = reg.Boot(context.Background())

	for _, tt := range []struct {
		d    container.Descriptor
		want string
	}{
		{alphaD, "α"},
		{betaD, "β"},
	} {
		got, err := container.Resolve[string](context.Background(), c, tt.d)
		if err != nil {
			t.Fatalf("%s: %v", tt.d, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRegistry_BootChecksProvides(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(context.Background(), &liarProvider{})

	err := reg.Boot(context.Background())
	if !errors.Is(err, container.ErrMissingRegistration) {
		t.Fatalf("Boot: got %v, want ErrMissingRegistration", err)
	}
	if reg.Booted() {
		t.Error("a failed Boot should leave the registry unbooted")
	}
}

func TestRegistry_BootResolvesOtherProviders(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	consumer := &resolvingProvider{}
	_ = reg.Register(context.Background(), consumer)
	_ = reg.Register(context.Background(), &eagerProvider{})

	if err := reg.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if consumer.got != "eager" {
		t.Errorf("Boot resolved %q, want 'eager'", consumer.got)
	}
}

func TestRegistry_RegisterError(t *testing.T) {
	reg := container.NewProviderRegistry(container.New())

	err := reg.Register(context.Background(), &failingProvider{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Register: got %v, want errBoom", err)
	}
	if len(reg.Providers()) != 0 {
		t.Error("a failed provider should not be recorded")
	}
}

func TestRegistry_RegisterAfterBootOnLockedContainer(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(context.Background(), &eagerProvider{})
	_ = reg.Boot(context.Background())
	if err := c.Verify(context.Background()); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	err := reg.Register(context.Background(), &multiProvider{})
	if !errors.Is(err, container.ErrContainerLocked) {
		t.Fatalf("Register after lock: got %v, want ErrContainerLocked", err)
	}
}
