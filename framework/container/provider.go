package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the registrations of one part of an application.
//
// Register is called while the container is configuring. Boot is called after
// ALL providers have been registered; resolving there locks the container,
// so every registration must happen in Register.
//
//	type MailProvider struct{ container.BaseProvider }
//
//	func (p *MailProvider) Register(c *container.Container) error {
//	    return c.Register(mailer, smtpMailer, container.WithLifestyle(container.Singleton))
//	}
//
//	func (p *MailProvider) Provides() []container.Descriptor {
//	    return []container.Descriptor{mailer}
//	}
type ServiceProvider interface {
	// Register adds registrations to the container.
	// Do NOT resolve anything here; use Boot for that.
	Register(c *Container) error

	// Boot is called after all providers are registered.
	Boot(ctx context.Context, c *Container) error

	// Provides lists the services this provider promises to register. The
	// registry checks each of them at boot. Return nil to skip the check.
	Provides() []Descriptor
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op Boot and Provides.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(c *container.Container) error { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(context.Context, *Container) error { return nil }
func (p *BaseProvider) Provides() []Descriptor                 { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots ServiceProviders, each once.
type ProviderRegistry struct {
	app        *Container
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register method. Registering the
// same provider twice is a no-op. A provider registered after Boot is booted
// immediately, which only works while the container is still configuring.
func (r *ProviderRegistry) Register(ctx context.Context, provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("register provider %T: %w", provider, err)
	}
	r.registered[provider] = true
	r.providers = append(r.providers, provider)
	r.app.logger.Debug("provider registered", zap.String("provider", fmt.Sprintf("%T", provider)))

	if r.booted {
		return r.boot(ctx, provider)
	}
	return nil
}

// Boot checks every provider's Provides list, then calls Boot on each
// provider in registration order. Later calls are no-ops.
func (r *ProviderRegistry) Boot(ctx context.Context) error {
	if r.booted {
		return nil
	}
	for _, provider := range r.providers {
		for _, service := range provider.Provides() {
			if !r.app.IsRegistered(service) {
				return fmt.Errorf("provider %T: %w: promised service %s", provider, ErrMissingRegistration, service)
			}
		}
	}
	r.booted = true
	for _, provider := range r.providers {
		if err := r.boot(ctx, provider); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProviderRegistry) boot(ctx context.Context, provider ServiceProvider) error {
	if err := provider.Boot(ctx, r.app); err != nil {
		return fmt.Errorf("boot provider %T: %w", provider, err)
	}
	return nil
}

// Booted reports whether Boot has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered providers, in registration order.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	return append([]ServiceProvider(nil), r.providers...)
}
