// Package container provides a verifiable dependency-injection container.
//
// # Overview
//
// The container maps service descriptors to construction plans and manages
// the lifetime of the instances those plans produce. Go has no runtime
// constructor discovery, so every implementation declares its dependencies
// explicitly and the container wires them.
//
// # Container Lifecycle
//
//  1. Create: c := container.New(container.WithLogger(logger))
//  2. Register services, collections and decorators
//  3. Verify: c.Verify(ctx) locks the container and exercises every plan
//  4. Resolve: container.Resolve[T](ctx, c, service)
//  5. Dispose: c.Dispose(ctx)
//
// The first successful resolution locks the container as well; after that
// every configuration call fails with ErrContainerLocked.
//
// # Descriptors
//
//	customerMoved := container.Type("CustomerMoved")
//	handlerOf := func(e container.Descriptor) container.Descriptor {
//	    return container.Type("Handler", e)
//	}
//	T := container.Param("T")
//	openHandler := container.Type("Handler", T)
//
// # Registrations
//
//	// Transient, the default
//	c.Register(repo, container.Implementation{
//	    Name: sqlRepo,
//	    Deps: []container.Dependency{container.Need(db)},
//	    New:  func(a container.Args) (any, error) { return NewSQLRepo(container.Arg[*sql.DB](a, 0)), nil },
//	})
//
//	// Singleton and pre-built values
//	c.Register(cache, redisCache, container.WithLifestyle(container.Singleton))
//	c.RegisterInstance(config, cfg)
//
//	// Open generics, closed on demand
//	c.RegisterOpenGeneric(openHandler, multipleDispatch, container.WithLifestyle(container.Singleton))
//
// # Collections
//
//	c.RegisterCollection(handlerOf(customerMoved), container.Elements(movedHandler, notifyStaff)...)
//	handlers, err := container.ResolveAll[Handler](ctx, c, handlerOf(customerMoved))
//
// # Variance
//
//	c.DeclareVariance("Handler", container.Contravariant)
//	c.DeclareSubtype(container.Type("CustomerMovedAbroad"), customerMoved)
//
// With those declarations a request for Handler<CustomerMovedAbroad> is
// also served by the Handler<CustomerMoved> registrations.
//
// # Decorators
//
//	c.RegisterDecorator(openHandler, container.Implementation{
//	    Name: container.Type("LoggingHandler", T),
//	    Deps: []container.Dependency{container.Decorated(), container.Need(log)},
//	    New:  newLoggingHandler,
//	})
//
// Decorators registered as A then B produce A(B(implementation)).
//
// # Scopes
//
//	scope := c.BeginScope()
//	defer scope.End()
//	ctx = container.WithScope(ctx, scope)
//
// # Service Providers
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(ctx, &MailProvider{})
//	registry.Boot(ctx)
package container
