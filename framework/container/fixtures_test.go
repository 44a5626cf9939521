package container_test

import (
	"errors"
	"sync/atomic"

	"github.com/km-arc/go-ioc/framework/container"
)

// ── descriptors ───────────────────────────────────────────────────────────────

var (
	loggerD  = container.Type("Logger")
	repoD    = container.Type("Repository")
	sqlRepoD = container.Type("SQLRepository")
	serviceD = container.Type("Service")
)

// ── stub types ────────────────────────────────────────────────────────────────

type logger struct{ id int32 }

type repository struct{ log *logger }

type service struct {
	repo *repository
	log  *logger
}

type closer struct {
	name   string
	closed *[]string
	err    error
}

func (c *closer) Close() error {
	*c.closed = append(*c.closed, c.name)
	return c.err
}

// ── implementations ───────────────────────────────────────────────────────────

func loggerImpl(counter *atomic.Int32) container.Implementation {
	return container.Implementation{
		Name: loggerD,
		New: func(container.Args) (any, error) {
			return &logger{id: counter.Add(1)}, nil
		},
	}
}

func repoImpl() container.Implementation {
	return container.Implementation{
		Name: sqlRepoD,
		Deps: []container.Dependency{container.Need(loggerD)},
		New: func(a container.Args) (any, error) {
			return &repository{log: container.Arg[*logger](a, 0)}, nil
		},
	}
}

func serviceImpl() container.Implementation {
	return container.Implementation{
		Name: serviceD,
		Deps: []container.Dependency{container.Need(repoD), container.Need(loggerD)},
		New: func(a container.Args) (any, error) {
			return &service{
				repo: container.Arg[*repository](a, 0),
				log:  container.Arg[*logger](a, 1),
			}, nil
		},
	}
}

// named returns an implementation producing a fresh *string with value name.
func named(name string, deps ...container.Dependency) container.Implementation {
	return container.Implementation{
		Name: container.Type(name),
		Deps: deps,
		New: func(container.Args) (any, error) {
			s := name
			return &s, nil
		},
	}
}

func failing(name string, err error) container.Implementation {
	return container.Implementation{
		Name: container.Type(name),
		New:  func(container.Args) (any, error) { return nil, err },
	}
}

func nilImpl(name string) container.Implementation {
	return container.Implementation{
		Name: container.Type(name),
		New:  func(container.Args) (any, error) { return nil, nil },
	}
}

var errBoom = errors.New("boom")

// graph registers Logger (singleton), Repository and Service.
func graph(c *container.Container, counter *atomic.Int32) error {
	if err := c.Register(loggerD, loggerImpl(counter), container.WithLifestyle(container.Singleton)); err != nil {
		return err
	}
	if err := c.Register(repoD, repoImpl()); err != nil {
		return err
	}
	return c.Register(serviceD, serviceImpl())
}
