package container_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/container"
)

func TestLifestyle_Transient(t *testing.T) {
	c := container.New()
	var counter atomic.Int32
	require.NoError(t, c.Register(loggerD, loggerImpl(&counter)))

	a, err := c.GetInstance(context.Background(), loggerD)
	require.NoError(t, err)
	b, err := c.GetInstance(context.Background(), loggerD)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, int32(2), counter.Load())
}

func TestLifestyle_DefaultLifestyleOption(t *testing.T) {
	c := container.New(container.WithDefaultLifestyle(container.Singleton))
	var counter atomic.Int32
	require.NoError(t, c.Register(loggerD, loggerImpl(&counter)))

	a, err := c.GetInstance(context.Background(), loggerD)
	require.NoError(t, err)
	b, err := c.GetInstance(context.Background(), loggerD)
	require.NoError(t, err)

	assert.Same(t, a, b)
}

func TestLifestyle_SingletonConstructedOnceUnderContention(t *testing.T) {
	c := container.New()
	var counter atomic.Int32
	require.NoError(t, c.Register(loggerD, container.Implementation{
		Name: loggerD,
		New: func(container.Args) (any, error) {
			time.Sleep(5 * time.Millisecond)
			return &logger{id: counter.Add(1)}, nil
		},
	}, container.WithLifestyle(container.Singleton)))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetInstance(context.Background(), loggerD)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), counter.Load())
}

func TestLifestyle_FailedSingletonIsNotCached(t *testing.T) {
	c := container.New()
	var attempts atomic.Int32
	require.NoError(t, c.Register(loggerD, container.Implementation{
		Name: loggerD,
		New: func(container.Args) (any, error) {
			if attempts.Add(1) == 1 {
				return nil, errBoom
			}
			return &logger{}, nil
		},
	}, container.WithLifestyle(container.Singleton)))

	_, err := c.GetInstance(context.Background(), loggerD)
	require.ErrorIs(t, err, errBoom)

	v, err := c.GetInstance(context.Background(), loggerD)
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestLifestyle_ScopedWithoutScope(t *testing.T) {
	c := container.New()
	var counter atomic.Int32
	require.NoError(t, c.Register(loggerD, loggerImpl(&counter), container.WithLifestyle(container.Scoped)))

	_, err := c.GetInstance(context.Background(), loggerD)
	assert.ErrorIs(t, err, container.ErrNoActiveScope)
}

func TestLifestyle_ScopedPerScope(t *testing.T) {
	c := container.New()
	var counter atomic.Int32
	require.NoError(t, c.Register(loggerD, loggerImpl(&counter), container.WithLifestyle(container.Scoped)))

	s1, s2 := c.BeginScope(), c.BeginScope()
	defer s1.End()
	defer s2.End()
	ctx1 := container.WithScope(context.Background(), s1)
	ctx2 := container.WithScope(context.Background(), s2)

	a, err := c.GetInstance(ctx1, loggerD)
	require.NoError(t, err)
	b, err := c.GetInstance(ctx1, loggerD)
	require.NoError(t, err)
	other, err := c.GetInstance(ctx2, loggerD)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Same(t, s1, container.ScopeFrom(ctx1))
}

func TestLifestyle_ScopedConcurrentFirstRequest(t *testing.T) {
	c := container.New()
	var counter atomic.Int32
	require.NoError(t, c.Register(loggerD, container.Implementation{
		Name: loggerD,
		New: func(container.Args) (any, error) {
			time.Sleep(5 * time.Millisecond)
			return &logger{id: counter.Add(1)}, nil
		},
	}, container.WithLifestyle(container.Scoped)))

	scope := c.BeginScope()
	defer scope.End()
	ctx := container.WithScope(context.Background(), scope)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetInstance(ctx, loggerD)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), counter.Load())
}

func TestScope_EndClosesInReverseOrder(t *testing.T) {
	c := container.New()
	var closed []string
	first, second := container.Type("First"), container.Type("Second")
	closing := func(name string) container.Implementation {
		return container.Implementation{
			Name: container.Type(name),
			New: func(container.Args) (any, error) {
				return &closer{name: name, closed: &closed}, nil
			},
		}
	}
	require.NoError(t, c.Register(first, closing("First"), container.WithLifestyle(container.Scoped)))
	require.NoError(t, c.Register(second, closing("Second"), container.WithLifestyle(container.Scoped)))

	scope := c.BeginScope()
	ctx := container.WithScope(context.Background(), scope)
	_, err := c.GetInstance(ctx, first)
	require.NoError(t, err)
	_, err = c.GetInstance(ctx, second)
	require.NoError(t, err)

	require.NoError(t, scope.End())
	assert.Equal(t, []string{"Second", "First"}, closed)

	require.NoError(t, scope.End(), "End is idempotent")
	assert.Len(t, closed, 2)

	_, err = c.GetInstance(ctx, first)
	assert.ErrorIs(t, err, container.ErrScopeEnded)
}

func TestContainer_DisposeClosesSingletons(t *testing.T) {
	c := container.New()
	var closed []string
	closeErr := errors.New("close failed")
	require.NoError(t, c.Register(container.Type("A"), container.Implementation{
		Name: container.Type("A"),
		New: func(container.Args) (any, error) {
			return &closer{name: "A", closed: &closed, err: closeErr}, nil
		},
	}, container.WithLifestyle(container.Singleton)))
	require.NoError(t, c.Register(container.Type("B"), container.Implementation{
		Name: container.Type("B"),
		Deps: []container.Dependency{container.Need(container.Type("A"))},
		New: func(container.Args) (any, error) {
			return &closer{name: "B", closed: &closed}, nil
		},
	}, container.WithLifestyle(container.Singleton)))

	_, err := c.GetInstance(context.Background(), container.Type("B"))
	require.NoError(t, err)

	err = c.Dispose(context.Background())
	assert.ErrorIs(t, err, closeErr)
	assert.Equal(t, []string{"B", "A"}, closed)
}

func TestContainer_DisposeHonoursContext(t *testing.T) {
	c := container.New()
	var closed []string
	require.NoError(t, c.Register(container.Type("A"), container.Implementation{
		Name: container.Type("A"),
		New: func(container.Args) (any, error) {
			return &closer{name: "A", closed: &closed}, nil
		},
	}, container.WithLifestyle(container.Singleton)))
	_, err := c.GetInstance(context.Background(), container.Type("A"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Dispose(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, closed)
}

func TestContainer_DisposeLeavesInstancesToCaller(t *testing.T) {
	c := container.New()
	var closed []string
	require.NoError(t, c.RegisterInstance(container.Type("A"), &closer{name: "A", closed: &closed}))
	require.NoError(t, c.Register(container.Type("B"), container.Instance(container.Type("B"), &closer{name: "B", closed: &closed}),
		container.WithLifestyle(container.Scoped)))

	scope := c.BeginScope()
	ctx := container.WithScope(context.Background(), scope)
	for _, d := range []container.Descriptor{container.Type("A"), container.Type("B")} {
		_, err := c.GetInstance(ctx, d)
		require.NoError(t, err)
	}

	require.NoError(t, scope.End())
	require.NoError(t, c.Dispose(context.Background()))
	assert.Empty(t, closed)
}

// ── Re-entrant delegates ──────────────────────────────────────────────────────

func TestLifestyle_ReentrantDelegateIsCycle(t *testing.T) {
	selfD := container.Type("Self")
	for _, l := range []container.Lifestyle{container.Transient, container.Singleton, container.Scoped} {
		t.Run(l.String(), func(t *testing.T) {
			c := container.New()
			require.NoError(t, c.Register(selfD, container.Func(selfD, func(ctx context.Context, r container.Resolver) (any, error) {
				return r.GetInstance(ctx, selfD)
			}), container.WithLifestyle(l)))

			scope := c.BeginScope()
			defer scope.End()
			ctx, cancel := context.WithTimeout(container.WithScope(context.Background(), scope), 2*time.Second)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				_, err := c.GetInstance(ctx, selfD)
				done <- err
			}()
			select {
			case err := <-done:
				require.ErrorIs(t, err, container.ErrCircularDependency)
				assert.Contains(t, err.Error(), "Self -> Self")
			case <-ctx.Done():
				t.Fatal("GetInstance did not return")
			}
		})
	}
}

func TestLifestyle_ReentrantDelegateThroughDependency(t *testing.T) {
	c := container.New()
	a, b := container.Type("A"), container.Type("B")
	require.NoError(t, c.Register(a, named("AImpl", container.Need(b)), container.WithLifestyle(container.Singleton)))
	require.NoError(t, c.Register(b, container.Func(container.Type("BFunc"), func(ctx context.Context, r container.Resolver) (any, error) {
		return r.GetInstance(ctx, a)
	})))

	_, err := c.GetInstance(context.Background(), a)
	require.ErrorIs(t, err, container.ErrCircularDependency)
	assert.Contains(t, err.Error(), "A -> B -> A")

	// a delegate resolving a finished service is not a cycle
	c2 := container.New()
	require.NoError(t, c2.Register(a, named("AImpl")))
	require.NoError(t, c2.Register(b, container.Func(container.Type("BFunc"), func(ctx context.Context, r container.Resolver) (any, error) {
		if _, err := r.GetInstance(ctx, a); err != nil {
			return nil, err
		}
		return r.GetInstance(ctx, a)
	})))
	_, err = c2.GetInstance(context.Background(), b)
	assert.NoError(t, err)
}

func TestParseLifestyle(t *testing.T) {
	tests := []struct {
		in   string
		want container.Lifestyle
		err  bool
	}{
		{"transient", container.Transient, false},
		{"Singleton", container.Singleton, false},
		{" scoped ", container.Scoped, false},
		{"forever", container.Transient, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := container.ParseLifestyle(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, must(container.ParseLifestyle(got.String())))
		})
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
