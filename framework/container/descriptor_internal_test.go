package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleEvent struct{}

func TestDescriptor_CanonicalForm(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want string
		open bool
	}{
		{"plain", Type("Logger"), "Logger", false},
		{"generic", Type("Handler", Type("CustomerMoved")), "Handler<CustomerMoved>", false},
		{"two args", Type("Map", Type("K"), Type("V")), "Map<K,V>", false},
		{"param", Param("T"), "$T", true},
		{"nested open", Type("Handler", Type("List", Param("T"))), "Handler<List<$T>>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.String())
			assert.Equal(t, tt.open, tt.d.IsOpen())
		})
	}
}

func TestDescriptor_Equal(t *testing.T) {
	a := Type("Handler", Type("CustomerMoved"))
	b := Type("Handler", Type("CustomerMoved"))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Type("Handler", Type("CustomerMovedAbroad"))))
	assert.False(t, Param("T").Equal(Type("T")))
}

func TestDescriptor_ArgsAreCopied(t *testing.T) {
	d := Type("Handler", Type("A"))
	args := d.Args()
	args[0] = Type("B")
	assert.Equal(t, "Handler<A>", d.String())
}

func TestDescriptor_TypeOf(t *testing.T) {
	d := TypeOf[*sampleEvent]()
	assert.Equal(t, "github.com/km-arc/go-ioc/framework/container.sampleEvent", d.String())
	assert.Equal(t, "int", TypeOf[int]().String())
}

func TestDescriptor_Depth(t *testing.T) {
	assert.Equal(t, 0, Type("A").depth())
	assert.Equal(t, 2, Type("A", Type("B", Type("C")), Type("D")).depth())
}

func TestUnify(t *testing.T) {
	T, U := Param("T"), Param("U")
	moved := Type("CustomerMoved")

	b, ok := unify(Type("Handler", T), Type("Handler", moved), nil)
	require.True(t, ok)
	assert.True(t, b["T"].Equal(moved))

	_, ok = unify(Type("Pair", T, T), Type("Pair", moved, Type("Other")), nil)
	assert.False(t, ok, "a parameter binds once")

	b, ok = unify(Type("Pair", T, U), Type("Pair", moved, Type("Other")), nil)
	require.True(t, ok)
	assert.Equal(t, "Other", b["U"].String())

	_, ok = unify(Type("Handler", T), Type("Source", moved), nil)
	assert.False(t, ok)

	prior := Bindings{"T": moved}
	_, ok = unify(Type("Handler", T), Type("Handler", Type("Other")), prior)
	assert.False(t, ok)
	assert.Len(t, prior, 1, "input bindings are not modified")
}

func TestBindings_Substitute(t *testing.T) {
	b := Bindings{"T": Type("CustomerMoved")}
	got := b.substitute(Type("Handler", Type("List", Param("T")), Param("U")))
	assert.Equal(t, "Handler<List<CustomerMoved>,$U>", got.String())
}

func TestResolver_Assignable(t *testing.T) {
	s := newStore()
	s.variance["Handler"] = []Variance{Contravariant}
	s.variance["Source"] = []Variance{Covariant}
	moved, abroad, event := Type("CustomerMoved"), Type("CustomerMovedAbroad"), Type("Event")
	s.supertypes[abroad.key] = []Descriptor{moved}
	s.supertypes[moved.key] = []Descriptor{event}
	// cycles in declared supertypes must not hang
	s.supertypes[event.key] = []Descriptor{moved}
	r := resolver{store: s}

	assert.True(t, r.assignable(abroad, event))
	assert.False(t, r.assignable(event, Type("Unrelated")))
	assert.True(t, r.assignable(Type("Handler", event), Type("Handler", abroad)))
	assert.False(t, r.assignable(Type("Handler", Type("Unrelated")), Type("Handler", abroad)))
	assert.True(t, r.assignable(Type("Source", abroad), Type("Source", event)))
	assert.False(t, r.assignable(Type("Map", abroad), Type("Map", moved)), "invariant without declaration")
}

func TestLockGuard(t *testing.T) {
	var g lockGuard
	require.NoError(t, g.check("register"))
	assert.True(t, g.lock())
	assert.False(t, g.lock(), "only the first call transitions")
	err := g.check("register Logger")
	assert.ErrorIs(t, err, ErrContainerLocked)
	assert.Contains(t, err.Error(), "register Logger")
	assert.Equal(t, "locked", g.phase().String())
}

func TestProducerCache_Rollback(t *testing.T) {
	pc := newProducerCache()
	kept := &Plan{service: Type("Kept")}
	pc.put("one:Kept", kept)

	pc.begin()
	pc.put("one:Dropped", &Plan{service: Type("Dropped")})
	pc.put("reg:1:Dropped", &Plan{})
	pc.rollback()

	_, ok := pc.get("one:Dropped")
	assert.False(t, ok)
	assert.Equal(t, []*Plan{kept}, pc.roots())

	pc.begin()
	pc.put("many:Added", &Plan{})
	assert.Equal(t, 1, pc.commit())
	assert.Len(t, pc.roots(), 2)
}
