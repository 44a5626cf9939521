package container

// ContextualBuilder is the fluent form of RegisterConditional for the common
// case of choosing an implementation by consumer.
//
//	c.When(photoController).Needs(filesystem).Give(s3Filesystem)
//	c.When(videoController).Needs(filesystem).Give(localFilesystem)
//
// A consumer covered by no contextual binding falls through to open-generic
// and variant registrations. Give a default with Otherwise:
//
//	c.Otherwise(filesystem, localFilesystem, photoController, videoController)
type ContextualBuilder struct {
	container *Container
	consumers []Descriptor
	needs     Descriptor
}

// When starts a contextual binding for the given consumers.
func (c *Container) When(consumers ...Descriptor) *ContextualBuilder {
	return &ContextualBuilder{container: c, consumers: consumers}
}

// Needs names the service the consumers depend on.
func (b *ContextualBuilder) Needs(service Descriptor) *ContextualBuilder {
	b.needs = service
	return b
}

// Give registers impl for the service when resolved by one of the consumers.
func (b *ContextualBuilder) Give(impl Implementation, opts ...RegisterOption) error {
	return b.container.RegisterConditional(b.needs, impl, ConsumedBy(b.consumers...), opts...)
}

// GiveValue is a shorthand for Give with a pre-built singleton value.
func (b *ContextualBuilder) GiveValue(v any) error {
	return b.Give(Instance(b.needs, v), WithLifestyle(Singleton))
}

// Otherwise registers impl for service for every consumer except the
// excluded ones, including root requests.
func (c *Container) Otherwise(service Descriptor, impl Implementation, excluded ...Descriptor) error {
	return c.RegisterConditional(service, impl, NotConsumedBy(excluded...))
}

// ConsumedBy accepts resolutions made on behalf of one of consumers.
func ConsumedBy(consumers ...Descriptor) Predicate {
	return func(pc PredicateContext) bool {
		for _, c := range consumers {
			if pc.Consumer.Equal(c) {
				return true
			}
		}
		return false
	}
}

// NotConsumedBy accepts every resolution ConsumedBy(consumers...) rejects.
func NotConsumedBy(consumers ...Descriptor) Predicate {
	accept := ConsumedBy(consumers...)
	return func(pc PredicateContext) bool { return !accept(pc) }
}
