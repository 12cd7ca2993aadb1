package statemachine

import "context"

// Factory turns the registries collected by a Builder into a machine of
// type M. Builders call it once with the machine name, its initial state,
// the components and the accumulated engine options.
type Factory[S, E comparable, M any] func(name string, initial S, components Components[S, E], opts ...Option) (M, error)

// EngineFactory builds synchronous engines.
func EngineFactory[S, E comparable]() Factory[S, E, *Engine[S, E]] {
	return func(name string, initial S, components Components[S, E], opts ...Option) (*Engine[S, E], error) {
		return NewEngine(name, initial, components, opts...), nil
	}
}

// DeferredFactory builds engines wrapped in a Deferred engine bound to ctx.
func DeferredFactory[S, E comparable](ctx context.Context, deferredOpts ...DeferredOption) Factory[S, E, *Deferred[S, E]] {
	return func(name string, initial S, components Components[S, E], opts ...Option) (*Deferred[S, E], error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return NewDeferred(ctx, NewEngine(name, initial, components, opts...), deferredOpts...), nil
	}
}

// BuildWith builds b with an arbitrary factory, so callers can produce
// their own machine wrappers from the same builder syntax.
func BuildWith[S, E comparable, M any](b *Builder[S, E], factory Factory[S, E, M]) (M, error) {
	var zero M

	if factory == nil {
		return zero, ErrNilFactory
	}

	components, err := b.components()
	if err != nil {
		return zero, err
	}

	return factory(b.name, b.initial, components, b.options...)
}
