package freezer

import (
	"context"
	"fmt"
)

// Generator produces seed URLs that link-following alone cannot discover,
// such as enumerated resource pages. Generators are registered at
// configuration time and drained exactly once per freeze.
type Generator func(ctx context.Context) ([]string, error)

// Registry collects the generators declared for a site.
type Registry struct {
	generators []Generator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a generator. Nil generators are ignored.
func (r *Registry) Register(g Generator) {
	if g != nil {
		r.generators = append(r.generators, g)
	}
}

// Len reports how many generators are registered.
func (r *Registry) Len() int {
	return len(r.generators)
}

// URLs invokes every registered generator once, in registration order, and
// returns the combined seed list.
func (r *Registry) URLs(ctx context.Context) ([]string, error) {
	var urls []string
	for i, g := range r.generators {
		extra, err := g(ctx)
		if err != nil {
			return nil, fmt.Errorf("generator %d: %w", i, err)
		}
		urls = append(urls, extra...)
	}
	return urls, nil
}

// StaticPages returns a generator that yields a fixed URL list.
func StaticPages(urls ...string) Generator {
	return func(context.Context) ([]string, error) {
		return urls, nil
	}
}
