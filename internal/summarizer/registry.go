package summarizer

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Registry maps strategy names to strategies. It is filled once at start-up
// and only read afterwards.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}

	var errs []error
	for _, s := range strategies {
		if s == nil {
			errs = append(errs, errors.New("strategy is nil"))
			continue
		}

		name := strings.TrimSpace(s.Name())
		if name == "" {
			errs = append(errs, errors.New("strategy name is empty"))
			continue
		}

		if _, ok := r.strategies[name]; ok {
			errs = append(errs, fmt.Errorf("strategy %q is registered twice", name))
			continue
		}

		r.strategies[name] = s
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) Lookup(name string) (Strategy, error) {
	s, ok := r.strategies[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownStrategy, name, strings.Join(r.Names(), ", "))
	}

	return s, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}
