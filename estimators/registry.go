package estimators

import (
	"sort"
	"sync"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
)

// Constructor creates an estimator.
type Constructor func(opts ...Option) Estimator

// Registry maps display names to estimator constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Default returns a registry holding the six ensemble wrappers.
func Default() *Registry {
	r := NewRegistry()
	for _, c := range []Constructor{
		func(opts ...Option) Estimator { return NewRandomForestClassifier(opts...) },
		func(opts ...Option) Estimator { return NewRandomForestRegressor(opts...) },
		func(opts ...Option) Estimator { return NewBaggingClassifier(opts...) },
		func(opts ...Option) Estimator { return NewBaggingRegressor(opts...) },
		func(opts ...Option) Estimator { return NewGradientBoostingClassifier(opts...) },
		func(opts ...Option) Estimator { return NewGradientBoostingRegressor(opts...) },
	} {
		// 表示名の重複は組み込みの登録ミス
		if err := r.Register(c().Properties().Name, c); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a constructor under name.
func (r *Registry) Register(name string, c Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.constructors[name]; ok {
		return errors.NewValidationError("name", "estimator already registered", name)
	}
	r.constructors[name] = c
	return nil
}

// New creates the estimator registered under name.
func (r *Registry) New(name string, opts ...Option) (Estimator, error) {
	r.mu.RLock()
	c, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "unknown estimator %q", name)
	}
	return c(opts...), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForTask returns the names of estimators supporting task, sorted.
func (r *Registry) ForTask(task Task) []string {
	var names []string
	for _, name := range r.Names() {
		est, err := r.New(name)
		if err == nil && est.Properties().Supports(task) {
			names = append(names, name)
		}
	}
	return names
}
