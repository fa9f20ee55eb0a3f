// Package exithook keeps a list of cleanup functions that must run before the
// process exits. Go has no atexit, so main is expected to call Run on every
// exit path, including after a termination signal.
package exithook

import (
	"errors"
	"slices"
	"sync"
)

// Registry holds cleanup hooks. The zero value is ready to use.
type Registry struct {
	mu    sync.Mutex
	next  uint64
	hooks map[uint64]func() error
	order []uint64
}

// Default is the process-wide registry used by Register and Run.
var Default = &Registry{}

// Register adds fn to the registry and returns a function that removes it
// again. Calling the returned function more than once is harmless.
func (r *Registry) Register(fn func() error) (unregister func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hooks == nil {
		r.hooks = make(map[uint64]func() error)
	}
	id := r.next
	r.next++
	r.hooks[id] = fn
	r.order = append(r.order, id)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.hooks, id)
		if i := slices.Index(r.order, id); i >= 0 {
			r.order = slices.Delete(r.order, i, i+1)
		}
	}
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// Run calls every registered hook once, most recently registered first, and
// empties the registry. Hook errors are joined.
func (r *Registry) Run() error {
	r.mu.Lock()
	var fns []func() error
	for i := len(r.order) - 1; i >= 0; i-- {
		if fn, ok := r.hooks[r.order[i]]; ok {
			fns = append(fns, fn)
		}
	}
	r.hooks = nil
	r.order = nil
	r.mu.Unlock()

	// Hooks run unlocked; they usually unregister themselves.
	var errs []error
	for _, fn := range fns {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Register adds fn to the Default registry.
func Register(fn func() error) (unregister func()) {
	return Default.Register(fn)
}

// Run runs the Default registry.
func Run() error {
	return Default.Run()
}
