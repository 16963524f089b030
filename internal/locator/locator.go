// Package locator provides a process-wide named registry so cooperating
// services (broker, portfolio manager, performance tracker, strategy) can
// find each other without explicit wiring, mirroring the source system's
// ServiceLocator. New code should prefer passing an explicit context
// through construction; the locator exists for callbacks that only have
// access to a handler closure and cannot receive a context parameter.
package locator

import (
	"sync"

	"github.com/nordlight/backtester/errs"
)

// Locator is a named registry. Registration is idempotent-last-wins:
// registering the same name twice replaces the previous entry. Production
// use assumes one engine (and therefore one Locator) per process.
type Locator struct {
	mu       sync.RWMutex
	services map[string]any
}

// New creates an empty Locator.
func New() *Locator {
	return &Locator{services: make(map[string]any)}
}

// Register stores instance under name, replacing any previous value.
func (l *Locator) Register(name string, instance any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services[name] = instance
}

// Get retrieves the instance registered under name, returning
// errs.KindConfiguration if nothing is registered.
func (l *Locator) Get(name string) (any, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	svc, ok := l.services[name]
	if !ok {
		return nil, errs.New("locator", errs.KindConfiguration, errs.WithMessage("service not found: "+name))
	}
	return svc, nil
}

// MustGet panics if name is not registered. Intended for wiring code at
// construction time where a missing service is a programmer error, not a
// runtime condition to recover from.
func (l *Locator) MustGet(name string) any {
	svc, err := l.Get(name)
	if err != nil {
		panic(err)
	}
	return svc
}

// Get is a generic helper that retrieves and type-asserts a service from
// the locator in one call.
func Get[T any](l *Locator, name string) (T, error) {
	var zero T
	raw, err := l.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, errs.New("locator", errs.KindConfiguration, errs.WithMessage("service has unexpected type: "+name))
	}
	return typed, nil
}
