package unit

import (
	"fmt"
	"sort"
	"sync"

	"pkt.systems/avorun/schema"
)

// Factory constructs a unit from its descriptor.
type Factory func(Descriptor) (Unit, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a test class available under its class name. Register is
// meant to run at process start; a duplicate or empty name panics.
func Register(class string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if class == "" {
		panic("unit: Register with empty class name")
	}
	if factory == nil {
		panic("unit: Register with nil factory for class " + class)
	}
	if _, dup := registry[class]; dup {
		panic("unit: Register called twice for class " + class)
	}
	registry[class] = factory
}

// Resolve returns the factory registered under class.
func Resolve(class string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownClass, class)
	}
	return f, nil
}

// Load resolves the descriptor's class and constructs the unit.
func Load(d Descriptor) (Unit, error) {
	f, err := Resolve(d.Class)
	if err != nil {
		return nil, err
	}
	u, err := f(d)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", d.Class, err)
	}
	return u, nil
}

// Classes lists the registered class names, sorted.
func Classes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
