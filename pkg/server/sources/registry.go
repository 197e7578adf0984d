package sources

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[string]SourceFactory)
	mu       sync.RWMutex
)

// Register adds a source factory to the registry under "<type>.<name>".
func Register(name string, factory SourceFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// Create creates a new source instance by type and name.
func Create(sourceType, name string, config map[string]interface{}) (Source, error) {
	mu.RLock()
	key := fmt.Sprintf("%s.%s", sourceType, name)
	factory, ok := registry[key]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, key)
	}
	if config == nil {
		config = make(map[string]interface{})
	}

	return factory(config)
}

// IsRegistered reports whether a factory exists for "<type>.<name>".
func IsRegistered(sourceType, name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[sourceType+"."+name]
	return ok
}

// List returns all registered source names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
