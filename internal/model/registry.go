package model

import (
	"fmt"
	"slices"
	"sync"
)

var (
	registryMu sync.RWMutex
	Registry   = map[string]*Resource{}
)

// InitRegistry loads and validates every resource in dir and replaces the
// registry only when all of them are valid.
func InitRegistry(dir string) error {
	loaded, err := LoadResourcesFromDir(dir)
	if err != nil {
		return fmt.Errorf("load error: %w", err)
	}
	if err := ValidateResources(loaded); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	registryMu.Lock()
	Registry = loaded
	registryMu.Unlock()
	logRegistryStats(loaded)
	return nil
}

func Lookup(name string) (*Resource, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	res, ok := Registry[name]
	return res, ok
}

// Names returns the registered resource names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedKeys(Registry)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
