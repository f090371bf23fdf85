package observability

import (
	"fmt"
	"log/slog"
	"sync"
)

var (
	mu        sync.RWMutex
	observers = map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(slog.Default()),
	}
)

// GetObserver returns a registered observer by name. Agent configuration
// refers to observers by these names; "noop" and "slog" are pre-registered.
func GetObserver(name string) (Observer, error) {
	mu.RLock()
	defer mu.RUnlock()

	obs, ok := observers[name]
	if !ok {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer in the process-wide
// registry. Call it before any agent loads a config naming the observer.
func RegisterObserver(name string, observer Observer) {
	mu.Lock()
	defer mu.Unlock()

	observers[name] = observer
}
