package adapters

import (
	"sort"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// Registry looks up adapters by source name
type Registry struct {
	adapters map[string]alerts.Adapter
}

// NewRegistry registers the given adapters
func NewRegistry(list ...alerts.Adapter) *Registry {
	r := &Registry{adapters: make(map[string]alerts.Adapter, len(list))}
	for _, a := range list {
		r.adapters[a.Source()] = a
	}
	return r
}

// Default returns a registry with every built-in adapter and default
// mappings
func Default() *Registry {
	return NewRegistry(NewAlertmanagerAdapter(nil), NewGrafanaAdapter(nil))
}

// Get returns the adapter for source
func (r *Registry) Get(source string) (alerts.Adapter, bool) {
	a, ok := r.adapters[source]
	return a, ok
}

// Sources lists the registered source names, sorted
func (r *Registry) Sources() []string {
	out := make([]string, 0, len(r.adapters))
	for s := range r.adapters {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
