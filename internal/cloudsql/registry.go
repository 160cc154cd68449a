package cloudsql

import (
	"sync"

	"github.com/pganalyze/cloudconnect/instance"
	"github.com/pganalyze/cloudconnect/internal/adminapi"
	"github.com/pganalyze/cloudconnect/internal/cloudsqllog"
	"github.com/pganalyze/cloudconnect/internal/keys"
)

// Registry is a process-wide map from instance connection name to its
// single shared Instance. GetOrCreate guarantees at most one Instance is
// ever constructed for a given name, for the lifetime of the Registry.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*Instance
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*Instance)}
}

// GetOrCreate returns the existing Instance for name, or constructs one
// (triggering its initial background refresh) if this is the first
// request for that name.
func (r *Registry) GetOrCreate(name instance.ConnName, api adminapi.Client, keyPair keys.KeyPair, logger *cloudsqllog.Logger) *Instance {
	key := name.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[key]; ok {
		return inst
	}
	inst := NewInstance(name, api, keyPair, logger)
	r.instances[key] = inst
	return inst
}

// Close stops every registered Instance's background scheduling.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.instances {
		inst.Close()
	}
}
