package vector

import (
	"slices"
	"sync"

	"github.com/syssam/veloq"
)

// Registry is a table of named vector dialect configs plus the name of the
// active default. It is meant to be populated during initialization, then
// frozen and shared by every query compiled afterwards.
//
//	reg := vector.NewRegistry(vector.WithBuiltins(), vector.WithActive(vector.NamePGVector))
//	reg.Freeze()
//	q := sql.Dialect(dialect.Postgres, sql.WithVectorRegistry(reg)).Select("*")
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config
	active  string
	frozen  bool
	err     error
}

// RegistryOption configures a Registry created by NewRegistry.
type RegistryOption func(*Registry)

// WithBuiltins registers all built-in configs under their names.
func WithBuiltins() RegistryOption {
	return func(r *Registry) {
		for _, name := range BuiltinNames() {
			c, _ := Builtin(name)
			r.setErr(r.Register(name, c))
		}
	}
}

// WithConfig registers the given config.
func WithConfig(name string, c Config) RegistryOption {
	return func(r *Registry) {
		r.setErr(r.Register(name, c))
	}
}

// WithActive sets the active default. It must follow the options
// registering the name.
func WithActive(name string) RegistryOption {
	return func(r *Registry) {
		r.setErr(r.SetActive(name))
	}
}

// NewRegistry returns a new registry configured with the given options.
// Errors raised by options are reported by Err.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{configs: make(map[string]*Config)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) setErr(err error) {
	if err != nil && r.err == nil {
		r.err = err
	}
}

// Err returns the first error raised by the options passed to NewRegistry.
func (r *Registry) Err() error {
	return r.err
}

// Register inserts or replaces the config stored under name.
func (r *Registry) Register(name string, c Config) error {
	if err := c.validate(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return veloq.ConfigErrorf("Register", veloq.ErrRegistryFrozen, "cannot register %q", name)
	}
	r.configs[name] = &c
	return nil
}

// SetActive sets the default config used by queries without a per-query
// override. It fails if name is not registered.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return veloq.ConfigErrorf("SetActive", veloq.ErrRegistryFrozen, "cannot activate %q", name)
	}
	if _, ok := r.configs[name]; !ok {
		return veloq.ConfigErrorf("SetActive", veloq.ErrUnknownVectorDB, "%q", name)
	}
	r.active = name
	return nil
}

// Active returns the name of the active default, or "" if none is set.
func (r *Registry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Freeze ends the initialization phase. Register and SetActive fail afterwards.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the config registered under name.
func (r *Registry) Lookup(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[name]
	return c, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve returns the config for a query: the override if set, otherwise the
// active default. It fails if the resolved name is unknown or if neither is set.
func (r *Registry) Resolve(override string) (string, *Config, error) {
	name := override
	if name == "" {
		name = r.Active()
	}
	if name == "" {
		return "", nil, veloq.NewConfigError("Resolve", veloq.ErrNoVectorDB)
	}
	c, ok := r.Lookup(name)
	if !ok {
		return "", nil, veloq.ConfigErrorf("Resolve", veloq.ErrUnknownVectorDB, "%q", name)
	}
	return name, c, nil
}
