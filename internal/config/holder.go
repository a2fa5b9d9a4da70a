package config

import "sync"

// Holder wraps the active Config so long-lived components can observe
// reloads. Reload re-runs the defaults < YAML < ENV hierarchy from the
// original file; CLI flags are bind-time only and do not survive a reload.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewHolder creates a Holder around an already-loaded config.
func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{cfg: cfg, path: path}
}

// Get returns the active config.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Reload loads the config file again and swaps it in. On any load or
// validation error the previous config stays active.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	return nil
}
