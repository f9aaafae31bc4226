//go:build debug

package guard

// Debug builds guard 8K-16K zones by default, with freed elements left
// write-protected for inspection. Explicit boot options still win.
func debugDefaults(cfg *Config) {
	if cfg.Enabled {
		return
	}

	cfg.Enabled = true
	cfg.MinSize = 8192
	cfg.MaxSize = 16384
	cfg.Protection = ProtectReadOnly
}
