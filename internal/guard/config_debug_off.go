//go:build !debug

package guard

// debugDefaults applies the debug-build targeting defaults. No-op in
// normal builds.
func debugDefaults(cfg *Config) {}
