// Package bootargs parses kernel-style boot argument strings into a
// named-option lookup. Options are whitespace separated; an option is
// either a bare flag ("-guard_wp") whose presence is the value, or a
// key/value pair ("guard_min=1024"). Absent options leave defaults in
// effect; malformed values are treated as absent.
package bootargs

import (
	"os"
	"strconv"
	"strings"
)

// Args holds a parsed boot argument string.
type Args struct {
	flags  map[string]struct{}
	values map[string]string
}

// Parse splits a boot argument line into flags and key/value options.
func Parse(line string) *Args {
	a := &Args{
		flags:  make(map[string]struct{}),
		values: make(map[string]string),
	}

	for _, tok := range strings.Fields(line) {
		if strings.HasPrefix(tok, "-") {
			a.flags[tok] = struct{}{}
			continue
		}

		if k, v, ok := strings.Cut(tok, "="); ok && k != "" {
			a.values[k] = v
		}
	}

	return a
}

// FromEnv parses the boot argument line held in the named environment
// variable. An unset variable yields an empty Args.
func FromEnv(key string) *Args {
	return Parse(os.Getenv(key))
}

// Load reads and parses a boot argument file.
func Load(path string) (*Args, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(string(data)), nil
}

// Flag reports whether the named bare flag is present.
func (a *Args) Flag(name string) bool {
	_, ok := a.flags[name]
	return ok
}

// Value returns the raw string value of a key/value option.
func (a *Args) Value(name string) (string, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Uint returns the numeric value of a key/value option. Values may be
// decimal or, with a 0x prefix, hexadecimal. bits caps the accepted
// range the way a sized argument buffer would; malformed or out-of-range
// values report absence rather than an error, per boot-args convention.
func (a *Args) Uint(name string, bits int) (uint64, bool) {
	v, ok := a.values[name]
	if !ok {
		return 0, false
	}

	n, err := strconv.ParseUint(v, 0, bits)
	if err != nil {
		return 0, false
	}

	return n, true
}

// List returns the comma-separated elements of a key/value option.
func (a *Args) List(name string) []string {
	v, ok := a.values[name]
	if !ok || v == "" {
		return nil
	}

	return strings.Split(v, ",")
}
