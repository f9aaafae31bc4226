package guard

import (
	"strconv"

	"github.com/krzyswit2/guardheap/internal/bootargs"
)

// Protection selects the disposition of freed ranges held in the free
// cache: fully unmapped-on-eviction with access revoked while cached, or
// left mapped read-only so reads-after-free can be disambiguated from
// writes and the element inspected in a debugger.
type Protection int

const (
	ProtectUnmap Protection = iota
	ProtectReadOnly
)

// Orientation selects which side of the element the guard page adjoins.
// Trailing traps overruns; Leading traps underruns, with the element
// moved to the far side of its page and the header becoming a footer.
type Orientation int

const (
	GuardTrailing Orientation = iota
	GuardLeading
)

const (
	minSizeDefault     = 1024
	freeCacheDefault   = 1024
	reserveSizeDefault = 2 * 1024 * 1024
	fillPatternDefault = 0x67 // 'g'

	sizeUnbounded = ^uintptr(0)
)

// Config is the process-wide guard configuration, derived once from boot
// options and never mutated afterwards. The only mutable targeting state
// is the per-zone exemption flag, which lives on the Zone.
type Config struct {
	Enabled bool

	// Inclusive element-size targeting range.
	MinSize uintptr
	MaxSize uintptr

	// Entries per zone free cache; 0 reclaims every free immediately.
	FreeCacheEntries uint32

	Protection        Protection
	Orientation       Orientation
	ConsistencyChecks bool
	FillByte          byte

	// Size of the early bootstrap reserve region.
	ReserveSize uintptr
}

// Configure derives the guard configuration from boot options:
//
//	-guard_mode            enable, targeting elements >= 1024 bytes
//	guard_min=<size>       enable, target elements >= size
//	guard_max=<size>       enable, target elements <= size
//	guard_size=<size>      enable, target exactly size (overrides min/max)
//	guard_fc_size=<n>      free cache entries per zone (default 1024)
//	-guard_wp              write-protect cached frees instead of revoking access
//	-guard_uf_mode         underflow mode: guard page before the element
//	-guard_noconsistency   disable header/footer consistency checks
//	-noguard_mode          force-disable, overriding everything above
//
// Debug builds (-tags debug) enable guarding of 8K-16K elements with
// write protection when no explicit option was given.
func Configure(args *bootargs.Args) Config {
	cfg := Config{
		MinSize:           sizeUnbounded,
		FreeCacheEntries:  freeCacheDefault,
		ConsistencyChecks: true,
		FillByte:          fillPatternDefault,
		ReserveSize:       reserveSizeDefault,
	}

	if args.Flag("-guard_mode") {
		cfg.Enabled = true
		cfg.MinSize = minSizeDefault
		cfg.MaxSize = sizeUnbounded
	}

	if v, ok := args.Uint("guard_min", strconv.IntSize); ok {
		cfg.Enabled = true
		cfg.MinSize = uintptr(v)
		cfg.MaxSize = sizeUnbounded
	}

	if v, ok := args.Uint("guard_max", strconv.IntSize); ok {
		cfg.Enabled = true
		cfg.MaxSize = uintptr(v)
		if cfg.MinSize == sizeUnbounded {
			cfg.MinSize = 0
		}
	}

	if v, ok := args.Uint("guard_size", strconv.IntSize); ok {
		cfg.Enabled = true
		cfg.MinSize = uintptr(v)
		cfg.MaxSize = uintptr(v)
	}

	if v, ok := args.Uint("guard_fc_size", 32); ok {
		cfg.FreeCacheEntries = uint32(v)
	}

	if args.Flag("-guard_wp") {
		cfg.Protection = ProtectReadOnly
	}

	if args.Flag("-guard_uf_mode") {
		cfg.Orientation = GuardLeading
	}

	if args.Flag("-guard_noconsistency") {
		cfg.ConsistencyChecks = false
	}

	debugDefaults(&cfg)

	// Checked last so it wins over every enabling option.
	if args.Flag("-noguard_mode") {
		cfg.Enabled = false
	}

	return cfg
}
