package guard

import (
	"testing"

	"github.com/krzyswit2/guardheap/internal/bootargs"
)

func TestConfigure(t *testing.T) {
	tests := []struct {
		name string
		line string
		want func(t *testing.T, cfg Config)
	}{
		{
			name: "Defaults",
			line: "",
			want: func(t *testing.T, cfg Config) {
				if cfg.Enabled {
					t.Error("enabled without any option")
				}
				if !cfg.ConsistencyChecks {
					t.Error("consistency checks default off")
				}
				if cfg.FreeCacheEntries != freeCacheDefault {
					t.Errorf("free cache default %d, want %d", cfg.FreeCacheEntries, freeCacheDefault)
				}
				if cfg.FillByte != fillPatternDefault {
					t.Errorf("fill byte %#x, want %#x", cfg.FillByte, fillPatternDefault)
				}
			},
		},
		{
			name: "ModeFlag",
			line: "-guard_mode",
			want: func(t *testing.T, cfg Config) {
				if !cfg.Enabled || cfg.MinSize != minSizeDefault || cfg.MaxSize != sizeUnbounded {
					t.Errorf("got enabled=%v min=%#x max=%#x", cfg.Enabled, cfg.MinSize, cfg.MaxSize)
				}
			},
		},
		{
			name: "MinOnly",
			line: "guard_min=2048",
			want: func(t *testing.T, cfg Config) {
				if !cfg.Enabled || cfg.MinSize != 2048 || cfg.MaxSize != sizeUnbounded {
					t.Errorf("got enabled=%v min=%#x max=%#x", cfg.Enabled, cfg.MinSize, cfg.MaxSize)
				}
			},
		},
		{
			name: "MaxOnly",
			line: "guard_max=8192",
			want: func(t *testing.T, cfg Config) {
				if !cfg.Enabled || cfg.MinSize != 0 || cfg.MaxSize != 8192 {
					t.Errorf("got enabled=%v min=%#x max=%#x", cfg.Enabled, cfg.MinSize, cfg.MaxSize)
				}
			},
		},
		{
			name: "MinAndMax",
			line: "guard_min=1024 guard_max=4096",
			want: func(t *testing.T, cfg Config) {
				if cfg.MinSize != 1024 || cfg.MaxSize != 4096 {
					t.Errorf("got min=%#x max=%#x", cfg.MinSize, cfg.MaxSize)
				}
			},
		},
		{
			name: "ExactSizeOverridesRange",
			line: "guard_min=64 guard_max=128 guard_size=4096",
			want: func(t *testing.T, cfg Config) {
				if cfg.MinSize != 4096 || cfg.MaxSize != 4096 {
					t.Errorf("got min=%#x max=%#x, want both 0x1000", cfg.MinSize, cfg.MaxSize)
				}
			},
		},
		{
			name: "FreeCacheSize",
			line: "-guard_mode guard_fc_size=16",
			want: func(t *testing.T, cfg Config) {
				if cfg.FreeCacheEntries != 16 {
					t.Errorf("free cache entries %d, want 16", cfg.FreeCacheEntries)
				}
			},
		},
		{
			name: "FreeCacheSizeOutOfRange",
			line: "-guard_mode guard_fc_size=0x100000000",
			want: func(t *testing.T, cfg Config) {
				if cfg.FreeCacheEntries != freeCacheDefault {
					t.Errorf("free cache entries %d, want default %d for an out-of-range value",
						cfg.FreeCacheEntries, freeCacheDefault)
				}
			},
		},
		{
			name: "WriteProtect",
			line: "-guard_mode -guard_wp",
			want: func(t *testing.T, cfg Config) {
				if cfg.Protection != ProtectReadOnly {
					t.Errorf("protection %v, want ProtectReadOnly", cfg.Protection)
				}
			},
		},
		{
			name: "UnderflowMode",
			line: "-guard_mode -guard_uf_mode",
			want: func(t *testing.T, cfg Config) {
				if cfg.Orientation != GuardLeading {
					t.Errorf("orientation %v, want GuardLeading", cfg.Orientation)
				}
			},
		},
		{
			name: "NoConsistency",
			line: "-guard_mode -guard_noconsistency",
			want: func(t *testing.T, cfg Config) {
				if cfg.ConsistencyChecks {
					t.Error("consistency checks still enabled")
				}
			},
		},
		{
			name: "DisableWinsOverEverything",
			line: "-guard_mode guard_min=64 guard_size=128 -noguard_mode",
			want: func(t *testing.T, cfg Config) {
				if cfg.Enabled {
					t.Error("disable flag did not win")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, Configure(bootargs.Parse(tt.line)))
		})
	}
}
