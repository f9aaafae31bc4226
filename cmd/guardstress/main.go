// Integration and stress harness for the guard-mode allocator layer:
// drives the bootstrap sequence (configure, early zone init from the
// reserve, memory-manager handover) and then steady-state allocate/free
// traffic, reporting the global counters.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/krzyswit2/guardheap/internal/bootargs"
	"github.com/krzyswit2/guardheap/internal/guard"
	"github.com/krzyswit2/guardheap/internal/vmmap"
)

func main() {
	var (
		argsLine  = flag.String("bootargs", os.Getenv("GUARDHEAP_BOOTARGS"), "boot argument line (default from GUARDHEAP_BOOTARGS)")
		argsFile  = flag.String("bootargs-file", "", "read boot arguments from this file; with -watch, exemptions are re-applied on change")
		watch     = flag.Bool("watch", false, "watch the boot-args file for exemption updates")
		cycles    = flag.Int("cycles", 10000, "allocate/free cycles per zone")
		workers   = flag.Int("workers", 4, "concurrent workers per zone")
		sizesSpec = flag.String("sizes", "1024,4096,8192", "comma-separated zone element sizes")
	)
	flag.Parse()

	if *argsLine == "" && *argsFile == "" {
		*argsLine = "-guard_mode guard_fc_size=64"
	}

	args := bootargs.Parse(*argsLine)
	if *argsFile != "" {
		loaded, err := bootargs.Load(*argsFile)
		if err != nil {
			panic(fmt.Sprintf("boot-args file: %v", err))
		}
		args = loaded
	}

	cfg := guard.Configure(args)
	fmt.Printf("=== guardheap stress ===\n")
	fmt.Printf("enabled=%v min=%#x max=%#x fc=%d wp=%v uf=%v checks=%v\n",
		cfg.Enabled, cfg.MinSize, cfg.MaxSize, cfg.FreeCacheEntries,
		cfg.Protection == guard.ProtectReadOnly,
		cfg.Orientation == guard.GuardLeading,
		cfg.ConsistencyChecks)
	if !cfg.Enabled {
		fmt.Println("guard mode disabled; nothing to do")
		return
	}

	mapper := vmmap.NewManager()
	alloc := guard.New(cfg, mapper)

	var zones []*guard.Zone
	for _, s := range strings.Split(*sizesSpec, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
		if err != nil {
			panic(fmt.Sprintf("bad zone size %q: %v", s, err))
		}
		zones = append(zones, guard.NewZone(fmt.Sprintf("stress.%d", n), uintptr(n)))
	}
	applyExemptions(zones, alloc, args)

	// Phase 1: bootstrap. Zone guard state and a few allocations come
	// straight out of the reserve carve-out.
	fmt.Printf("\n1. Bootstrap (reserve %#x bytes)\n", alloc.ReserveRemaining())
	for _, z := range zones {
		alloc.ZoneInit(z)
	}

	var early []uintptr
	earlyZone := zones[0]
	for i := 0; i < 4; i++ {
		if addr := alloc.Allocate(earlyZone, true); addr != 0 {
			early = append(early, addr)
		}
	}
	fmt.Printf("   %d early allocations carved, reserve %#x bytes left\n",
		len(early), alloc.ReserveRemaining())

	// Phase 2: memory-manager handover. Early elements freed now take
	// the deliberate-leak path.
	mapper.SetReady()
	for _, addr := range early {
		alloc.Free(earlyZone, addr)
	}
	fmt.Printf("\n2. Memory manager ready; %d early elements leaked by design\n", len(early))

	if *watch && *argsFile != "" {
		w, err := bootargs.Watch(*argsFile, func(a *bootargs.Args) {
			applyExemptions(zones, alloc, a)
			fmt.Println("   boot-args reloaded; exemptions re-applied")
		}, func(err error) {
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		})
		if err != nil {
			panic(fmt.Sprintf("watch: %v", err))
		}
		defer w.Close()
	}

	// Phase 3: steady-state traffic.
	fmt.Printf("\n3. Traffic: %d cycles x %d workers per zone\n", *cycles, *workers)
	var wg sync.WaitGroup
	for _, z := range zones {
		for w := 0; w < *workers; w++ {
			wg.Add(1)
			go func(z *guard.Zone) {
				defer wg.Done()
				for i := 0; i < *cycles; i++ {
					addr := alloc.Allocate(z, true)
					if addr == 0 {
						// Not targeted by the configured range.
						return
					}
					if !alloc.Free(z, addr) {
						panic(fmt.Sprintf("free not handled for zone %s", z.Name()))
					}
				}
			}(z)
		}
	}
	wg.Wait()

	fmt.Printf("\n4. Results\n")
	for _, z := range zones {
		live, cumulative, cur := z.Counts()
		fmt.Printf("   zone %-14s live=%d cumulative=%d footprint=%#x cached=%d\n",
			z.Name(), live, cumulative, cur, z.CachedFrees())
	}

	st := alloc.Stats()
	fmt.Printf("   allocated=%#x freed=%#x wasted=%#x\n", st.Allocated, st.Freed, st.Wasted)
	fmt.Printf("   early: allocated=%#x freed=%#x\n", st.EarlyAllocated, st.EarlyFreed)
	fmt.Printf("   blocked=%d elevatedAllocs=%d elevatedFrees=%d\n",
		st.BlockedAllocs, st.ElevatedAllocs, st.ElevatedFrees)
	fmt.Printf("   live mappings: %d\n", mapper.Live())
}

// applyExemptions flags the zones named in guard_exempt and funnels each
// change through Reconfigure.
func applyExemptions(zones []*guard.Zone, alloc *guard.Allocator, args *bootargs.Args) {
	exempt := args.List("guard_exempt")
	for _, z := range zones {
		z.SetExempt(slices.Contains(exempt, z.Name()))
		alloc.Reconfigure(z)
	}
}
