package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"unsafe"

	"github.com/alpluspluss/jalloc"
	"github.com/spf13/cobra"
)

var (
	statsOps  int
	statsSeed int64
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().IntVar(&statsOps, "ops", 10000, "Number of allocate/deallocate operations to run")
	cmd.Flags().Int64Var(&statsSeed, "seed", 1, "PRNG seed for the synthetic workload")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Run a synthetic workload and report arena occupancy",
		Long: `The stats command allocates and frees a mix of tiny, pooled, and
large blocks against a fresh jalloc.Arena, then reports per-class pool
occupancy, thread-cache depth, and large-block cache usage.

Example:
  jallocstat stats --ops 50000
  jallocstat stats --ops 50000 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

func runStats() error {
	printVerbose("running %d operations with seed %d\n", statsOps, statsSeed)

	a := jalloc.NewArena(nil)
	defer a.Cleanup()

	rng := rand.New(rand.NewSource(statsSeed))
	live := make([]unsafe.Pointer, 0, statsOps/4)

	for i := 0; i < statsOps; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(live))
			_ = a.Deallocate(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		size := int64(workloadSize(rng))
		ptr, err := a.Allocate(size)
		if err != nil {
			printVerbose("allocate %d bytes failed: %v\n", size, err)
			continue
		}
		live = append(live, ptr)
	}

	for _, ptr := range live {
		_ = a.Deallocate(ptr)
	}

	st := a.Stats()
	if jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(st)
	}

	printInfo("jalloc arena stats after %d operations:\n\n", statsOps)
	for _, c := range st.Classes {
		if c.PoolCount == 0 {
			continue
		}
		printInfo("  class %2d: %d pools, %d/%d slots used, %d in thread cache\n", c.Class, c.PoolCount, c.SlotsUsed, c.SlotsTotal, st.ThreadCacheLen[c.Class])
	}
	printInfo("\nlarge-block cache: %s retained\n", formatBytes(st.LargeCacheBytes))
	return nil
}

// workloadSize picks a size biased toward the tiny and pooled tiers, with
// an occasional large allocation, to exercise every tier in one run.
func workloadSize(rng *rand.Rand) int {
	switch {
	case rng.Intn(100) < 60:
		return 1 + rng.Intn(64)
	case rng.Intn(100) < 90:
		return 65 + rng.Intn(4000)
	default:
		return 1 << (16 + rng.Intn(6))
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
