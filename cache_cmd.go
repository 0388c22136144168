package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dgnsrekt/soundbox/internal/cache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the fragment cache",
		Long:  paragraph(fmt.Sprintf("\nSynthesized fragments are %s by text and voice so repeated text is not sent to the engine again.", keyword("cached"))),
		Args:  cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache location and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(cm *cache.CacheManager) error {
				return printCacheStats(cmd.OutOrStdout(), cm.Stats())
			})
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached fragment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(cm *cache.CacheManager) error {
				if err := cm.Clear(); err != nil {
					return fmt.Errorf("unable to clear cache: %w", err)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
				return err
			})
		},
	}

	cachePruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Remove fragments older than the configured TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(func(cm *cache.CacheManager) error {
				n := cm.Cleanup()
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired %s.\n", n, plural(n, "fragment"))
				return err
			})
		},
	}
)

func withCache(fn func(*cache.CacheManager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		return errors.New("the fragment cache is disabled (tts.cache.enabled: false)")
	}

	cm, err := openCache(cfg.Cache)
	if err != nil {
		return err
	}
	err = fn(cm)
	if cerr := cm.Close(); err == nil {
		err = cerr
	}
	return err
}

func printCacheStats(w io.Writer, s cache.ManagerStats) error {
	row := func(label, value string) {
		fmt.Fprintf(w, "  %-12s %s\n", faint(label), value)
	}

	fmt.Fprintln(w, keyword("Fragment cache"))
	row("backend", string(s.Backend))
	if s.Dir != "" {
		row("location", s.Dir)
	}
	if p := s.Persistent; p != nil {
		row("fragments", humanize.Comma(p.ItemCount))
		size := humanize.Bytes(uint64(max(p.Size, 0)))
		if p.Capacity > 0 {
			size += " of " + humanize.Bytes(uint64(p.Capacity))
		}
		row("size", size)
	} else {
		row("fragments", humanize.Comma(s.Memory.ItemCount))
		row("size", humanize.Bytes(uint64(max(s.Memory.Size, 0))))
	}
	if !s.LastCleanup.IsZero() {
		row("cleaned", humanize.Time(s.LastCleanup))
	}
	_, err := fmt.Fprintln(w)
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
}
