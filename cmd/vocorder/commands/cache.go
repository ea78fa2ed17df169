package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vocorder/vocorder/pkg/analysis"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or drop cached analysis entries",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the cache root and entry count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if _, err := openCache(); err != nil {
			return err
		}

		metas, _ := filepath.Glob(filepath.Join(cfg.CacheDir, "*.json"))
		var bytes int64
		entries, err := os.ReadDir(cfg.CacheDir)
		if err != nil {
			return err
		}
		for _, de := range entries {
			if info, err := de.Info(); err == nil {
				bytes += info.Size()
			}
		}

		fmt.Println(titleStyle.Render("Analysis cache"))
		fmt.Printf("%s %s\n", labelStyle.Render("dir    "), cfg.CacheDir)
		fmt.Printf("%s %d\n", labelStyle.Render("entries"), len(metas))
		fmt.Printf("%s %.1f MiB\n", labelStyle.Render("size   "), float64(bytes)/(1<<20))
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <file.wav>",
	Short: "Show the cached entry for a clip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		c, err := openCache()
		if err != nil {
			return err
		}

		id, _, _, err := analysis.Identify(args[0], analysis.Options{
			Algo:       cfg.Algorithm(),
			SampleRate: cfg.SampleRate,
			RefBits:    cfg.BitDepth,
		})
		if err != nil {
			return err
		}
		e, ok := c.Get(id)
		if !ok {
			fmt.Println(dimStyle.Render("no cached entry (stale or never analyzed)"))
			return nil
		}

		fmt.Println(titleStyle.Render("Cached analysis"))
		fmt.Printf("%s %s\n", labelStyle.Render("note "), e.Meta.Note)
		fmt.Printf("%s %s, %d Hz, %d-bit ref\n",
			labelStyle.Render("algo "), e.Meta.Algo, e.Meta.SampleRate, e.Meta.RefBits)
		fmt.Printf("%s pitch=%v mel=%v power=%v\n", labelStyle.Render("curves"),
			e.Meta.HasPitch, e.Meta.HasMel, e.Meta.HasPower)
		if e.Meta.HasPitch {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  pitch: %d frames", len(e.F0s))))
		}
		if e.Meta.HasMel {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  mel:   %d bands x %d frames", e.MelRows, len(e.MelTimes))))
		}
		if e.Meta.HasPower {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  power: %d frames", len(e.PowerDB))))
		}
		return nil
	},
}

var cacheDropCmd = &cobra.Command{
	Use:   "drop <file.wav>",
	Short: "Drop a clip's cached entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		if err := c.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, dimStyle.Render("dropped"))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheDropCmd)
}
