package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vocorder/vocorder/pkg/analysis"
	"github.com/vocorder/vocorder/pkg/analysis/sched"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dir-or-files...>",
	Short: "Batch-analyze recordings into the cache",
	Long: `Analyze sweeps the given WAV files (or every WAV under the given
directories) through pitch, mel and power analysis, storing results in the
cache and the note index. Already-cached clips are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := collectWAVs(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no WAV files found")
		}

		cfg := getConfig()
		c, err := openCache()
		if err != nil {
			return err
		}
		ix, err := openNotes()
		if err != nil {
			return err
		}
		defer ix.Close()

		pool := sched.NewPool(cfg.NoteWorkers)
		defer pool.Shutdown()

		opts := analysis.Options{
			Algo:       cfg.Algorithm(),
			SampleRate: cfg.SampleRate,
			RefBits:    cfg.BitDepth,
		}
		run := sched.NewBatch(pool, c).Start(context.Background(), paths, opts)

		var failed int
		for res := range run.Results() {
			done, total := run.Progress()
			prefix := dimStyle.Render(fmt.Sprintf("[%d/%d]", done, total))
			if res.Err != nil {
				failed++
				fmt.Printf("%s %s %s\n", prefix, res.Path, errStyle.Render(res.Err.Error()))
				continue
			}
			note := res.Entry.Meta.Note
			tag := ""
			if res.Cached {
				tag = dimStyle.Render(" (cached)")
			} else {
				ix.Put(res.Path, noteRecord(res.Entry))
			}
			fmt.Printf("%s %s %s%s\n", prefix, res.Path, labelStyle.Render(note), tag)
		}
		if failed > 0 {
			fmt.Fprintln(os.Stderr, errStyle.Render(fmt.Sprintf("%d clips failed", failed)))
		}
		return nil
	},
}

// collectWAVs expands directories into their WAV files, sorted.
func collectWAVs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".wav") {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)
	return paths, nil
}
