package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vocorder/vocorder/pkg/analysis"
	"github.com/vocorder/vocorder/pkg/analysis/sched"
)

var clipCmd = &cobra.Command{
	Use:   "clip <file.wav>",
	Short: "Analyze one clip and print its curve summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		cl := sched.NewClip(pool, c, sched.WithNotes(ix))
		cl.Submit(args[0], analysis.Options{
			Algo:       cfg.Algorithm(),
			SampleRate: cfg.SampleRate,
			RefBits:    cfg.BitDepth,
		})

		for i := 0; i < 2; i++ {
			res := <-cl.Results()
			if res.Err != nil {
				return res.Err
			}
			e := res.Entry
			tag := ""
			if res.Cached {
				tag = dimStyle.Render(" (cached)")
			}
			switch res.Job.Kind {
			case sched.KindPitch:
				voiced := 0
				for _, f := range e.F0s {
					if f > 0 {
						voiced++
					}
				}
				fmt.Printf("%s %s%s\n", labelStyle.Render("note"), e.Meta.Note, tag)
				fmt.Printf("%s %d frames, %d voiced\n",
					labelStyle.Render("pitch"), len(e.F0s), voiced)
			case sched.KindSpectral:
				var lo, hi float32
				if len(e.PowerDB) > 0 {
					lo, hi = e.PowerDB[0], e.PowerDB[0]
					for _, v := range e.PowerDB {
						if v < lo {
							lo = v
						}
						if v > hi {
							hi = v
						}
					}
				}
				fmt.Printf("%s %d bands x %d frames%s\n",
					labelStyle.Render("mel"), e.MelRows, len(e.MelTimes), tag)
				fmt.Printf("%s %.1f .. %.1f dBFS\n", labelStyle.Render("power"), lo, hi)
			}
		}
		printVerbose("algo=%s sr=%d", cfg.PitchAlgo, cfg.SampleRate)
		return nil
	},
}
