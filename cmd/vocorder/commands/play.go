package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vocorder/vocorder/pkg/audio/engine"
)

var playCmd = &cobra.Command{
	Use:   "play <file.wav>",
	Short: "Audition a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := engine.New(getConfig().EngineConfig(), engine.WithStatusFunc(func(msg string) {
			fmt.Fprintln(os.Stderr, dimStyle.Render(msg))
		}))
		if err := eng.Start(); err != nil {
			return err
		}
		defer eng.Close()

		// One pass, not the looping record-path load, so the audition ends
		// on its own.
		if err := eng.LoadBGMPlaylist([]string{args[0]}, false); err != nil {
			return err
		}
		if err := eng.PlayBGM(); err != nil {
			return err
		}
		secs := float64(len(eng.BGMClip())) / float64(getConfig().SampleRate)
		fmt.Printf("%s %s %s\n", labelStyle.Render("playing"), args[0],
			dimStyle.Render(fmt.Sprintf("(%.1fs)", secs)))

		for eng.State() == engine.StatePreviewing {
			time.Sleep(100 * time.Millisecond)
		}
		return nil
	},
}
