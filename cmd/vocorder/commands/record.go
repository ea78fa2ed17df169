package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vocorder/vocorder/pkg/audio/engine"
)

var (
	recordBGM       string
	recordTone      string
	recordToneDur   time.Duration
	recordMora      int
	recordBPM       float64
	recordMetronome bool
	recordOverlay   string
	recordOverTone  string
	recordDry       bool
	recordDuration  time.Duration
	recordInDev     int
	recordOutDev    int
)

var recordCmd = &cobra.Command{
	Use:   "record [flags] <output.wav>",
	Short: "Record a take against a backing track",
	Long: `Record captures the microphone to a WAV file while playing the backing
track. The backing track comes from --bgm, or is generated by --tone,
--mora or --metronome. With --duration the take stops on its own;
otherwise press Enter to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}

		eng := engine.New(getConfig().EngineConfig(), engine.WithStatusFunc(func(msg string) {
			fmt.Fprintln(os.Stderr, dimStyle.Render(msg))
		}))
		if err := eng.Start(); err != nil {
			return err
		}
		defer eng.Close()

		if recordInDev >= 0 || recordOutDev >= 0 {
			if err := eng.SetDevices(recordInDev, recordOutDev); err != nil {
				return err
			}
		}

		switch {
		case recordBGM != "":
			if err := eng.LoadBGM(recordBGM); err != nil {
				return err
			}
		case recordMora > 0:
			if recordTone == "" {
				return fmt.Errorf("--mora needs --tone")
			}
			if err := eng.GenerateMora(recordTone, recordBPM, recordMora, 100*time.Millisecond); err != nil {
				return err
			}
		case recordTone != "":
			if err := eng.GenerateTone(recordTone, recordToneDur); err != nil {
				return err
			}
		case recordMetronome:
			dur := recordDuration
			if dur <= 0 {
				dur = time.Minute
			}
			if err := eng.GenerateMetronome(recordBPM, dur); err != nil {
				return err
			}
		}

		switch {
		case recordOverlay != "":
			if err := eng.SetOverlay(recordOverlay); err != nil {
				return err
			}
			eng.SetOverlayEnabled(true)
		case recordOverTone != "":
			if err := eng.SetOverlayTone(recordOverTone, time.Second); err != nil {
				return err
			}
			eng.SetOverlayEnabled(true)
		}

		if err := eng.StartRecording(out, !recordDry); err != nil {
			return err
		}
		fmt.Println(titleStyle.Render("Recording..."))

		if recordDuration > 0 {
			time.Sleep(recordDuration)
		} else {
			fmt.Println(dimStyle.Render("press Enter to stop"))
			bufio.NewReader(os.Stdin).ReadString('\n')
		}

		path, err := eng.StopRecording()
		if err != nil {
			return err
		}
		take := eng.WaveformAudio()
		secs := float64(len(take)) / float64(getConfig().SampleRate)
		fmt.Printf("%s %s %s\n",
			labelStyle.Render("saved"), path,
			dimStyle.Render(fmt.Sprintf("(%.1fs)", secs)))
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordBGM, "bgm", "", "backing track WAV file")
	recordCmd.Flags().StringVar(&recordTone, "tone", "", "generate a cue tone for this note (e.g. A4)")
	recordCmd.Flags().DurationVar(&recordToneDur, "tone-duration", 2*time.Second, "cue tone length")
	recordCmd.Flags().IntVar(&recordMora, "mora", 0, "generate this many mora-paced cue tones")
	recordCmd.Flags().Float64Var(&recordBPM, "bpm", 120, "tempo for --mora and --metronome")
	recordCmd.Flags().BoolVar(&recordMetronome, "metronome", false, "generate a metronome click track")
	recordCmd.Flags().StringVar(&recordOverlay, "overlay", "", "overlay loop WAV file")
	recordCmd.Flags().StringVar(&recordOverTone, "overlay-tone", "", "loop a generated reference tone (e.g. A4)")
	recordCmd.Flags().BoolVar(&recordDry, "dry", false, "record without mixing the backing track")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "stop after this long (default: Enter key)")
	recordCmd.Flags().IntVar(&recordInDev, "input-device", -1, "input device index (see 'vocorder devices')")
	recordCmd.Flags().IntVar(&recordOutDev, "output-device", -1, "output device index")
}
