package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vocorder/vocorder/pkg/analysis/cache"
	"github.com/vocorder/vocorder/pkg/analysis/notes"
	"github.com/vocorder/vocorder/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	// Global configuration
	globalConfig config.Config
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vocorder",
	Short: "Record and analyze vocal takes",
	Long: `vocorder records vocal takes against backing tracks and analyzes them.

Recording mixes the backing track, an optional overlay loop and the mic
monitor into the output while capturing the mic to WAV. Analysis extracts
pitch contours, mel spectrograms and power curves, caches them on disk and
indexes each take's dominant note.

Examples:
  # List audio devices
  vocorder devices

  # Record 10 seconds against a generated A4 cue tone
  vocorder record --tone A4 --duration 10s take.wav

  # Sweep a directory into the analysis cache
  vocorder analyze ~/.vocorder/recordings

  # Show a clip's analysis
  vocorder clip take.wav
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.vocorder/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(clipCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(cacheCmd)
}

func initConfig() {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			def := filepath.Join(home, ".vocorder", "config.yaml")
			if _, err := os.Stat(def); err == nil {
				path = def
			}
		}
	}
	var err error
	globalConfig, err = config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

func getConfig() config.Config {
	return globalConfig
}

// openCache opens the analysis cache from the configuration.
func openCache() (*cache.Cache, error) {
	cfg := getConfig()
	return cache.New(cache.Config{
		Dir:         cfg.CacheDir,
		MemoryLimit: cfg.CacheMemoryLimit,
	})
}

// openNotes opens the note index from the configuration.
func openNotes() (*notes.Index, error) {
	cfg := getConfig()
	return notes.Open(notes.Options{
		Dir: filepath.Join(cfg.Recordings, ".notes"),
	})
}

func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintln(os.Stderr, dimStyle.Render(fmt.Sprintf(format, args...)))
	}
}
