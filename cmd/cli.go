// Package cmd parses the command line into a validated configuration.
package cmd

import (
	"fmt"
	"os"

	"levelmeter/internal/config"
	applog "levelmeter/internal/log"
	"levelmeter/pkg/bitint"
	"levelmeter/pkg/build"

	"github.com/spf13/cobra"
)

// Command names stored in config.Config.Command.
const (
	CommandMeter  = ""
	CommandList   = "list"
	CommandReplay = "replay"
)

// flagValues holds the raw flag values before they are merged over the
// loaded configuration.
type flagValues struct {
	configPath      string
	device          int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	fps             int
	height          float64
	noPeakFalloff   bool
	record          bool
	output          string
	verbose         bool
	headless        bool
	pick            bool
	fast            bool
}

// ParseArgs parses os.Args. It returns a nil config without error when the
// invocation only printed help or version information.
func ParseArgs() (*config.Config, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		flags   flagValues
		options *config.Config
	)

	// run loads the configuration and applies every flag the user set.
	run := func(command string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			cfg.Command = command
			if command == CommandReplay {
				cfg.ReplayFile = args[0]
			}
			options = cfg
			return nil
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", buildInfo.Version, buildInfo.Commit, buildInfo.Time),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: run(CommandMeter),
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE:  run(CommandList),
	}
	rootCmd.AddCommand(listCmd)

	// Replay command
	replayCmd := &cobra.Command{
		Use:   "replay <file.wav>",
		Short: "Meter a WAV file instead of a live input",
		Args:  cobra.ExactArgs(1),
		RunE:  run(CommandReplay),
	}
	replayCmd.Flags().BoolVar(&flags.fast, "fast", false,
		"Feed the file as fast as possible instead of in real time")
	rootCmd.AddCommand(replayCmd)

	pf := rootCmd.PersistentFlags()

	// Configuration file
	pf.StringVar(&flags.configPath, "config", "",
		"Path to the YAML configuration file (default ./"+config.DefaultConfigFile+" when present)")

	// Audio Device Configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to meter, one bar each")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per level update (rounded up to a power of two)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	pf.BoolVar(&flags.pick, "pick", false,
		"Choose the input device and sample rate interactively")

	// Meter Configuration
	pf.IntVar(&flags.fps, "fps", config.DefaultRefreshRate,
		"Meter refresh rate in frames per second")
	pf.Float64Var(&flags.height, "height", config.DefaultHeight,
		"Meter extent in rows before the first resize (headless mode keeps it)")
	pf.BoolVar(&flags.noPeakFalloff, "no-peak-falloff", false,
		"Hold peak lines until reset instead of letting them fall")
	pf.BoolVar(&flags.headless, "headless", false,
		"Run without the terminal UI and only publish snapshots")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", config.DefaultRecordInputStream,
		"Record audio from the specified input device")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Output file name. Default is <output_dir>/levelmeter-YYYYMMDD-HHMMSS.wav")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// apply copies every flag the user set onto cfg and validates the result.
func (f *flagValues) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		frames := bitint.NextPowerOfTwo(f.framesPerBuffer)
		if frames != f.framesPerBuffer {
			applog.Warnf("frames per buffer %d rounded up to %d", f.framesPerBuffer, frames)
		}
		cfg.Audio.FramesPerBuffer = frames
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("fps") {
		cfg.Meter.RefreshRate = f.fps
	}
	if changed("height") {
		cfg.Meter.Height = f.height
	}
	if changed("no-peak-falloff") {
		cfg.Meter.PeakFalloff = !f.noPeakFalloff
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.OutputFile = f.output
	}
	if f.verbose {
		cfg.Verbose = true
		cfg.LogLevel = "debug"
	}

	cfg.Headless = f.headless
	cfg.Pick = f.pick
	cfg.ReplayFast = f.fast

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
