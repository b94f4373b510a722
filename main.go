package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"levelmeter/cmd"
	"levelmeter/internal/audio"
	"levelmeter/internal/config"
	applog "levelmeter/internal/log"
	"levelmeter/internal/meter"
	"levelmeter/internal/notify"
	"levelmeter/internal/refresh"
	"levelmeter/internal/transport"
	"levelmeter/internal/transport/udp"
	"levelmeter/internal/tui"
	"levelmeter/pkg/build"
)

// snapshotLogEvery is the number of snapshots between debug log lines.
const snapshotLogEvery = 30

// main is the entry point for the level meter.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Initialize PortAudio
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Create the meter, refresher, transports and alerting
//   - Start the level source (input stream or WAV replay)
//   - Start recording if enabled
//   - Run the terminal UI or the headless refresh loop
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop the level source and recording
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Initialize build information including version, commit hash, and build time
	if err := build.Initialize(); err != nil {
		applog.Fatal(err)
	}

	// Limit OS threads: one for the audio callback, one for refresh and I/O
	runtime.GOMAXPROCS(2)

	// Parse command line arguments and build configuration
	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatal(err)
	}
	if cfg == nil {
		// Help or version output only
		return
	}
	configureLogging(cfg)

	// Initialize PortAudio subsystem
	if err := audio.Initialize(); err != nil {
		applog.Fatal(err)
	}
	defer audio.Terminate()

	// Handle one-off commands that don't need the meter
	if cfg.Command == cmd.CommandList {
		if err := audio.ListDevices(); err != nil {
			applog.Fatal(err)
		}
		return
	}

	if cfg.Pick && cfg.Command != cmd.CommandReplay {
		sel, err := tui.PickDevice()
		if err != nil {
			applog.Fatal(err)
		}
		if !sel.Confirmed {
			return
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		cfg.Audio.InputChannels = min(max(sel.Channels, 1), config.MaxChannels)
	}

	if err := run(cfg); err != nil {
		applog.Errorf("%v", err)
		audio.Terminate()
		os.Exit(1)
	}
}

// configureLogging applies the configured log level. --verbose wins.
func configureLogging(cfg *config.Config) {
	level, _ := applog.ParseLevel(cfg.LogLevel)
	if cfg.Verbose || cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
}

func run(cfg *config.Config) error {
	// ==================== CONCURRENT PHASE (Hot Path) ====================

	m := meter.New(cfg.Audio.InputChannels)
	m.Resize(cfg.Meter.Height)
	m.SetPeakFalloff(cfg.Meter.PeakFalloff)

	refresher := refresh.New(m, cfg.RefreshInterval())
	if err := addTransports(cfg, refresher); err != nil {
		refresher.Close()
		return err
	}

	var notifier *notify.OverNotifier
	if cfg.Alert.Enabled() {
		notifier = notify.NewOverNotifier(cfg.Alert)
		refresher.AddObserver(notifier)
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := startSource(ctx, cfg, m)
	if err != nil {
		refresher.Close()
		return err
	}

	var runErr error
	if cfg.Headless {
		runErr = runHeadless(ctx, refresher, m.PortCount(), source.done)
	} else {
		runErr = runTUI(cfg, refresher)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	stop()
	if err := source.stop(); err != nil {
		applog.Errorf("Error stopping level source: %v", err)
	}
	if err := refresher.Close(); err != nil {
		applog.Errorf("Error closing transports: %v", err)
	}
	if notifier != nil {
		notifier.Wait()
	}
	return runErr
}

// addTransports registers every configured snapshot transport.
func addTransports(cfg *config.Config, r *refresh.Refresher) error {
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err != nil {
			return err
		}
		applog.Infof("Serving snapshots on ws://%s%s", ws.Addr(), transport.MeterPath)
		r.AddTransport(ws)
	}
	if cfg.Transport.UDPEnabled {
		t, err := udp.Dial(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		applog.Infof("Sending snapshots to udp://%s", cfg.Transport.UDPTargetAddress)
		r.AddTransport(t)
	}
	if applog.GetLevel() == applog.LevelDebug {
		r.AddTransport(transport.NewLoggingTransport(snapshotLogEvery))
	}
	return nil
}

// levelSource is either the live input stream or a WAV replay.
type levelSource struct {
	done <-chan struct{}
	stop func() error
}

func startSource(ctx context.Context, cfg *config.Config, m *meter.Meter) (*levelSource, error) {
	if cfg.Command == cmd.CommandReplay {
		return startReplay(ctx, cfg, m), nil
	}
	return startEngine(cfg, m)
}

func startEngine(cfg *config.Config, m *meter.Meter) (*levelSource, error) {
	engine, err := audio.NewEngine(cfg, m)
	if err != nil {
		return nil, err
	}

	// CRITICAL: Start of real-time audio processing
	// The first call to StartInputStream triggers PortAudio to begin
	// calling the callback function, marking the start of the hot path
	if err := engine.StartInputStream(); err != nil {
		return nil, err
	}
	applog.Infof("Metering %d channels at %.0f Hz, noise floor %.1f dBFS",
		cfg.Audio.InputChannels, cfg.Audio.SampleRate, engine.NoiseFloor())

	recording := ""
	if cfg.Recording.Enabled {
		recording = cfg.OutputFile
		if recording == "" {
			recording = audio.RecordingFileName(cfg.Recording.OutputDir, time.Now())
		}
		if err := engine.StartRecording(recording); err != nil {
			engine.StopInputStream()
			return nil, err
		}
	}

	return &levelSource{
		done: make(chan struct{}),
		stop: func() error {
			var errs []error
			if recording != "" {
				if err := engine.StopRecording(); err != nil {
					errs = append(errs, err)
				} else {
					applog.Infof("Recording saved to: %s", recording)
				}
			}
			if err := engine.StopInputStream(); err != nil {
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		},
	}, nil
}

func startReplay(ctx context.Context, cfg *config.Config, m *meter.Meter) *levelSource {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	var replayErr error

	go func() {
		defer close(done)
		stats, err := audio.Replay(ctx, cfg.ReplayFile, m, audio.ReplayOptions{
			FramesPerBuffer: cfg.Audio.FramesPerBuffer,
			NoiseFloorDB:    cfg.Audio.NoiseFloorDB,
			Fast:            cfg.ReplayFast,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			replayErr = err
			applog.Errorf("Replay of %s failed: %v", cfg.ReplayFile, err)
			return
		}
		if stats.Channels > m.PortCount() {
			applog.Warnf("%s has %d channels, only %d metered", cfg.ReplayFile, stats.Channels, m.PortCount())
		}
		applog.Infof("Replayed %s: %d blocks, %s", cfg.ReplayFile, stats.Blocks, stats.Duration())
	}()

	return &levelSource{
		done: done,
		stop: func() error {
			cancel()
			<-done
			return replayErr
		},
	}
}

// runHeadless refreshes on the ticker until a signal arrives or the source ends.
func runHeadless(ctx context.Context, r *refresh.Refresher, ports int, sourceDone <-chan struct{}) error {
	if err := r.Start(); err != nil {
		return err
	}
	applog.Infof("Metering %d port(s) every %s, press Ctrl+C to stop", ports, r.Interval())

	select {
	case <-ctx.Done():
	case <-sourceDone:
		// Let the final silence reach the transports.
		time.Sleep(2 * r.Interval())
	}
	r.Stop()
	return nil
}

// runTUI owns the terminal until the user quits. Logging is silenced while
// the alternate screen is active.
func runTUI(cfg *config.Config, r *refresh.Refresher) error {
	applog.SetOutput(io.Discard)
	defer applog.SetOutput(os.Stderr)

	title := fmt.Sprintf("%s %s", build.GetBuildFlags().Name, build.GetBuildFlags().Version)
	if cfg.Command == cmd.CommandReplay {
		title += " • " + cfg.ReplayFile
	}
	return tui.RunMeter(r, title)
}
