// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applog "levelmeter/internal/log"
	"levelmeter/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "levelmeter.yaml"

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Audio capture settings.
	Meter     MeterConfig     `yaml:"meter"`     // Meter ballistics and display settings.
	Recording RecordingConfig `yaml:"recording"` // Input recording settings.
	Transport TransportConfig `yaml:"transport"` // Snapshot publishing settings.
	Alert     AlertConfig     `yaml:"alert"`     // Over-level alert settings.

	// Runtime options set from the command line only.
	Command    string `yaml:"-"` // One-off command to execute (e.g., "list").
	ReplayFile string `yaml:"-"` // WAV file to meter instead of a live device.
	ReplayFast bool   `yaml:"-"` // Replay without real-time pacing.
	Headless   bool   `yaml:"-"` // Publish snapshots without the terminal UI.
	Pick       bool   `yaml:"-"` // Choose the input device interactively.
	OutputFile string `yaml:"-"` // Recording file path; generated when empty.
	Verbose    bool   `yaml:"-"` // Force debug logging.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback; one level update per port per buffer.
	InputChannels   int     `yaml:"input_channels"`    // Number of input channels, one meter port each.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	NoiseFloorDB    float64 `yaml:"noise_floor_db"`    // Levels below this are reported as silence.
}

// MeterConfig holds settings for the level meter.
type MeterConfig struct {
	RefreshRate int     `yaml:"refresh_rate_hz"` // Display refresh ticks per second.
	PeakFalloff bool    `yaml:"peak_falloff"`    // Let peak lines decay; frozen until reset otherwise.
	Height      float64 `yaml:"height"`          // Initial meter extent before the first resize.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the metered input to a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory for generated recording file names.
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth of recorded audio (16, 24 or 32).
}

// TransportConfig holds settings related to sending meter snapshots over the network.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`  // Serve JSON snapshots on /meter.
	WebSocketAddress string `yaml:"websocket_address"`  // Listen address of the WebSocket server.
	UDPEnabled       bool   `yaml:"udp_enabled"`        // Send binary snapshots over UDP.
	UDPTargetAddress string `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
}

// AlertConfig holds settings for over-level notifications.
type AlertConfig struct {
	OverDuration     time.Duration `yaml:"over_duration"`     // Time in the over band before alerting.
	RecoveryDuration time.Duration `yaml:"recovery_duration"` // Time below the over band before recovering.
	LogPath          string        `yaml:"log_path"`          // Append alerts to this file when set.
	Email            EmailConfig   `yaml:"email"`             // SMTP settings; skipped when incomplete.
}

// EmailConfig contains SMTP server settings for alert e-mails.
type EmailConfig struct {
	Host       string `yaml:"smtp_host"`
	Port       int    `yaml:"smtp_port"`
	FromName   string `yaml:"from_name"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Recipients string `yaml:"recipients"` // Comma separated.
}

// HasEmail reports whether enough SMTP settings are present to send mail.
func (a AlertConfig) HasEmail() bool {
	return a.Email.Host != "" && a.Email.Username != "" && a.Email.Recipients != ""
}

// HasLogPath reports whether alerts should be appended to a file.
func (a AlertConfig) HasLogPath() bool {
	return a.LogPath != ""
}

// Enabled reports whether any alert channel is configured.
func (a AlertConfig) Enabled() bool {
	return a.HasEmail() || a.HasLogPath()
}

// NewConfig returns a Config populated with the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			LowLatency:      DefaultLowLatency,
			NoiseFloorDB:    DefaultNoiseFloorDB,
		},
		Meter: MeterConfig{
			RefreshRate: DefaultRefreshRate,
			PeakFalloff: DefaultPeakFalloff,
			Height:      DefaultHeight,
		},
		Recording: RecordingConfig{
			Enabled:   DefaultRecordInputStream,
			OutputDir: DefaultOutputDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddress: DefaultWebSocketAddress,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTarget,
		},
		Alert: AlertConfig{
			OverDuration:     DefaultOverDuration,
			RecoveryDuration: DefaultRecoveryDuration,
			Email: EmailConfig{
				Port: DefaultSMTPPort,
			},
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is
// empty, it looks for DefaultConfigFile and falls back to built-in defaults when
// none is found. Environment overrides are applied last, then the result is
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that every setting is inside the supported range.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not recognised", c.LogLevel)
	}

	// Audio
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate must be between %d and %d, got %.0f",
			MinSampleRate, MaxSampleRate, c.Audio.SampleRate)
	}
	if !bitint.IsPowerOfTwo(c.Audio.FramesPerBuffer) || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer must be a power of two up to %d, got %d",
			MaxBufferFrames, c.Audio.FramesPerBuffer)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > MaxChannels {
		return fmt.Errorf("audio.input_channels must be between 1 and %d, got %d",
			MaxChannels, c.Audio.InputChannels)
	}
	if c.Audio.NoiseFloorDB > 0 {
		return fmt.Errorf("audio.noise_floor_db must not be positive, got %.1f", c.Audio.NoiseFloorDB)
	}

	// Meter
	if c.Meter.RefreshRate < 1 || c.Meter.RefreshRate > MaxRefreshRate {
		return fmt.Errorf("meter.refresh_rate_hz must be between 1 and %d, got %d",
			MaxRefreshRate, c.Meter.RefreshRate)
	}
	if !(c.Meter.Height > 0) {
		return fmt.Errorf("meter.height must be positive, got %.1f", c.Meter.Height)
	}

	// Recording
	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
	}

	// Transport
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		return fmt.Errorf("transport.websocket_address must be set when the WebSocket server is enabled")
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
	}

	// Alert
	if c.Alert.OverDuration < 0 || c.Alert.RecoveryDuration < 0 {
		return fmt.Errorf("alert durations must not be negative")
	}
	if c.Alert.HasEmail() && (c.Alert.Email.Port < 1 || c.Alert.Email.Port > 65535) {
		return fmt.Errorf("alert.email.smtp_port must be between 1 and 65535, got %d", c.Alert.Email.Port)
	}

	return nil
}

// RefreshInterval returns the period between display refresh ticks.
func (c *Config) RefreshInterval() time.Duration {
	if c.Meter.RefreshRate <= 0 {
		return time.Second / DefaultRefreshRate
	}
	return time.Second / time.Duration(c.Meter.RefreshRate)
}

// applyEnvOverrides lets deployments adjust a handful of settings without
// editing the file. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Infof("configuration: Overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_REFRESH_RATE
	if val, ok := os.LookupEnv("ENV_REFRESH_RATE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Meter.RefreshRate = iVal
			applog.Infof("configuration: Overriding meter.refresh_rate_hz from env: %d", iVal)
		}
	}

	// ENV_WS_{...} and ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			applog.Infof("configuration: Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Infof("configuration: Overriding transport.websocket_address from env: %s", val)
	}
	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}

	// ENV_SMTP_PASSWORD keeps credentials out of the config file.
	if val, ok := os.LookupEnv("ENV_SMTP_PASSWORD"); ok {
		c.Alert.Email.Password = val
	}
}
