package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"levelmeter/internal/config"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Command != CommandMeter {
		t.Errorf("Command = %q, want meter", cfg.Command)
	}
	if cfg.Audio.InputChannels != config.DefaultChannels || cfg.Audio.FramesPerBuffer != config.DefaultFramesPerBuffer {
		t.Errorf("audio defaults not kept: %+v", cfg.Audio)
	}
	if !cfg.Meter.PeakFalloff || cfg.Headless || cfg.Pick {
		t.Errorf("unexpected flags: falloff=%v headless=%v pick=%v", cfg.Meter.PeakFalloff, cfg.Headless, cfg.Pick)
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := parse([]string{
		"--channels", "4",
		"--frames-per-buffer", "300",
		"--fps", "60",
		"--no-peak-falloff",
		"--headless",
		"-r", "-o", "take.wav",
		"-v",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Audio.InputChannels != 4 {
		t.Errorf("InputChannels = %d, want 4", cfg.Audio.InputChannels)
	}
	if cfg.Audio.FramesPerBuffer != 512 {
		t.Errorf("FramesPerBuffer = %d, want 512 after rounding", cfg.Audio.FramesPerBuffer)
	}
	if cfg.Meter.RefreshRate != 60 || cfg.Meter.PeakFalloff {
		t.Errorf("meter flags not applied: %+v", cfg.Meter)
	}
	if !cfg.Headless || !cfg.Recording.Enabled || cfg.OutputFile != "take.wav" {
		t.Errorf("runtime flags not applied: headless=%v record=%v output=%q",
			cfg.Headless, cfg.Recording.Enabled, cfg.OutputFile)
	}
	if !cfg.Verbose || cfg.LogLevel != "debug" {
		t.Errorf("verbose not applied: %v %s", cfg.Verbose, cfg.LogLevel)
	}
}

func TestParseCommands(t *testing.T) {
	cfg, err := parse([]string{"list"})
	if err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if cfg.Command != CommandList {
		t.Errorf("Command = %q, want list", cfg.Command)
	}

	cfg, err = parse([]string{"replay", "take.wav", "--fast", "--headless"})
	if err != nil {
		t.Fatalf("parse replay: %v", err)
	}
	if cfg.Command != CommandReplay || cfg.ReplayFile != "take.wav" || !cfg.ReplayFast || !cfg.Headless {
		t.Errorf("replay not parsed: %+v", cfg)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		substr string
	}{
		{"Replay without file", []string{"replay"}, "arg"},
		{"Unexpected argument", []string{"extra"}, "unknown command"},
		{"No channels", []string{"--channels", "0"}, "input_channels"},
		{"Unknown flag", []string{"--bogus"}, "unknown flag"},
		{"Missing config", []string{"--config", "missing.yaml"}, "config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error = %v, want substring %q", err, tt.substr)
			}
			if cfg != nil {
				t.Errorf("expected nil config on error, got %+v", cfg)
			}
		})
	}
}

func TestParseFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levelmeter.yaml")
	content := "audio:\n  input_channels: 6\n  sample_rate: 44100\nmeter:\n  refresh_rate_hz: 25\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parse([]string{"--config", path, "--channels", "3"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Audio.InputChannels != 3 {
		t.Errorf("flag should win over file: channels = %d", cfg.Audio.InputChannels)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Meter.RefreshRate != 25 {
		t.Errorf("unset flags should keep file values: rate=%v fps=%d", cfg.Audio.SampleRate, cfg.Meter.RefreshRate)
	}
}

func TestParseHelp(t *testing.T) {
	cfg, err := parse([]string{"--help"})
	if err != nil {
		t.Fatalf("parse --help: %v", err)
	}
	if cfg != nil {
		t.Errorf("help should not produce a config, got %+v", cfg)
	}
}
