// Package config holds the analyzer settings and loads them from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilomelo/audio-analysis/algorithms/melody"
	"github.com/kilomelo/audio-analysis/algorithms/peaks"
	"github.com/kilomelo/audio-analysis/algorithms/spectral"
	"github.com/kilomelo/audio-analysis/logging"
	"github.com/kilomelo/audio-analysis/source"
)

// Config is the root of the settings file.
type Config struct {
	Audio             AudioConfig    `yaml:"audio"`
	ReferencePitch    float64        `yaml:"reference_pitch"` // Hz for A4
	ComputeIntervalMS int            `yaml:"compute_interval_ms"`
	RenderIntervalMS  int            `yaml:"render_interval_ms"`
	Spectrum          SpectrumConfig `yaml:"spectrum"`
	Peaks             PeakConfig     `yaml:"peaks"`
	Melody            melody.Config  `yaml:"melody"`
	Log               LogConfig      `yaml:"log"`
	Server            ServerConfig   `yaml:"server"`
}

// AudioConfig holds the base audio parameters. Other sample rates scale the
// chunk and FFT sizes from these.
type AudioConfig struct {
	SampleRate int `yaml:"default_sample_rate"`
	ChunkSize  int `yaml:"chunk_size"`
	NFFT       int `yaml:"n_fft"`
}

// SpectrumConfig configures the spectrum estimate and its display curve.
type SpectrumConfig struct {
	spectral.EstimatorConfig `yaml:",inline"`
	SmoothedCurve            bool `yaml:"smoothed_curve"`
}

// PeakConfig configures peak detection and the marker layer.
type PeakConfig struct {
	peaks.Config    `yaml:",inline"`
	VolumeThreshold float64 `yaml:"volume_threshold"` // dB; quieter frames get no peaks
	AntishakeWindow float64 `yaml:"antishake_window"` // seconds of peaks averaged per note
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig configures the render-frame websocket endpoint. An empty
// address disables it.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			ChunkSize:  2048,
			NFFT:       2048,
		},
		ReferencePitch:    442,
		ComputeIntervalMS: 10,
		RenderIntervalMS:  16,
		Spectrum: SpectrumConfig{
			EstimatorConfig: spectral.DefaultEstimatorConfig(),
		},
		Peaks: PeakConfig{
			Config:          peaks.DefaultConfig(),
			VolumeThreshold: -50,
			AntishakeWindow: 0.1,
		},
		Melody: melody.DefaultConfig(),
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Path: "/ws"},
	}
}

// LoadFile reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate performs sanity checks on the configuration.
func (c Config) Validate() error {
	if err := c.BaseParams().Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if c.ReferencePitch <= 0 {
		return fmt.Errorf("reference_pitch must be > 0")
	}
	if c.ComputeIntervalMS <= 0 {
		return fmt.Errorf("compute_interval_ms must be > 0")
	}
	if c.RenderIntervalMS <= 0 {
		return fmt.Errorf("render_interval_ms must be > 0")
	}
	if err := c.Spectrum.Validate(); err != nil {
		return fmt.Errorf("spectrum: %w", err)
	}
	if err := c.Peaks.Validate(); err != nil {
		return fmt.Errorf("peaks: %w", err)
	}
	if err := c.Melody.Validate(); err != nil {
		return fmt.Errorf("melody: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Server.Addr != "" && !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /")
	}
	return nil
}

// Validate checks the peak policy and the layer settings.
func (p PeakConfig) Validate() error {
	if err := p.Config.Validate(); err != nil {
		return err
	}
	if p.AntishakeWindow < 0 {
		return fmt.Errorf("antishake_window must be >= 0")
	}
	return nil
}

// BaseParams returns the audio parameters the broadcaster starts from.
func (c Config) BaseParams() source.Params {
	return source.Params{
		SampleRate: c.Audio.SampleRate,
		ChunkSize:  c.Audio.ChunkSize,
		FFTSize:    c.Audio.NFFT,
	}
}

// ComputeInterval is the compute loop period.
func (c Config) ComputeInterval() time.Duration {
	return time.Duration(c.ComputeIntervalMS) * time.Millisecond
}

// RenderInterval is the render loop period.
func (c Config) RenderInterval() time.Duration {
	return time.Duration(c.RenderIntervalMS) * time.Millisecond
}
