// Package config handles loading and validation of streamcheck.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/streamops/streamcheck/pkg/types"
)

// FileName is the config file streamcheck looks for in the config directory.
const FileName = "streamcheck.yaml"

// Config mirrors streamcheck.yaml. Duration fields are strings in
// time.ParseDuration syntax and resolved through CheckConfig/FlowConfig.
type Config struct {
	API       APIConfig           `yaml:"api"`
	Secret    SecretConfig        `yaml:"secret"`
	Checks    ChecksConfig        `yaml:"checks"`
	Flows     FlowsConfig         `yaml:"flows"`
	FFmpeg    FFmpegConfig        `yaml:"ffmpeg"`
	Reports   ReportsConfig       `yaml:"reports"`
	Alerts    []types.AlertConfig `yaml:"alerts,omitempty"`
	Server    ServerConfig        `yaml:"server"`
	Watch     WatchConfig         `yaml:"watch"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
}

// APIConfig locates the upstream delivery metadata API.
type APIConfig struct {
	BaseURL   string `yaml:"baseUrl"`
	PageLimit int    `yaml:"pageLimit"`
	Timeout   string `yaml:"timeout,omitempty"`
}

// SecretConfig locates the bearer credential in Secrets Manager. A non-empty
// Token skips Secrets Manager entirely; CI and local runs set it via
// STREAMCHECK_API_TOKEN.
type SecretConfig struct {
	Name   string `yaml:"name"`
	Key    string `yaml:"key"`
	Region string `yaml:"region"`
	Token  string `yaml:"token,omitempty"`
}

// ChecksConfig holds the CDN probe tunables as written in YAML.
type ChecksConfig struct {
	Workers         int            `yaml:"workers"`
	Window          string         `yaml:"window,omitempty"`
	RequestTimeout  string         `yaml:"requestTimeout,omitempty"`
	EndpointTimeout string         `yaml:"endpointTimeout,omitempty"`
	Liveness        LivenessConfig `yaml:"liveness"`
	Audio           AudioConfig    `yaml:"audio"`
	Video           VideoConfig    `yaml:"video"`
}

// LivenessConfig tunes the media-sequence classifier.
type LivenessConfig struct {
	MinStallSamples int `yaml:"minStallSamples"`
}

// AudioConfig tunes the audio probes and classifiers.
type AudioConfig struct {
	SilenceNoiseDB     float64 `yaml:"silenceNoiseDb"`
	SilenceMinDuration string  `yaml:"silenceMinDuration,omitempty"`
	PeakMaxDB          float64 `yaml:"peakMaxDb"`
	DCOffsetMax        float64 `yaml:"dcOffsetMax"`
	RMSMaxDB           float64 `yaml:"rmsMaxDb"`
	RMSMinDB           float64 `yaml:"rmsMinDb"`
}

// VideoConfig tunes the video probes and classifiers.
type VideoConfig struct {
	BlackMinDuration    string  `yaml:"blackMinDuration,omitempty"`
	BlackPixelThreshold float64 `yaml:"blackPixelThreshold"`
	FreezeNoiseDB       float64 `yaml:"freezeNoiseDb"`
	FreezeMinDuration   string  `yaml:"freezeMinDuration,omitempty"`
}

// FlowsConfig holds the MediaConnect metric-window tunables as written in YAML.
// Region is the home region for tag-based flow discovery; per-flow API calls
// follow the region embedded in each flow ARN.
type FlowsConfig struct {
	Region              string  `yaml:"region"`
	Lookback            string  `yaml:"lookback,omitempty"`
	Period              string  `yaml:"period,omitempty"`
	BitrateCVMax        float64 `yaml:"bitrateCvMax"`
	BitrateDropFraction float64 `yaml:"bitrateDropFraction"`
}

// FFmpegConfig locates the external analysis binaries.
type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpegPath"`
	FFprobePath string `yaml:"ffprobePath"`
}

// ReportsConfig controls report output.
type ReportsConfig struct {
	Dir      string `yaml:"dir"`
	S3Bucket string `yaml:"s3Bucket,omitempty"`
	S3Prefix string `yaml:"s3Prefix,omitempty"`
}

// ServerConfig controls the serve command.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	APIKey         string `yaml:"apiKey,omitempty"`
	MaxRequestBody int64  `yaml:"maxRequestBody,omitempty"`
}

// WatchConfig controls the interval watcher in serve mode.
type WatchConfig struct {
	Interval string   `yaml:"interval,omitempty"`
	AMGIDs   []string `yaml:"amgids,omitempty"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Exporter string  `yaml:"exporter,omitempty"`
	Endpoint string  `yaml:"endpoint,omitempty"`
	Sampling float64 `yaml:"sampling"`
}

// Default returns the stock configuration used when streamcheck.yaml is absent.
func Default() Config {
	return Config{
		API: APIConfig{
			PageLimit: 10000,
			Timeout:   "15s",
		},
		Secret: SecretConfig{
			Name:   "bxp_token",
			Key:    "api_token",
			Region: "ap-south-1",
		},
		Checks: ChecksConfig{
			Workers:         types.DefaultWorkers,
			Window:          "120s",
			RequestTimeout:  "15s",
			EndpointTimeout: "180s",
			Liveness:        LivenessConfig{MinStallSamples: types.DefaultMinStallSamples},
			Audio: AudioConfig{
				SilenceNoiseDB:     -50,
				SilenceMinDuration: "2s",
				PeakMaxDB:          -0.1,
				DCOffsetMax:        0.1,
				RMSMaxDB:           -3,
				RMSMinDB:           -60,
			},
			Video: VideoConfig{
				BlackMinDuration:    "500ms",
				BlackPixelThreshold: 0.10,
				FreezeNoiseDB:       -60,
				FreezeMinDuration:   "2s",
			},
		},
		Flows: FlowsConfig{
			Region:              "us-east-1",
			Lookback:            "3h",
			Period:              "5m",
			BitrateCVMax:        0.5,
			BitrateDropFraction: 0.5,
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
		Reports: ReportsConfig{
			Dir:      "reports",
			S3Prefix: "streamcheck",
		},
		Server: ServerConfig{Addr: ":8080"},
		Telemetry: TelemetryConfig{
			Exporter: "grpc",
			Endpoint: "localhost:4317",
			Sampling: 1.0,
		},
	}
}

// Load reads streamcheck.yaml from the given directory over the defaults.
// A missing file is not an error; a malformed or invalid one is, and is
// surfaced before any network activity.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults + env only
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides lets deploy environments (CI, Lambda) override file
// settings without shipping a YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STREAMCHECK_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("STREAMCHECK_SECRET_NAME"); v != "" {
		cfg.Secret.Name = v
	}
	if v := os.Getenv("STREAMCHECK_SECRET_REGION"); v != "" {
		cfg.Secret.Region = v
	}
	if v := os.Getenv("STREAMCHECK_API_TOKEN"); v != "" {
		cfg.Secret.Token = v
	}
	if v := os.Getenv("STREAMCHECK_REPORTS_BUCKET"); v != "" {
		cfg.Reports.S3Bucket = v
	}
	if v := os.Getenv("STREAMCHECK_SNS_TOPIC"); v != "" {
		cfg.Alerts = append(cfg.Alerts, types.AlertConfig{Type: types.AlertSNS, TopicARN: v})
	}
}

// CheckConfig resolves the YAML checks section into typed thresholds.
func (c *Config) CheckConfig() (types.CheckConfig, error) {
	out := types.DefaultCheckConfig()
	out.Workers = c.Checks.Workers
	out.MinStallSamples = c.Checks.Liveness.MinStallSamples
	out.SilenceNoiseDB = c.Checks.Audio.SilenceNoiseDB
	out.PeakMaxDB = c.Checks.Audio.PeakMaxDB
	out.DCOffsetMax = c.Checks.Audio.DCOffsetMax
	out.RMSMaxDB = c.Checks.Audio.RMSMaxDB
	out.RMSMinDB = c.Checks.Audio.RMSMinDB
	out.BlackPixelThreshold = c.Checks.Video.BlackPixelThreshold
	out.FreezeNoiseDB = c.Checks.Video.FreezeNoiseDB

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"checks.window", c.Checks.Window, &out.Window},
		{"checks.requestTimeout", c.Checks.RequestTimeout, &out.RequestTimeout},
		{"checks.endpointTimeout", c.Checks.EndpointTimeout, &out.EndpointTimeout},
		{"checks.audio.silenceMinDuration", c.Checks.Audio.SilenceMinDuration, &out.SilenceMinDuration},
		{"checks.video.blackMinDuration", c.Checks.Video.BlackMinDuration, &out.BlackMinDuration},
		{"checks.video.freezeMinDuration", c.Checks.Video.FreezeMinDuration, &out.FreezeMinDuration},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return types.CheckConfig{}, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return out, nil
}

// FlowConfig resolves the YAML flows section into typed parameters.
func (c *Config) FlowConfig() (types.FlowCheckConfig, error) {
	out := types.DefaultFlowCheckConfig()
	out.BitrateCVMax = c.Flows.BitrateCVMax
	out.BitrateDropFraction = c.Flows.BitrateDropFraction

	if c.Flows.Lookback != "" {
		v, err := time.ParseDuration(c.Flows.Lookback)
		if err != nil {
			return types.FlowCheckConfig{}, fmt.Errorf("flows.lookback: %w", err)
		}
		out.Lookback = v
	}
	if c.Flows.Period != "" {
		v, err := time.ParseDuration(c.Flows.Period)
		if err != nil {
			return types.FlowCheckConfig{}, fmt.Errorf("flows.period: %w", err)
		}
		out.Period = v
	}
	return out, nil
}

// WatchInterval resolves the watcher interval; zero means disabled.
func (c *Config) WatchInterval() (time.Duration, error) {
	if c.Watch.Interval == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Watch.Interval)
}

// APITimeout resolves the delivery API request timeout.
func (c *Config) APITimeout() time.Duration {
	if c.API.Timeout == "" {
		return types.DefaultRequestTimeout
	}
	if d, err := time.ParseDuration(c.API.Timeout); err == nil && d > 0 {
		return d
	}
	return types.DefaultRequestTimeout
}

func validate(cfg *Config) error {
	checks, err := cfg.CheckConfig()
	if err != nil {
		return err
	}
	if checks.Workers <= 0 {
		return fmt.Errorf("checks.workers must be positive")
	}
	if checks.Window <= 0 {
		return fmt.Errorf("checks.window must be positive")
	}
	if checks.RequestTimeout <= 0 {
		return fmt.Errorf("checks.requestTimeout must be positive")
	}
	if checks.EndpointTimeout < checks.Window {
		return fmt.Errorf("checks.endpointTimeout must cover checks.window")
	}
	if checks.MinStallSamples < 2 {
		return fmt.Errorf("checks.liveness.minStallSamples must be at least 2")
	}
	if checks.SilenceMinDuration <= 0 || checks.BlackMinDuration <= 0 || checks.FreezeMinDuration <= 0 {
		return fmt.Errorf("detection durations must be positive")
	}
	if checks.BlackPixelThreshold < 0 || checks.BlackPixelThreshold > 1 {
		return fmt.Errorf("checks.video.blackPixelThreshold must be within [0,1]")
	}
	if checks.RMSMinDB >= checks.RMSMaxDB {
		return fmt.Errorf("checks.audio.rmsMinDb must be below rmsMaxDb")
	}

	flows, err := cfg.FlowConfig()
	if err != nil {
		return err
	}
	if flows.Lookback <= 0 || flows.Period <= 0 {
		return fmt.Errorf("flows.lookback and flows.period must be positive")
	}
	if flows.BitrateCVMax <= 0 {
		return fmt.Errorf("flows.bitrateCvMax must be positive")
	}
	if flows.BitrateDropFraction <= 0 || flows.BitrateDropFraction >= 1 {
		return fmt.Errorf("flows.bitrateDropFraction must be within (0,1)")
	}

	if cfg.API.PageLimit <= 0 {
		return fmt.Errorf("api.pageLimit must be positive")
	}
	if _, err := cfg.WatchInterval(); err != nil {
		return fmt.Errorf("watch.interval: %w", err)
	}
	if cfg.Telemetry.Sampling < 0 || cfg.Telemetry.Sampling > 1 {
		return fmt.Errorf("telemetry.sampling must be within [0,1]")
	}
	for _, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertWebhook:
			if a.URL == "" {
				return fmt.Errorf("alerts: webhook URL required")
			}
		case types.AlertFile:
			if a.Path == "" {
				return fmt.Errorf("alerts: file path required")
			}
		case types.AlertSNS:
			if a.TopicARN == "" {
				return fmt.Errorf("alerts: SNS topic ARN required")
			}
		default:
			return fmt.Errorf("alerts: unknown type %q", a.Type)
		}
	}
	return nil
}
