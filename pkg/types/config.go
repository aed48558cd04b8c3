package types

import "time"

// Default check parameters. Every threshold is overridable via streamcheck.yaml.
const (
	DefaultWorkers         = 5
	DefaultWindow          = 120 * time.Second
	DefaultRequestTimeout  = 15 * time.Second
	DefaultEndpointTimeout = 180 * time.Second
	DefaultMinStallSamples = 5
	DefaultLivenessPolls   = 15
)

// CheckConfig carries every tunable the CDN probes and classifiers consume.
// All fields are plain values so the structure can be passed by value into
// workers without synchronization.
type CheckConfig struct {
	Workers         int
	Window          time.Duration
	RequestTimeout  time.Duration
	EndpointTimeout time.Duration

	// Liveness: FROZEN requires the whole window to stall across at least
	// MinStallSamples readings; fewer repeats classify as LOOPING.
	MinStallSamples int

	// Audio thresholds.
	SilenceNoiseDB     float64
	SilenceMinDuration time.Duration
	PeakMaxDB          float64
	DCOffsetMax        float64
	RMSMaxDB           float64
	RMSMinDB           float64

	// Video thresholds.
	BlackMinDuration    time.Duration
	BlackPixelThreshold float64
	FreezeNoiseDB       float64
	FreezeMinDuration   time.Duration
}

// DefaultCheckConfig returns the stock thresholds used when streamcheck.yaml
// omits the checks section.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		Workers:             DefaultWorkers,
		Window:              DefaultWindow,
		RequestTimeout:      DefaultRequestTimeout,
		EndpointTimeout:     DefaultEndpointTimeout,
		MinStallSamples:     DefaultMinStallSamples,
		SilenceNoiseDB:      -50,
		SilenceMinDuration:  2 * time.Second,
		PeakMaxDB:           -0.1,
		DCOffsetMax:         0.1,
		RMSMaxDB:            -3,
		RMSMinDB:            -60,
		BlackMinDuration:    500 * time.Millisecond,
		BlackPixelThreshold: 0.10,
		FreezeNoiseDB:       -60,
		FreezeMinDuration:   2 * time.Second,
	}
}

// LivenessPollInterval is the manifest polling cadence for the configured
// window: a tenth of the window, never below two seconds.
func (c CheckConfig) LivenessPollInterval() time.Duration {
	interval := c.Window / 10
	if interval < 2*time.Second {
		interval = 2 * time.Second
	}
	return interval
}

// FlowCheckConfig carries the MediaConnect metric-window tunables.
type FlowCheckConfig struct {
	Lookback            time.Duration
	Period              time.Duration
	BitrateCVMax        float64
	BitrateDropFraction float64
}

// DefaultFlowCheckConfig returns the stock flow-metric parameters.
func DefaultFlowCheckConfig() FlowCheckConfig {
	return FlowCheckConfig{
		Lookback:            3 * time.Hour,
		Period:              5 * time.Minute,
		BitrateCVMax:        0.5,
		BitrateDropFraction: 0.5,
	}
}
