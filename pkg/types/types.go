// Package types defines the public domain types for the streamcheck validation engine.
package types

import "time"

// DeliveryEndpoint is one validated delivery target: either a CDN HLS stream
// or a MediaConnect flow. Endpoints are immutable once constructed; they are
// created by the delivery client and consumed read-only by the engine.
type DeliveryEndpoint struct {
	ID          string       `yaml:"id" json:"id"`
	AMGID       string       `yaml:"amgid,omitempty" json:"amgid,omitempty"`
	Kind        EndpointKind `yaml:"kind" json:"kind"`
	URL         string       `yaml:"url,omitempty" json:"url,omitempty"`
	FlowARN     string       `yaml:"flowArn,omitempty" json:"flowArn,omitempty"`
	Platform    string       `yaml:"platform,omitempty" json:"platform,omitempty"`
	Environment string       `yaml:"environment,omitempty" json:"environment,omitempty"`
	FeedCode    string       `yaml:"feedCode,omitempty" json:"feedCode,omitempty"`
}

// Target returns the probe target for the endpoint: the stream URL for CDN
// endpoints, the flow ARN for MediaConnect endpoints.
func (e DeliveryEndpoint) Target() string {
	if e.Kind == KindMediaConnect {
		return e.FlowARN
	}
	return e.URL
}

// LivenessSample is one timestamped media-sequence-number reading. A failed
// read carries its error text and no usable sequence.
type LivenessSample struct {
	At       time.Time `json:"at"`
	Sequence int64     `json:"sequence"`
	Err      string    `json:"err,omitempty"`
}

// Span is a contiguous detection interval, as offsets into the test window.
type Span struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Duration returns the length of the span.
func (s Span) Duration() time.Duration { return s.End - s.Start }

// AudioStats aggregates the audio measurements for one test window.
type AudioStats struct {
	SilenceSpans []Span  `json:"silenceSpans,omitempty"`
	PeakDB       float64 `json:"peakDb"`
	RMSDB        float64 `json:"rmsDb"`
	DCOffset     float64 `json:"dcOffset"`
	// HasAudio is false when the stream declares no audio rendition at all.
	HasAudio bool `json:"hasAudio"`
}

// VideoStats aggregates the video measurements for one test window.
type VideoStats struct {
	BlackSpans  []Span `json:"blackSpans,omitempty"`
	FreezeSpans []Span `json:"freezeSpans,omitempty"`
}

// BitrateSample is one declared stream bitrate reading. Parsed is false when
// the tool reported a value that could not be interpreted as a number.
type BitrateSample struct {
	Stream        int   `json:"stream"`
	BitsPerSecond int64 `json:"bitsPerSecond"`
	Parsed        bool  `json:"parsed"`
}

// Signals holds the discrete classification of every probe dimension for one
// endpoint. Every field is always one of its enumerated values; missing data
// maps to UNKNOWN or false for that dimension, never to an absent field.
type Signals struct {
	Liveness     LivenessState   `json:"liveness"`
	Silence      bool            `json:"silence"`
	Distortion   bool            `json:"distortion"`
	BlackFrames  bool            `json:"blackFrames"`
	FrozenFrames bool            `json:"frozenFrames"`
	Bitrate      BitrateValidity `json:"bitrate"`
	// Notes carries per-dimension error annotations, e.g. a probe that could
	// not produce samples. Notes never change a classification on their own.
	Notes []string `json:"notes,omitempty"`
}

// EndpointVerdict is the terminal outcome for one endpoint in one run.
// Created once, never mutated.
type EndpointVerdict struct {
	Endpoint  DeliveryEndpoint `json:"endpoint"`
	Level     VerdictLevel     `json:"level"`
	Signals   Signals          `json:"signals"`
	Error     string           `json:"error,omitempty"`
	CheckedAt time.Time        `json:"checkedAt"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Entitlement is one MediaConnect entitlement's name and reported state.
type Entitlement struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// FlowHealthRecord is the terminal outcome for one MediaConnect flow in one
// run. Same lifecycle as EndpointVerdict.
type FlowHealthRecord struct {
	FlowARN             string          `json:"flowArn"`
	Name                string          `json:"name,omitempty"`
	Region              string          `json:"region"`
	Status              string          `json:"status"`
	State               FlowState       `json:"state"`
	Entitlements        []Entitlement   `json:"entitlements,omitempty"`
	Outputs             int             `json:"outputs"`
	OutputsComplete     bool            `json:"outputsComplete"`
	AvgBitrate          float64         `json:"avgBitrate"`
	BitrateStable       bool            `json:"bitrateStable"`
	RecoveredPackets    int64           `json:"recoveredPackets"`
	NotRecoveredPackets int64           `json:"notRecoveredPackets"`
	Connection          ConnectionState `json:"connection"`
	Verdict             VerdictLevel    `json:"verdict"`
	Error               string          `json:"error,omitempty"`
}

// ValidationRequest selects what a single validation run covers. CDNOnly and
// FlowsOnly are mutually exclusive.
type ValidationRequest struct {
	AMGID       string `json:"amgid"`
	Platform    string `json:"platform,omitempty"`
	Environment string `json:"environment,omitempty"`
	HostURL     string `json:"host_url,omitempty"`
	FeedCode    string `json:"feed_code,omitempty"`
	CDNOnly     bool   `json:"cdn_only,omitempty"`
	FlowsOnly   bool   `json:"flows_only,omitempty"`
}

// Report is the full outcome of one validation run, handed to the report
// writers. Endpoints preserve input order.
type Report struct {
	RunID     string             `json:"runId"`
	AMGID     string             `json:"amgid"`
	StartedAt time.Time          `json:"startedAt"`
	Duration  time.Duration      `json:"duration"`
	Endpoints []EndpointVerdict  `json:"endpoints,omitempty"`
	Flows     []FlowHealthRecord `json:"flows,omitempty"`
}

// Summary counts verdicts across endpoints and flows.
type Summary struct {
	Endpoints int `json:"endpoints"`
	Flows     int `json:"flows"`
	Pass      int `json:"pass"`
	Warnings  int `json:"warnings"`
	Failures  int `json:"failures"`
}

// Summarize tallies verdict levels across the report.
func (r Report) Summarize() Summary {
	s := Summary{Endpoints: len(r.Endpoints), Flows: len(r.Flows)}
	count := func(v VerdictLevel) {
		switch v {
		case VerdictPass:
			s.Pass++
		case VerdictWarning:
			s.Warnings++
		case VerdictFail:
			s.Failures++
		}
	}
	for _, e := range r.Endpoints {
		count(e.Level)
	}
	for _, f := range r.Flows {
		count(f.Verdict)
	}
	return s
}

// HasFailures reports whether any endpoint or flow reduced to FAIL.
func (r Report) HasFailures() bool {
	for _, e := range r.Endpoints {
		if e.Level == VerdictFail {
			return true
		}
	}
	for _, f := range r.Flows {
		if f.Verdict == VerdictFail {
			return true
		}
	}
	return false
}

// AlertConfig configures one alert sink.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN string    `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
}

// Alert represents a degradation event to be dispatched to sinks.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	AMGID     string                 `json:"amgid,omitempty"`
	Target    string                 `json:"target,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
