package types

// EndpointKind identifies which delivery path an endpoint belongs to.
type EndpointKind string

// EndpointKind values enumerate the supported delivery paths.
const (
	KindCDN          EndpointKind = "CDN"
	KindMediaConnect EndpointKind = "MEDIACONNECT"
)

// VerdictLevel is the single outcome assigned to an endpoint or flow after
// reducing all of its signal classifications.
type VerdictLevel string

// VerdictLevel values enumerate the possible reduction outcomes.
const (
	VerdictPass    VerdictLevel = "PASS"
	VerdictWarning VerdictLevel = "WARNING"
	VerdictFail    VerdictLevel = "FAIL"
)

// LivenessState classifies media-sequence-number progression over a test window.
type LivenessState string

// LivenessState values enumerate the possible liveness classifications.
const (
	LivenessLive    LivenessState = "LIVE"
	LivenessFrozen  LivenessState = "FROZEN"
	LivenessLooping LivenessState = "LOOPING"
	LivenessUnknown LivenessState = "UNKNOWN"
)

// BitrateValidity classifies sampled bitrate values.
type BitrateValidity string

// BitrateValidity values enumerate the bitrate classifications.
const (
	BitrateValid   BitrateValidity = "VALID"
	BitrateInvalid BitrateValidity = "INVALID"
)

// FlowState classifies a MediaConnect flow's reported status.
type FlowState string

// FlowState values enumerate the flow status classifications.
const (
	FlowHealthy   FlowState = "HEALTHY"
	FlowDegraded  FlowState = "DEGRADED"
	FlowUnhealthy FlowState = "UNHEALTHY"
)

// ConnectionState classifies the most recent source connection datapoint.
type ConnectionState string

// ConnectionState values enumerate the connection classifications.
const (
	ConnectionConnected    ConnectionState = "CONNECTED"
	ConnectionDisconnected ConnectionState = "DISCONNECTED"
	ConnectionUnknown      ConnectionState = "UNKNOWN"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
	AlertSNS     AlertType = "sns"
)

// AlertLevel ranks the severity of a dispatched alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)
