// Package lambda provides shared types and initialization for Lambda handlers.
package lambda

// FlowCheckRequest is the input to the flowcheck Lambda. EventBridge
// schedules usually send an empty payload; the AMGIDs then come from the
// AMGIDS environment variable.
type FlowCheckRequest struct {
	AMGIDs []string `json:"amgids,omitempty"`
}

// FlowCheckResponse summarizes one flowcheck invocation.
type FlowCheckResponse struct {
	RunID    string `json:"runId"`
	Scanned  int    `json:"scanned"`
	Passed   int    `json:"passed"`
	Warnings int    `json:"warnings"`
	Failures int    `json:"failures"`
}
