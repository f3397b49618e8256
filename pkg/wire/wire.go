// Package wire defines the RPC payloads exchanged with the orchestrator.
// Structured documents travel as serialized JSON strings.
package wire

type ResourceSpecification struct {
	Type       string `json:"type"`
	APIVersion string `json:"apiVersion"`
	Properties string `json:"properties"`
	Config     string `json:"config,omitempty"`
}

type ResourceReference struct {
	Type        string `json:"type"`
	APIVersion  string `json:"apiVersion"`
	Identifiers string `json:"identifiers"`
	Config      string `json:"config,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
}

type Error struct {
	Code       string        `json:"code"`
	Target     string        `json:"target,omitempty"`
	Message    string        `json:"message"`
	InnerError string        `json:"innerError,omitempty"`
	Details    []ErrorDetail `json:"details,omitempty"`
}

type Response struct {
	Status      string `json:"status"`
	Type        string `json:"type"`
	APIVersion  string `json:"apiVersion"`
	Identifiers string `json:"identifiers"`
	Properties  string `json:"properties"`
	Error       *Error `json:"error,omitempty"`
}

type Empty struct{}
