package server

import "encoding/json"

// ExecuteRequest is the /execute envelope.
type ExecuteRequest struct {
	Tool       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters"`
}

// ExecuteResponse wraps a tool result.
type ExecuteResponse struct {
	Results any `json:"results"`
}

// ErrorResponse is the failure envelope for every non-200 answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse describes the running relay.
type StatusResponse struct {
	Status string   `json:"status"`
	Type   string   `json:"type"`
	Tools  []string `json:"tools"`
}
