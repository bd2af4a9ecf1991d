package server

import "solver/internal/orchestrator"

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SolveRequest is the body of /solve and /solve/stream, and the first
// websocket message.
type SolveRequest struct {
	Query string `json:"query" binding:"required"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

// eventDone closes every stream and carries the run report.
const eventDone = "done"

type doneMessage struct {
	Kind string `json:"kind"`
	orchestrator.Report
}

type errorMessage struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}
