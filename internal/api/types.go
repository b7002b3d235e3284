package api

import (
	"time"

	"github.com/mattjoyce/enginehost/internal/uci"
)

// CommandsRequest is the JSON body for POST /engines/{engine}/commands
type CommandsRequest struct {
	Commands []string `json:"commands"`
}

// CommandsResponse is returned once commands are queued
type CommandsResponse struct {
	Engine string   `json:"engine"`
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

// WeightsResponse is returned by PUT /engines/{engine}/weights
type WeightsResponse struct {
	Engine string `json:"engine"`
	Bytes  int    `json:"bytes"`
	Digest string `json:"digest"`
	Status string `json:"status"`
}

// ClassicalSearchRequest is the JSON body for POST /search/classical
type ClassicalSearchRequest struct {
	FEN        string `json:"fen"`
	Depth      int    `json:"depth,omitempty"`
	PVs        int    `json:"pvs,omitempty"`
	MoveTimeMS int    `json:"movetime_ms,omitempty"`
}

// ClassicalSearchResponse carries the final principal variations
type ClassicalSearchResponse struct {
	PVs        []uci.PV `json:"pvs"`
	DurationMs int64    `json:"duration_ms"`
}

// NeuralSearchRequest is the JSON body for POST /search/neural
type NeuralSearchRequest struct {
	FEN string `json:"fen"`
}

// NeuralSearchResponse carries the neural engine's move
type NeuralSearchResponse struct {
	BestMove   string `json:"bestmove"`
	DurationMs int64  `json:"duration_ms"`
}

// TimeoutResponse is returned when a search outlives max_sync_timeout
type TimeoutResponse struct {
	Status          string `json:"status"`
	TimeoutExceeded bool   `json:"timeout_exceeded"`
	Message         string `json:"message"`
}

// ShutdownResponse is returned by POST /shutdown
type ShutdownResponse struct {
	Status     string `json:"status"`
	QueueDepth int    `json:"queue_depth"`
}

// CommandEntry is one journal row in GET /commands
type CommandEntry struct {
	ID           string    `json:"id"`
	Engine       string    `json:"engine,omitempty"`
	Kind         string    `json:"kind"`
	Payload      string    `json:"payload,omitempty"`
	PayloadBytes int       `json:"payload_bytes"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMs   int64     `json:"duration_ms"`
}

// CommandListResponse is returned by GET /commands
type CommandListResponse struct {
	Commands []CommandEntry `json:"commands"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
	WorkerState   string `json:"worker_state"`
	Processed     int64  `json:"processed"`
	Ticks         int64  `json:"ticks"`
}
