package models

// RunRequest is the payload for POST /api/v1/runs.
type RunRequest struct {
	// Labels restricts the run to the named configurations.
	// Empty means every configured target.
	Labels []string `json:"labels,omitempty"`
}

// RunResponse is the immediate response for POST /api/v1/runs.
type RunResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// Run job states.
const (
	RunProcessing = "processing"
	RunCompleted  = "completed"
)

// RunStatusResponse is the response for GET /api/v1/runs/:id.
type RunStatusResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Total  int          `json:"total"`
	Report *RunReport   `json:"report,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// RunJob tracks an in-progress or finished run started over the API.
type RunJob struct {
	ID        string
	Status    string
	Total     int
	Report    *RunReport
	CreatedAt int64 // unix timestamp
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"` // "healthy" or "busy"
	Uptime      string `json:"uptime"`
	ActiveRuns  int    `json:"active_runs"`
	ActiveTasks int    `json:"active_tasks"`
	MaxWorkers  int    `json:"max_workers"`
	Version     string `json:"version"`
}
