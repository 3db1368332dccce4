package api

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	LiveWorkers   int    `json:"live_workers"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	LiveWorkers  int    `json:"live_workers"`
	TrackedIDs   int    `json:"tracked_ids"`
	Processed    uint64 `json:"processed"`
	ShuttingDown bool   `json:"shutting_down"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}
