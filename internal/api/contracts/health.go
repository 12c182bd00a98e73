package contracts

// HealthResponse is the response for GET /api/healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Code is a stable machine-readable reason, e.g. "project_not_found".
	Code string `json:"code,omitempty"`
}
