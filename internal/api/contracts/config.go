package contracts

// Project is a configured project as exposed over the API. Tokens never leave
// the daemon; HasToken only reports whether one is available.
type Project struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	ProjectID string `json:"project_id"`
	HasToken  bool   `json:"has_token"`
}

// ProjectsResponse is the response for GET /api/projects.
type ProjectsResponse struct {
	Projects []Project `json:"projects"`
}

// Inclusion holds the engine tuning knobs.
type Inclusion struct {
	MaxConcurrency     int `json:"max_concurrency"`
	RequestTimeoutMs   int `json:"request_timeout_ms"`
	SearchPageSize     int `json:"search_page_size"`
	MaxBranchesPerTerm int `json:"max_branches_per_term"`
	CacheTTLMs         int `json:"cache_ttl_ms"`
	CacheSize          int `json:"cache_size"`
}

// Network holds server binding settings.
type Network struct {
	BindAddress string `json:"bind_address"`
	Port        int    `json:"port"`
}

// ConfigResponse represents the API response for GET /api/config.
type ConfigResponse struct {
	ConfigVersion string    `json:"config_version,omitempty"`
	Projects      []Project `json:"projects"`
	Inclusion     Inclusion `json:"inclusion"`
	Network       Network   `json:"network"`
}
