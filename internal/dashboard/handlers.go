package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/config"
	"github.com/sergeknystautas/landed/internal/hosting"
	"github.com/sergeknystautas/landed/internal/inclusion"
	"github.com/sergeknystautas/landed/internal/version"
)

// handleHealthz handles GET /api/healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, contracts.HealthResponse{Status: "ok", Version: version.Version})
}

// handleConfig handles GET /api/config. Tokens are never included.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg, _ := s.current()
	resp := contracts.ConfigResponse{
		ConfigVersion: cfg.ConfigVersion,
		Projects:      s.projects.Projects(),
		Inclusion: contracts.Inclusion{
			MaxConcurrency:     cfg.GetMaxConcurrency(),
			RequestTimeoutMs:   cfg.GetRequestTimeoutMs(),
			SearchPageSize:     cfg.GetSearchPageSize(),
			MaxBranchesPerTerm: cfg.GetMaxBranchesPerTerm(),
			CacheTTLMs:         cfg.GetCacheTTLMs(),
			CacheSize:          cfg.GetCacheSize(),
		},
		Network: contracts.Network{
			BindAddress: cfg.GetBindAddress(),
			Port:        cfg.GetPort(),
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleProjects handles GET /api/projects.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, contracts.ProjectsResponse{Projects: s.projects.Projects()})
}

// handleBranches handles GET /api/projects/{name}/branches?search=term.
func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, engine := s.current()
	resp, err := engine.Branches(r.Context(), r.PathValue("name"), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}
	if resp.Branches == nil {
		resp.Branches = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInclusion handles POST /api/projects/{name}/inclusion.
func (s *Server) handleInclusion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req contracts.InclusionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	_, engine := s.current()
	resp, err := engine.Check(r.Context(), r.PathValue("name"), req.Branch, req.Targets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCompareMulti handles POST /api/compare/multi.
func (s *Server) handleCompareMulti(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req contracts.MultiCompareRequest
	if !decodeBody(w, r, &req) {
		return
	}

	_, engine := s.current()
	resp, err := engine.CompareMany(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, contracts.ErrorResponse{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Code:  "invalid_request",
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine and config errors to a status and error code.
func writeError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status >= 500 {
		fmt.Printf("[dashboard] request failed: %v\n", err)
	}
	writeJSON(w, status, contracts.ErrorResponse{Error: err.Error(), Code: code})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, config.ErrProjectNotFound):
		return http.StatusNotFound, "project_not_found"
	case errors.Is(err, config.ErrNoToken):
		return http.StatusBadRequest, "no_token"
	case errors.Is(err, inclusion.ErrEmptyBranch),
		errors.Is(err, inclusion.ErrNoTargets),
		errors.Is(err, inclusion.ErrNoProjects),
		errors.Is(err, inclusion.ErrNoTerms):
		return http.StatusBadRequest, "invalid_request"
	}

	kind := hosting.Kind(err)
	switch kind {
	case hosting.KindInvalidArgument:
		return http.StatusBadRequest, kind
	case hosting.KindTimeout:
		return http.StatusGatewayTimeout, kind
	case hosting.KindInternalError:
		return http.StatusInternalServerError, kind
	}
	// Remaining kinds are upstream hosting failures.
	return http.StatusBadGateway, kind
}
