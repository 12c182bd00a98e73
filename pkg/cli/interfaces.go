package cli

import (
	"context"

	"github.com/sergeknystautas/landed/internal/api/contracts"
)

// DaemonClient is the interface for communicating with the landed daemon.
type DaemonClient interface {
	// IsRunning checks if the daemon is running.
	IsRunning() bool

	// GetConfig fetches the daemon configuration.
	GetConfig() (*contracts.ConfigResponse, error)

	// GetProjects fetches the configured projects.
	GetProjects() ([]contracts.Project, error)

	// Branches lists branches in a project matching search.
	Branches(ctx context.Context, project, search string) (*contracts.BranchesResponse, error)

	// CheckInclusion resolves a branch against targets in one request.
	CheckInclusion(ctx context.Context, project, branch string, targets []string) (*contracts.InclusionResponse, error)

	// StreamInclusion resolves a branch over the websocket, calling onResult
	// as each target completes.
	StreamInclusion(ctx context.Context, project, branch string, targets []string, onResult func(int, contracts.InclusionResult)) ([]contracts.InclusionResult, error)

	// CompareMany runs a multi-term compare.
	CompareMany(ctx context.Context, req contracts.MultiCompareRequest) (*contracts.MultiCompareResponse, error)
}
