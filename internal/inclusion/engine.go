package inclusion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/hosting"
)

// Engine is the entry point used by the API layer and the CLI. It resolves the
// project's credentials once, up front, and then hands off to the
// orchestrator; callers only supply names.
type Engine struct {
	provider     CredentialsProvider
	lister       BranchLister
	orchestrator *Orchestrator
	batch        *Batch
	cache        *CachingProber
	settings     Settings
}

// NewEngine wires an engine. When s.CacheTTL is positive, compare and search
// outcomes are cached in front of prober.
func NewEngine(prober Prober, lister BranchLister, provider CredentialsProvider, s Settings) *Engine {
	s = s.withDefaults()
	e := &Engine{provider: provider, lister: lister, settings: s}
	if s.CacheTTL > 0 {
		e.cache = NewCachingProber(prober, s.CacheSize, s.CacheTTL, s.RequestTimeout)
		prober = e.cache
	}
	e.orchestrator = NewOrchestrator(prober, s)
	e.batch = NewBatch(e.orchestrator, lister, provider, s)
	return e
}

// NewEngineFromAPI wires an engine whose probes and branch listing go to api.
func NewEngineFromAPI(api *hosting.API, provider CredentialsProvider, s Settings) *Engine {
	return NewEngine(api, api, provider, s)
}

// Settings returns the effective settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// CacheLen returns the number of cached probe outcomes; 0 when caching is off.
func (e *Engine) CacheLen() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

// Check resolves branch against targets in project.
func (e *Engine) Check(ctx context.Context, project, branch string, targets []string) (contracts.InclusionResponse, error) {
	return e.CheckNotify(ctx, project, branch, targets, nil)
}

// CheckNotify is Check with a per-target completion callback (see
// Orchestrator.ResolveAllNotify).
func (e *Engine) CheckNotify(ctx context.Context, project, branch string, targets []string, notify func(int, contracts.InclusionResult)) (contracts.InclusionResponse, error) {
	source, err := NormalizeBranch(branch)
	if err != nil {
		return contracts.InclusionResponse{}, err
	}
	targets = NormalizeTargets(targets)
	if len(targets) == 0 {
		return contracts.InclusionResponse{}, ErrNoTargets
	}
	creds, err := e.provider.Lookup(project)
	if err != nil {
		return contracts.InclusionResponse{}, err
	}

	batchID := uuid.New().String()[:8]
	term := DeriveEvidenceTerm(source)
	start := time.Now()
	fmt.Printf("[inclusion] %s: %s in %s against %d target(s), evidence term %q\n", batchID, source, project, len(targets), term)

	results, err := e.orchestrator.resolveNormalized(ctx, creds, source, targets, notify)
	if err != nil {
		return contracts.InclusionResponse{}, err
	}

	included := 0
	for _, r := range results {
		if r.Included {
			included++
		}
	}
	fmt.Printf("[inclusion] %s: included in %d/%d target(s) (%s)\n", batchID, included, len(results), time.Since(start).Round(time.Millisecond))

	return contracts.InclusionResponse{
		Project:      project,
		Branch:       source,
		Method:       contracts.MethodCompareSearch,
		EvidenceTerm: term,
		Results:      results,
	}, nil
}

// CompareMany runs the multi-term compare.
func (e *Engine) CompareMany(ctx context.Context, req contracts.MultiCompareRequest) (contracts.MultiCompareResponse, error) {
	return e.batch.CompareMany(ctx, req)
}

// Branches lists branch names in project matching search.
func (e *Engine) Branches(ctx context.Context, project, search string) (contracts.BranchesResponse, error) {
	creds, err := e.provider.Lookup(project)
	if err != nil {
		return contracts.BranchesResponse{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.settings.RequestTimeout)
	defer cancel()

	found, err := e.lister.ListBranches(ctx, creds, search, hosting.MaxPerPage)
	if err != nil {
		return contracts.BranchesResponse{}, err
	}
	names := make([]string, 0, len(found))
	for _, b := range found {
		names = append(names, b.Name)
	}
	return contracts.BranchesResponse{Project: project, Search: search, Branches: names}, nil
}
