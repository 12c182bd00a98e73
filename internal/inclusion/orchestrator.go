package inclusion

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/hosting"
)

// Orchestrator fans the resolver out across target branches. Every target is
// an isolated unit: its failure or panic only affects its own result.
//
// The concurrency cap is shared: batches running at the same time on one
// Orchestrator (including nested multi-term batches) together never exceed
// MaxConcurrency in-flight resolutions.
type Orchestrator struct {
	resolver *Resolver
	limit    int
	sem      *semaphore.Weighted
}

// NewOrchestrator creates an orchestrator resolving through p.
func NewOrchestrator(p Prober, s Settings) *Orchestrator {
	s = s.withDefaults()
	return &Orchestrator{
		resolver: NewResolver(p, s),
		limit:    s.MaxConcurrency,
		sem:      semaphore.NewWeighted(int64(s.MaxConcurrency)),
	}
}

// MaxConcurrency returns the configured cap.
func (o *Orchestrator) MaxConcurrency() int {
	return o.limit
}

// ResolveAll resolves source against every target. The result slice follows
// the order of the normalized, de-duplicated targets regardless of which
// probe finishes first. The only errors are input-validation errors,
// returned before any request is made.
func (o *Orchestrator) ResolveAll(ctx context.Context, creds hosting.Credentials, source string, targets []string) ([]contracts.InclusionResult, error) {
	return o.ResolveAllNotify(ctx, creds, source, targets, nil)
}

// ResolveAllNotify is ResolveAll with a callback invoked as each target
// completes, in completion order. Calls to notify are serialized.
func (o *Orchestrator) ResolveAllNotify(ctx context.Context, creds hosting.Credentials, source string, targets []string, notify func(index int, result contracts.InclusionResult)) ([]contracts.InclusionResult, error) {
	source, err := NormalizeBranch(source)
	if err != nil {
		return nil, err
	}
	return o.resolveNormalized(ctx, creds, source, NormalizeTargets(targets), notify)
}

// resolveNormalized resolves names that are already in their final form:
// decoded once at a boundary, or taken verbatim from the hosting API. It
// never decodes.
func (o *Orchestrator) resolveNormalized(ctx context.Context, creds hosting.Credentials, source string, targets []string, notify func(int, contracts.InclusionResult)) ([]contracts.InclusionResult, error) {
	if source == "" {
		return nil, ErrEmptyBranch
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	return o.run(ctx, creds, source, DeriveEvidenceTerm(source), targets, notify), nil
}

func (o *Orchestrator) run(ctx context.Context, creds hosting.Credentials, source, term string, targets []string, notify func(int, contracts.InclusionResult)) []contracts.InclusionResult {
	results := make([]contracts.InclusionResult, len(targets))
	var notifyMu sync.Mutex

	// A plain Group: one unit's failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(o.limit)
	for i, target := range targets {
		g.Go(func() error {
			res := o.resolveOne(ctx, creds, target, source, term)
			results[i] = res
			if notify != nil {
				notifyMu.Lock()
				notify(i, res)
				notifyMu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// resolveOne runs one unit under the shared semaphore and converts a panic
// into a failed result for this target only.
func (o *Orchestrator) resolveOne(ctx context.Context, creds hosting.Credentials, target, source, term string) (res contracts.InclusionResult) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		res = notIncluded(target)
		res.Diagnostic = diagnostic("compare", err)
		return res
	}
	defer o.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[inclusion] panic resolving %s: %v\n", target, r)
			res = notIncluded(target)
			res.Diagnostic = "resolve:" + hosting.KindInternalError
		}
	}()
	return o.resolver.Resolve(ctx, creds, target, source, term)
}
