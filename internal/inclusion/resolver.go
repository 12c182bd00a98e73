package inclusion

import (
	"context"
	"time"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/hosting"
)

// Prober is the pair of hosting capabilities the resolver composes.
// *hosting.API satisfies it.
type Prober interface {
	// Compare returns the commits on `to` that are not reachable from `from`.
	Compare(ctx context.Context, creds hosting.Credentials, from, to string) ([]hosting.Commit, error)
	// SearchCommits returns commits on ref whose message matches term.
	SearchCommits(ctx context.Context, creds hosting.Credentials, ref, term string, perPage int) ([]hosting.Commit, error)
}

// Resolver answers the inclusion question for a single target. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	prober         Prober
	requestTimeout time.Duration
	searchPageSize int
}

// NewResolver creates a resolver over p.
func NewResolver(p Prober, s Settings) *Resolver {
	s = s.withDefaults()
	return &Resolver{
		prober:         p,
		requestTimeout: s.RequestTimeout,
		searchPageSize: s.SearchPageSize,
	}
}

// Resolve runs the compare probe and, when ancestry does not already show the
// source inside target, the cherry-pick search probe. Any probe failure
// yields included=false, via=none; a failure is never reported as included.
func (r *Resolver) Resolve(ctx context.Context, creds hosting.Credentials, target, source, term string) contracts.InclusionResult {
	res := notIncluded(target)

	ahead, err := r.compare(ctx, creds, target, source)
	if err != nil {
		res.Diagnostic = diagnostic("compare", err)
		return res
	}
	if len(ahead) == 0 {
		res.Included = true
		res.Via = contracts.ViaCompare
		res.Confidence = contracts.ConfidenceHigh
		return res
	}

	res.MissingCount = len(ahead)
	res.MissingSample = sampleCommits(ahead)
	if term == "" {
		return res
	}

	hits, err := r.search(ctx, creds, target, term)
	if err != nil {
		res.Diagnostic = diagnostic("search", err)
		return res
	}
	if len(hits) == 0 {
		return res
	}

	res.Included = true
	res.Via = contracts.ViaSearch
	res.Confidence = contracts.ConfidenceLow
	res.EvidenceTerm = term
	res.EvidenceCount = len(hits)
	return res
}

func (r *Resolver) compare(ctx context.Context, creds hosting.Credentials, target, source string) ([]hosting.Commit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()
	return r.prober.Compare(ctx, creds, target, source)
}

func (r *Resolver) search(ctx context.Context, creds hosting.Credentials, target, term string) ([]hosting.Commit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()
	return r.prober.SearchCommits(ctx, creds, target, term, r.searchPageSize)
}

func notIncluded(target string) contracts.InclusionResult {
	return contracts.InclusionResult{
		Target:        target,
		Via:           contracts.ViaNone,
		Confidence:    contracts.ConfidenceNone,
		MissingSample: []contracts.CommitSample{},
	}
}

// diagnostic is "<phase>:<kind>", e.g. "compare:timeout".
func diagnostic(phase string, err error) string {
	return phase + ":" + hosting.Kind(err)
}

func sampleCommits(commits []hosting.Commit) []contracts.CommitSample {
	n := len(commits)
	if n > MaxMissingSample {
		n = MaxMissingSample
	}
	out := make([]contracts.CommitSample, 0, n)
	for _, c := range commits[:n] {
		short := c.ShortID
		if short == "" && len(c.ID) >= 8 {
			short = c.ID[:8]
		}
		out = append(out, contracts.CommitSample{CommitID: c.ID, ShortID: short, Title: c.Title})
	}
	return out
}
