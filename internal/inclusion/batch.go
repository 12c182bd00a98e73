package inclusion

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/hosting"
)

// BranchLister finds branches by name. *hosting.API satisfies it.
type BranchLister interface {
	ListBranches(ctx context.Context, creds hosting.Credentials, search string, perPage int) ([]hosting.Branch, error)
}

// CredentialsProvider resolves a project name to ready-to-use credentials.
type CredentialsProvider interface {
	Lookup(project string) (hosting.Credentials, error)
}

// Batch runs the multi-term compare: for every (project, search term) pair it
// discovers matching source branches and resolves each against the targets.
// Failures are isolated at each level: a project whose credentials cannot be
// found, a term whose branch listing fails, and a single target all fail
// alone.
type Batch struct {
	orchestrator *Orchestrator
	lister       BranchLister
	provider     CredentialsProvider
	settings     Settings
}

// NewBatch creates a multi-term batch runner.
func NewBatch(o *Orchestrator, lister BranchLister, provider CredentialsProvider, s Settings) *Batch {
	return &Batch{
		orchestrator: o,
		lister:       lister,
		provider:     provider,
		settings:     s.withDefaults(),
	}
}

type termJob struct {
	index   int
	project string
	term    string
	creds   hosting.Credentials
	err     error
}

// CompareMany runs the batch. Reports are ordered by project, then term, in
// request order; branches inside a report are sorted by name.
func (b *Batch) CompareMany(ctx context.Context, req contracts.MultiCompareRequest) (contracts.MultiCompareResponse, error) {
	projects := uniqueTrimmed(req.Projects)
	terms := uniqueTrimmed(req.Terms)
	targets := NormalizeTargets(req.Targets)
	switch {
	case len(projects) == 0:
		return contracts.MultiCompareResponse{}, ErrNoProjects
	case len(terms) == 0:
		return contracts.MultiCompareResponse{}, ErrNoTerms
	case len(targets) == 0:
		return contracts.MultiCompareResponse{}, ErrNoTargets
	}

	var jobs []termJob
	for _, project := range projects {
		creds, err := b.provider.Lookup(project)
		for _, term := range terms {
			jobs = append(jobs, termJob{index: len(jobs), project: project, term: term, creds: creds, err: err})
		}
	}

	reports := make([]contracts.TermReport, len(jobs))
	var g errgroup.Group
	g.SetLimit(b.orchestrator.MaxConcurrency())
	for _, job := range jobs {
		g.Go(func() error {
			reports[job.index] = b.runTerm(ctx, job, targets)
			return nil
		})
	}
	g.Wait()

	return contracts.MultiCompareResponse{Method: contracts.MethodCompareSearch, Reports: reports}, nil
}

func (b *Batch) runTerm(ctx context.Context, job termJob, targets []string) (report contracts.TermReport) {
	report = contracts.TermReport{Project: job.project, Term: job.term, Branches: []contracts.BranchReport{}}
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[inclusion] panic in term %q for %s: %v\n", job.term, job.project, r)
			report.Branches = []contracts.BranchReport{}
			report.Error = hosting.KindInternalError
		}
	}()

	if job.err != nil {
		report.Error = job.err.Error()
		return report
	}

	branches, err := b.findBranches(ctx, job.creds, job.term, targets)
	if err != nil {
		fmt.Printf("[inclusion] branch search %q in %s failed: %v\n", job.term, job.project, err)
		report.Error = fmt.Sprintf("%s: %v", hosting.Kind(err), err)
		return report
	}

	out := make([]contracts.BranchReport, len(branches))
	var g errgroup.Group
	for i, branch := range branches {
		g.Go(func() error {
			out[i] = contracts.BranchReport{Branch: branch, EvidenceTerm: DeriveEvidenceTerm(branch), Results: []contracts.InclusionResult{}}
			// Listed names are real branch names, not URL input.
			results, err := b.orchestrator.resolveNormalized(ctx, job.creds, branch, targets, nil)
			if err != nil {
				fmt.Printf("[inclusion] skipping %s in %s: %v\n", branch, job.project, err)
				return nil
			}
			out[i].Results = results
			return nil
		})
	}
	g.Wait()
	report.Branches = out
	return report
}

// findBranches lists branches matching term, without the targets themselves,
// sorted and capped at MaxBranchesPerTerm.
func (b *Batch) findBranches(ctx context.Context, creds hosting.Credentials, term string, targets []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.settings.RequestTimeout)
	defer cancel()

	// Branch listing is an outbound call too and counts against the cap.
	if err := b.orchestrator.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.orchestrator.sem.Release(1)

	found, err := b.lister.ListBranches(ctx, creds, term, hosting.MaxPerPage)
	if err != nil {
		return nil, err
	}

	isTarget := make(map[string]bool, len(targets))
	for _, t := range targets {
		isTarget[t] = true
	}
	names := make([]string, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, br := range found {
		if br.Name == "" || isTarget[br.Name] || seen[br.Name] {
			continue
		}
		seen[br.Name] = true
		names = append(names, br.Name)
	}
	sort.Strings(names)
	if len(names) > b.settings.MaxBranchesPerTerm {
		names = names[:b.settings.MaxBranchesPerTerm]
	}
	return names, nil
}
