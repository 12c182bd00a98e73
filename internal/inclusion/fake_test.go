package inclusion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sergeknystautas/landed/internal/hosting"
)

var testCreds = hosting.Credentials{Host: "gitlab.example.com", ProjectID: "42", Token: "secret"}

// fakeProber scripts Compare and SearchCommits per target branch and records
// how many probes were in flight at once.
type fakeProber struct {
	mu sync.Mutex

	compareFn func(from, to string) ([]hosting.Commit, error)
	searchFn  func(ref, term string, perPage int) ([]hosting.Commit, error)
	delayFn   func(target string) time.Duration

	compareCalls int
	searchCalls  int
	inFlight     int
	maxInFlight  int
}

func (f *fakeProber) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
}

func (f *fakeProber) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeProber) wait(ctx context.Context, target string) error {
	if f.delayFn == nil {
		return nil
	}
	d := f.delayFn(target)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeProber) Compare(ctx context.Context, creds hosting.Credentials, from, to string) ([]hosting.Commit, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	f.compareCalls++
	f.mu.Unlock()
	if err := f.wait(ctx, from); err != nil {
		return nil, err
	}
	if f.compareFn == nil {
		return []hosting.Commit{}, nil
	}
	return f.compareFn(from, to)
}

func (f *fakeProber) SearchCommits(ctx context.Context, creds hosting.Credentials, ref, term string, perPage int) ([]hosting.Commit, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	if f.searchFn == nil {
		return []hosting.Commit{}, nil
	}
	return f.searchFn(ref, term, perPage)
}

func (f *fakeProber) calls() (compare, search int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.compareCalls, f.searchCalls
}

func (f *fakeProber) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

type fakeLister struct {
	mu       sync.Mutex
	branches map[string][]string
	errs     map[string]error
	calls    int
}

func (l *fakeLister) ListBranches(ctx context.Context, creds hosting.Credentials, search string, perPage int) ([]hosting.Branch, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if err := l.errs[search]; err != nil {
		return nil, err
	}
	var out []hosting.Branch
	for _, name := range l.branches[search] {
		out = append(out, hosting.Branch{Name: name})
	}
	return out, nil
}

type fakeProvider map[string]hosting.Credentials

func (p fakeProvider) Lookup(project string) (hosting.Credentials, error) {
	creds, ok := p[project]
	if !ok {
		return hosting.Credentials{}, fmt.Errorf("project %q not found", project)
	}
	return creds, nil
}

func commits(n int) []hosting.Commit {
	out := make([]hosting.Commit, n)
	for i := range out {
		id := fmt.Sprintf("%040d", i+1)
		out[i] = hosting.Commit{ID: id, Title: fmt.Sprintf("change %d", i+1)}
	}
	return out
}
