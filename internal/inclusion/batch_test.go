package inclusion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/hosting"
)

func newTestBatch(p *fakeProber, l *fakeLister, s Settings) *Batch {
	provider := fakeProvider{
		"app":  testCreds,
		"docs": {Host: "gitlab.example.com", ProjectID: "group/docs", Token: "secret"},
	}
	return NewBatch(NewOrchestrator(p, s), l, provider, s)
}

func TestCompareMany_OrderAndDiscovery(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := &fakeProber{
		compareFn: func(from, to string) ([]hosting.Commit, error) {
			if to == "feature/PROJ-2000-b" {
				return commits(1), nil
			}
			return nil, nil
		},
		delayFn: func(target string) time.Duration {
			if target == "main" {
				return 20 * time.Millisecond
			}
			return 0
		},
	}
	l := &fakeLister{branches: map[string][]string{
		"PROJ-2000": {"feature/PROJ-2000-b", "main", "feature/PROJ-2000-a", "feature/PROJ-2000-a"},
		"login":     {"bugfix/login-flow"},
	}}
	b := newTestBatch(p, l, Settings{})

	resp, err := b.CompareMany(context.Background(), contracts.MultiCompareRequest{
		Projects: []string{"app", "docs"},
		Terms:    []string{"PROJ-2000", "login"},
		Targets:  []string{"main", "release/2.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.MethodCompareSearch, resp.Method)
	require.Len(t, resp.Reports, 4)

	want := [][2]string{{"app", "PROJ-2000"}, {"app", "login"}, {"docs", "PROJ-2000"}, {"docs", "login"}}
	for i, r := range resp.Reports {
		assert.Equal(t, want[i][0], r.Project)
		assert.Equal(t, want[i][1], r.Term)
		assert.Empty(t, r.Error)
	}

	first := resp.Reports[0]
	require.Len(t, first.Branches, 2, "targets and duplicates are not source branches")
	assert.Equal(t, "feature/PROJ-2000-a", first.Branches[0].Branch)
	assert.Equal(t, "feature/PROJ-2000-b", first.Branches[1].Branch)
	assert.Equal(t, "2000", first.Branches[0].EvidenceTerm)
	require.Len(t, first.Branches[0].Results, 2)
	assert.Equal(t, "main", first.Branches[0].Results[0].Target)
	assert.Equal(t, "release/2.0", first.Branches[0].Results[1].Target)
	assert.True(t, first.Branches[0].Results[0].Included)
	assert.False(t, first.Branches[1].Results[0].Included)

	assert.Equal(t, "login-flow", resp.Reports[1].Branches[0].EvidenceTerm)
}

func TestCompareMany_FailuresAreIsolated(t *testing.T) {
	p := &fakeProber{}
	l := &fakeLister{
		branches: map[string][]string{"ok": {"feature/ok"}},
		errs:     map[string]error{"broken": &hosting.StatusError{StatusCode: 500, Message: "boom"}},
	}
	b := newTestBatch(p, l, Settings{})

	resp, err := b.CompareMany(context.Background(), contracts.MultiCompareRequest{
		Projects: []string{"missing", "app"},
		Terms:    []string{"broken", "ok"},
		Targets:  []string{"main"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Reports, 4)

	assert.Contains(t, resp.Reports[0].Error, "not found")
	assert.Contains(t, resp.Reports[1].Error, "not found")
	assert.NotNil(t, resp.Reports[0].Branches)

	assert.Contains(t, resp.Reports[2].Error, "http_error")
	assert.Empty(t, resp.Reports[2].Branches)

	assert.Empty(t, resp.Reports[3].Error)
	require.Len(t, resp.Reports[3].Branches, 1)
	assert.True(t, resp.Reports[3].Branches[0].Results[0].Included)
}

func TestCompareMany_CapsBranchesPerTerm(t *testing.T) {
	p := &fakeProber{}
	l := &fakeLister{branches: map[string][]string{"x": {"x/5", "x/4", "x/3", "x/2", "x/1"}}}
	b := newTestBatch(p, l, Settings{MaxBranchesPerTerm: 3})

	resp, err := b.CompareMany(context.Background(), contracts.MultiCompareRequest{
		Projects: []string{"app"},
		Terms:    []string{"x"},
		Targets:  []string{"main"},
	})
	require.NoError(t, err)
	branches := resp.Reports[0].Branches
	require.Len(t, branches, 3)
	assert.Equal(t, "x/1", branches[0].Branch)
	assert.Equal(t, "x/3", branches[2].Branch)
}

func TestCompareMany_RespectsSharedCap(t *testing.T) {
	p := &fakeProber{delayFn: func(string) time.Duration { return 10 * time.Millisecond }}
	l := &fakeLister{branches: map[string][]string{
		"a": {"a/1", "a/2", "a/3"},
		"b": {"b/1", "b/2", "b/3"},
	}}
	b := newTestBatch(p, l, Settings{MaxConcurrency: 2})

	_, err := b.CompareMany(context.Background(), contracts.MultiCompareRequest{
		Projects: []string{"app", "docs"},
		Terms:    []string{"a", "b"},
		Targets:  []string{"main", "develop", "release/1.0"},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, p.peak(), 2)
}

func TestCompareMany_ValidatesInput(t *testing.T) {
	b := newTestBatch(&fakeProber{}, &fakeLister{}, Settings{})
	ctx := context.Background()

	_, err := b.CompareMany(ctx, contracts.MultiCompareRequest{Terms: []string{"x"}, Targets: []string{"main"}})
	assert.ErrorIs(t, err, ErrNoProjects)
	_, err = b.CompareMany(ctx, contracts.MultiCompareRequest{Projects: []string{"app"}, Targets: []string{"main"}})
	assert.ErrorIs(t, err, ErrNoTerms)
	_, err = b.CompareMany(ctx, contracts.MultiCompareRequest{Projects: []string{"app"}, Terms: []string{"x"}})
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestCompareMany_ListedNamesAreNotDecoded(t *testing.T) {
	var mu sync.Mutex
	var tos []string
	p := &fakeProber{
		compareFn: func(from, to string) ([]hosting.Commit, error) {
			mu.Lock()
			tos = append(tos, to)
			mu.Unlock()
			return nil, nil
		},
	}
	l := &fakeLister{branches: map[string][]string{"fix": {"fix%20space"}}}
	b := newTestBatch(p, l, Settings{})

	resp, err := b.CompareMany(context.Background(), contracts.MultiCompareRequest{
		Projects: []string{"app"},
		Terms:    []string{"fix"},
		Targets:  []string{"release%2F2.0"},
	})
	require.NoError(t, err)

	require.Len(t, resp.Reports, 1)
	require.Len(t, resp.Reports[0].Branches, 1)
	br := resp.Reports[0].Branches[0]
	assert.Equal(t, "fix%20space", br.Branch)
	assert.Equal(t, "fix%20space", br.EvidenceTerm)
	require.Len(t, br.Results, 1)
	assert.Equal(t, "release/2.0", br.Results[0].Target)
	assert.Equal(t, []string{"fix%20space"}, tos)
}
