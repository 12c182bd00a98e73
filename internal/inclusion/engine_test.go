package inclusion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/hosting"
)

func TestEngineCheck(t *testing.T) {
	p := &fakeProber{
		compareFn: func(from, to string) ([]hosting.Commit, error) {
			if from == "release/2.0" {
				return commits(3), nil
			}
			return nil, nil
		},
		searchFn: func(ref, term string, perPage int) ([]hosting.Commit, error) {
			return commits(1), nil
		},
	}
	e := NewEngine(p, &fakeLister{}, fakeProvider{"app": testCreds}, Settings{})

	resp, err := e.Check(context.Background(), "app", "feature%2FPROJ-31301-fix", []string{"main", "release/2.0"})
	require.NoError(t, err)
	assert.Equal(t, "app", resp.Project)
	assert.Equal(t, "feature/PROJ-31301-fix", resp.Branch)
	assert.Equal(t, contracts.MethodCompareSearch, resp.Method)
	assert.Equal(t, "31301", resp.EvidenceTerm)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, contracts.ViaCompare, resp.Results[0].Via)
	assert.Equal(t, contracts.ViaSearch, resp.Results[1].Via)
	assert.Equal(t, 3, resp.Results[1].MissingCount)
}

func TestEngineCheck_Errors(t *testing.T) {
	p := &fakeProber{}
	e := NewEngine(p, &fakeLister{}, fakeProvider{"app": testCreds}, Settings{})
	ctx := context.Background()

	_, err := e.Check(ctx, "unknown", "feature/x", []string{"main"})
	assert.ErrorContains(t, err, "not found")

	_, err = e.Check(ctx, "app", "", []string{"main"})
	assert.ErrorIs(t, err, ErrEmptyBranch)

	_, err = e.Check(ctx, "app", "feature/x", nil)
	assert.ErrorIs(t, err, ErrNoTargets)

	compares, _ := p.calls()
	assert.Zero(t, compares)
}

func TestEngineCheckNotify(t *testing.T) {
	e := NewEngine(&fakeProber{}, &fakeLister{}, fakeProvider{"app": testCreds}, Settings{})

	seen := map[int]string{}
	resp, err := e.CheckNotify(context.Background(), "app", "feature/x", []string{"a", "b", "c"}, func(i int, r contracts.InclusionResult) {
		seen[i] = r.Target
	})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "a", 1: "b", 2: "c"}, seen)
	assert.Len(t, resp.Results, 3)
}

func TestEngine_CacheIsOptIn(t *testing.T) {
	p := &fakeProber{}
	off := NewEngine(p, &fakeLister{}, fakeProvider{"app": testCreds}, Settings{})
	off.Check(context.Background(), "app", "feature/x", []string{"main"})
	off.Check(context.Background(), "app", "feature/x", []string{"main"})
	compares, _ := p.calls()
	assert.Equal(t, 2, compares)
	assert.Zero(t, off.CacheLen())

	p = &fakeProber{}
	on := NewEngine(p, &fakeLister{}, fakeProvider{"app": testCreds}, Settings{CacheTTL: time.Minute})
	on.Check(context.Background(), "app", "feature/x", []string{"main"})
	on.Check(context.Background(), "app", "feature/x", []string{"main"})
	compares, _ = p.calls()
	assert.Equal(t, 1, compares)
	assert.Equal(t, 1, on.CacheLen())
}

func TestEngineBranches(t *testing.T) {
	l := &fakeLister{branches: map[string][]string{"PROJ": {"feature/PROJ-1", "feature/PROJ-2"}}}
	e := NewEngine(&fakeProber{}, l, fakeProvider{"app": testCreds}, Settings{})

	resp, err := e.Branches(context.Background(), "app", "PROJ")
	require.NoError(t, err)
	assert.Equal(t, contracts.BranchesResponse{Project: "app", Search: "PROJ", Branches: []string{"feature/PROJ-1", "feature/PROJ-2"}}, resp)

	_, err = e.Branches(context.Background(), "nope", "PROJ")
	assert.Error(t, err)
}

func TestEngineCheck_DecodesNamesOnce(t *testing.T) {
	var mu sync.Mutex
	var froms, tos []string
	p := &fakeProber{
		compareFn: func(from, to string) ([]hosting.Commit, error) {
			mu.Lock()
			froms = append(froms, from)
			tos = append(tos, to)
			mu.Unlock()
			return nil, nil
		},
	}
	e := NewEngine(p, &fakeLister{}, fakeProvider{"app": testCreds}, Settings{})

	// "%2541" decodes once to "%41"; a second decode would yield "A".
	resp, err := e.Check(context.Background(), "app", "feature%2541", []string{"rel%2541"})
	require.NoError(t, err)

	assert.Equal(t, "feature%41", resp.Branch)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "rel%41", resp.Results[0].Target)
	assert.Equal(t, []string{"rel%41"}, froms)
	assert.Equal(t, []string{"feature%41"}, tos)
}
