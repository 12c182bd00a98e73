package main

import (
	"context"

	"github.com/sergeknystautas/landed/internal/api/contracts"
)

// MockDaemonClient is a mock implementation of DaemonClient for testing.
type MockDaemonClient struct {
	isRunning    bool
	config       *contracts.ConfigResponse
	projects     []contracts.Project
	inclusion    *contracts.InclusionResponse
	inclusionErr error
	stream       []contracts.InclusionResult
	streamOrder  []int
	multi        *contracts.MultiCompareResponse
	branches     *contracts.BranchesResponse

	lastTargets []string
	streamed    bool
}

func (m *MockDaemonClient) IsRunning() bool {
	return m.isRunning
}

func (m *MockDaemonClient) GetConfig() (*contracts.ConfigResponse, error) {
	return m.config, nil
}

func (m *MockDaemonClient) GetProjects() ([]contracts.Project, error) {
	return m.projects, nil
}

func (m *MockDaemonClient) Branches(ctx context.Context, project, search string) (*contracts.BranchesResponse, error) {
	return m.branches, nil
}

func (m *MockDaemonClient) CheckInclusion(ctx context.Context, project, branch string, targets []string) (*contracts.InclusionResponse, error) {
	m.lastTargets = targets
	return m.inclusion, m.inclusionErr
}

func (m *MockDaemonClient) StreamInclusion(ctx context.Context, project, branch string, targets []string, onResult func(int, contracts.InclusionResult)) ([]contracts.InclusionResult, error) {
	m.streamed = true
	m.lastTargets = targets
	for _, i := range m.streamOrder {
		onResult(i, m.stream[i])
	}
	return m.stream, nil
}

func (m *MockDaemonClient) CompareMany(ctx context.Context, req contracts.MultiCompareRequest) (*contracts.MultiCompareResponse, error) {
	return m.multi, nil
}

// fakeChecker stands in for the in-process engine.
type fakeChecker struct {
	resp  contracts.InclusionResponse
	multi contracts.MultiCompareResponse
	err   error

	lastMulti contracts.MultiCompareRequest
}

func (f *fakeChecker) Check(ctx context.Context, project, branch string, targets []string) (contracts.InclusionResponse, error) {
	return f.resp, f.err
}

func (f *fakeChecker) CompareMany(ctx context.Context, req contracts.MultiCompareRequest) (contracts.MultiCompareResponse, error) {
	f.lastMulti = req
	return f.multi, f.err
}

func localFrom(c *fakeChecker) func() (Checker, error) {
	return func() (Checker, error) { return c, nil }
}

func sampleResponse() contracts.InclusionResponse {
	return contracts.InclusionResponse{
		Project:      "app",
		Branch:       "feature/JIRA-1234",
		Method:       contracts.MethodCompareSearch,
		EvidenceTerm: "1234",
		Results: []contracts.InclusionResult{
			{Target: "main", Included: true, Via: contracts.ViaCompare, Confidence: contracts.ConfidenceHigh, MissingSample: []contracts.CommitSample{}},
			{Target: "release/2.0", Included: true, Via: contracts.ViaSearch, Confidence: contracts.ConfidenceLow, EvidenceTerm: "1234", EvidenceCount: 2, MissingCount: 1,
				MissingSample: []contracts.CommitSample{{CommitID: "abcdef0123", ShortID: "abcdef01", Title: "fix JIRA-1234"}}},
		},
	}
}
