package contracts

// Via records which probe established (or failed to establish) inclusion.
type Via string

const (
	ViaCompare Via = "compare"
	ViaSearch  Via = "search"
	ViaNone    Via = "none"
)

// Confidence separates ancestry proof from the search heuristic.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
	ConfidenceNone Confidence = "none"
)

// MethodCompareSearch is the method reported by every inclusion response.
const MethodCompareSearch = "compare+search"

// CommitSample is one commit the target is missing, for human inspection.
type CommitSample struct {
	CommitID string `json:"commit_id"`
	ShortID  string `json:"short_id"`
	Title    string `json:"title"`
}

// InclusionResult is the answer for one target branch.
type InclusionResult struct {
	Target        string         `json:"target"`
	Included      bool           `json:"included"`
	Via           Via            `json:"via"`
	Confidence    Confidence     `json:"confidence"`
	MissingCount  int            `json:"missing_count"`
	MissingSample []CommitSample `json:"missing_sample"`
	EvidenceTerm  string         `json:"evidence_term,omitempty"`
	EvidenceCount int            `json:"evidence_count,omitempty"`
	Diagnostic    string         `json:"diagnostic,omitempty"`
}

// InclusionRequest is the request for POST /api/projects/{name}/inclusion and
// the first websocket message on /ws/inclusion/{name}.
type InclusionRequest struct {
	Branch  string   `json:"branch"`
	Targets []string `json:"targets"`
}

// InclusionResponse is the response for POST /api/projects/{name}/inclusion.
type InclusionResponse struct {
	Project      string            `json:"project"`
	Branch       string            `json:"branch"`
	Method       string            `json:"method"`
	EvidenceTerm string            `json:"evidence_term"`
	Results      []InclusionResult `json:"results"`
}

// InclusionEvent is a websocket message on /ws/inclusion/{name}.
type InclusionEvent struct {
	Type    string            `json:"type"` // "result", "done", "error"
	BatchID string            `json:"batch_id,omitempty"`
	Index   int               `json:"index"`
	Result  *InclusionResult  `json:"result,omitempty"`
	Results []InclusionResult `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// MultiCompareRequest is the request for POST /api/compare/multi.
type MultiCompareRequest struct {
	Projects []string `json:"projects"`
	Terms    []string `json:"terms"`
	Targets  []string `json:"targets"`
}

// BranchReport holds the inclusion results for one discovered source branch.
type BranchReport struct {
	Branch       string            `json:"branch"`
	EvidenceTerm string            `json:"evidence_term"`
	Results      []InclusionResult `json:"results"`
}

// TermReport holds everything found for one (project, search term) pair.
type TermReport struct {
	Project  string         `json:"project"`
	Term     string         `json:"term"`
	Error    string         `json:"error,omitempty"`
	Branches []BranchReport `json:"branches"`
}

// MultiCompareResponse is the response for POST /api/compare/multi.
type MultiCompareResponse struct {
	Method  string       `json:"method"`
	Reports []TermReport `json:"reports"`
}

// BranchesResponse is the response for GET /api/projects/{name}/branches.
type BranchesResponse struct {
	Project  string   `json:"project"`
	Search   string   `json:"search"`
	Branches []string `json:"branches"`
}
