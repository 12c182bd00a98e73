package hosting

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

const (
	// MaxPerPage is the largest page the API accepts for search and branch listing.
	MaxPerPage = 50
	// DefaultPerPage is used when a caller passes a non-positive page size.
	DefaultPerPage = 20
)

// Commit is one commit as returned by the compare and search endpoints.
type Commit struct {
	ID         string    `json:"id"`
	ShortID    string    `json:"short_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Branch is one repository branch.
type Branch struct {
	Name      string `json:"name"`
	Merged    bool   `json:"merged"`
	Protected bool   `json:"protected"`
	Default   bool   `json:"default"`
	Commit    Commit `json:"commit"`
}

// compareResponse is the compare endpoint response shape.
type compareResponse struct {
	Commits        []Commit `json:"commits"`
	CompareTimeout bool     `json:"compare_timeout"`
	CompareSameRef bool     `json:"compare_same_ref"`
}

// API exposes the three hosting capabilities the inclusion engine needs:
// ancestry compare, commit search scoped to a ref, and branch search.
type API struct {
	client *Client
}

// NewAPI wraps client. A nil client gets NewClient().
func NewAPI(client *Client) *API {
	if client == nil {
		client = NewClient()
	}
	return &API{client: client}
}

// Compare returns the commits reachable from `to` but not from `from`.
func (a *API) Compare(ctx context.Context, creds Credentials, from, to string) ([]Commit, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)

	var out compareResponse
	if err := a.client.GetJSON(ctx, creds.projectURL("/repository/compare", q), creds.Token, &out); err != nil {
		return nil, err
	}
	if out.CompareTimeout {
		return nil, &StatusError{StatusCode: 200, Message: "compare timed out on the server"}
	}
	if out.Commits == nil {
		out.Commits = []Commit{}
	}
	return out.Commits, nil
}

// SearchCommits searches commit messages on ref for term.
func (a *API) SearchCommits(ctx context.Context, creds Credentials, ref, term string, perPage int) ([]Commit, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("scope", "commits")
	q.Set("ref", ref)
	q.Set("search", term)
	q.Set("per_page", strconv.Itoa(clampPerPage(perPage)))

	var out []Commit
	if err := a.client.GetJSON(ctx, creds.projectURL("/search", q), creds.Token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBranches returns branches whose name matches search.
func (a *API) ListBranches(ctx context.Context, creds Credentials, search string, perPage int) ([]Branch, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	q.Set("per_page", strconv.Itoa(clampPerPage(perPage)))

	var out []Branch
	if err := a.client.GetJSON(ctx, creds.projectURL("/repository/branches", q), creds.Token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func clampPerPage(n int) int {
	if n <= 0 {
		return DefaultPerPage
	}
	if n > MaxPerPage {
		return MaxPerPage
	}
	return n
}
