// Package gitlabtest provides an in-memory GitLab-style API server for tests.
package gitlabtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sergeknystautas/landed/internal/hosting"
)

// Server models a single project whose branches are sets of commits. A
// branch contains another when it has every one of its commits; a
// cherry-picked commit is a distinct commit whose message still carries the
// original's ticket id.
type Server struct {
	*httptest.Server

	ProjectID string
	Token     string
	// BearerOnly rejects PRIVATE-TOKEN so clients must fall back.
	BearerOnly bool

	mu       sync.Mutex
	branches map[string][]hosting.Commit

	requests atomic.Int64
}

// NewServer starts a server for projectID accepting token.
func NewServer(projectID, token string) *Server {
	s := &Server{
		ProjectID: projectID,
		Token:     token,
		branches:  map[string][]hosting.Commit{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/{id}/repository/compare", s.handleCompare)
	mux.HandleFunc("/api/v4/projects/{id}/repository/branches", s.handleBranches)
	mux.HandleFunc("/api/v4/projects/{id}/search", s.handleSearch)
	s.Server = httptest.NewServer(s.authorize(mux))
	return s
}

// Credentials returns credentials that reach this server.
func (s *Server) Credentials() hosting.Credentials {
	return hosting.Credentials{Host: s.URL, ProjectID: s.ProjectID, Token: s.Token}
}

// Requests returns the number of API requests served, rejected ones included.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// SetBranch replaces the commits on a branch.
func (s *Server) SetBranch(name string, commits ...hosting.Commit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[name] = append([]hosting.Commit(nil), commits...)
}

// Fork creates branch name from base plus extra commits.
func (s *Server) Fork(name, base string, extra ...hosting.Commit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	commits := append([]hosting.Commit(nil), s.branches[base]...)
	s.branches[name] = append(commits, extra...)
}

// Commit builds a commit with a title.
func Commit(id, title string) hosting.Commit {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return hosting.Commit{ID: id, ShortID: short, Title: title, Message: title}
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		ok := r.Header.Get("Authorization") == "Bearer "+s.Token
		if !s.BearerOnly && r.Header.Get("PRIVATE-TOKEN") == s.Token {
			ok = true
		}
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "401 Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != s.ProjectID {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "404 Project Not Found"})
		return
	}
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")

	s.mu.Lock()
	base, okFrom := s.branches[from]
	head, okTo := s.branches[to]
	s.mu.Unlock()
	if !okFrom || !okTo {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "404 Ref Not Found"})
		return
	}

	have := make(map[string]bool, len(base))
	for _, c := range base {
		have[c.ID] = true
	}
	ahead := []hosting.Commit{}
	for _, c := range head {
		if !have[c.ID] {
			ahead = append(ahead, c)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": ahead, "compare_timeout": false})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != s.ProjectID {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "404 Project Not Found"})
		return
	}
	q := r.URL.Query()
	ref, term := q.Get("ref"), q.Get("search")

	s.mu.Lock()
	commits := s.branches[ref]
	s.mu.Unlock()

	hits := []hosting.Commit{}
	for _, c := range commits {
		if term != "" && strings.Contains(c.Message, term) {
			hits = append(hits, c)
		}
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != s.ProjectID {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "404 Project Not Found"})
		return
	}
	search := r.URL.Query().Get("search")

	s.mu.Lock()
	var names []string
	for name := range s.branches {
		if strings.Contains(name, search) {
			names = append(names, name)
		}
	}
	s.mu.Unlock()
	sort.Strings(names)

	out := []hosting.Branch{}
	for _, name := range names {
		out = append(out, hosting.Branch{Name: name})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
