package gitlabtest

import (
	"context"
	"testing"

	"github.com/sergeknystautas/landed/internal/hosting"
)

func TestServer_ModelsAncestryAndCherryPicks(t *testing.T) {
	srv := NewServer("group/app", "tok")
	defer srv.Close()

	srv.SetBranch("main", Commit("a1", "init"))
	srv.Fork("feature/PROJ-1234", "main", Commit("b1", "PROJ-1234 fix"))
	srv.Fork("release/1.0", "main", Commit("c1", "PROJ-1234 fix (cherry picked from commit b1)"))

	api := hosting.NewAPI(nil)
	ctx := context.Background()
	creds := srv.Credentials()

	ahead, err := api.Compare(ctx, creds, "release/1.0", "feature/PROJ-1234")
	if err != nil {
		t.Fatalf("Compare() failed: %v", err)
	}
	if len(ahead) != 1 || ahead[0].ID != "b1" {
		t.Errorf("ahead = %+v, want [b1]", ahead)
	}

	hits, err := api.SearchCommits(ctx, creds, "release/1.0", "1234", 20)
	if err != nil {
		t.Fatalf("SearchCommits() failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "c1" {
		t.Errorf("hits = %+v, want [c1]", hits)
	}

	branches, err := api.ListBranches(ctx, creds, "PROJ", 50)
	if err != nil {
		t.Fatalf("ListBranches() failed: %v", err)
	}
	if len(branches) != 1 || branches[0].Name != "feature/PROJ-1234" {
		t.Errorf("branches = %+v", branches)
	}

	if _, err := api.Compare(ctx, creds, "missing", "main"); hosting.Kind(err) != hosting.KindNotFound {
		t.Errorf("missing ref kind = %q, want not_found", hosting.Kind(err))
	}
}

func TestServer_BearerOnly(t *testing.T) {
	srv := NewServer("7", "tok")
	defer srv.Close()
	srv.BearerOnly = true
	srv.SetBranch("main")

	if _, err := hosting.NewAPI(nil).Compare(context.Background(), srv.Credentials(), "main", "main"); err != nil {
		t.Fatalf("expected bearer fallback to succeed: %v", err)
	}
	if got := srv.Requests(); got != 2 {
		t.Errorf("requests = %d, want 2 (private token rejected, then bearer)", got)
	}
}
