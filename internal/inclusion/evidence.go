// Package inclusion decides, through the hosting API alone, whether a source
// branch's changes are already present on each of a set of target branches,
// and whether they got there by ancestry (merge or rebase) or by cherry-pick.
package inclusion

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrEmptyBranch = errors.New("branch name is required")
	ErrNoTargets   = errors.New("at least one target branch is required")
	ErrNoProjects  = errors.New("at least one project is required")
	ErrNoTerms     = errors.New("at least one search term is required")
)

// ticketPattern matches ticket/issue ids. Shorter digit runs are usually
// version numbers and are ignored.
var ticketPattern = regexp.MustCompile(`[0-9]{4,}`)

// DeriveEvidenceTerm extracts the token used to search targets for
// cherry-picked commits: the first run of four or more digits, else the last
// non-empty "/" segment, else the name unchanged.
func DeriveEvidenceTerm(branch string) string {
	if m := ticketPattern.FindString(branch); m != "" {
		return m
	}
	segments := strings.Split(branch, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return branch
}

// NormalizeBranch trims raw and percent-decodes it exactly once. Callers at
// the API boundary run it once; nothing downstream decodes again. A name with
// a malformed escape is kept as typed.
func NormalizeBranch(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if strings.Contains(name, "%") {
		if decoded, err := url.PathUnescape(name); err == nil {
			name = strings.TrimSpace(decoded)
		}
	}
	if name == "" {
		return "", ErrEmptyBranch
	}
	return name, nil
}

// NormalizeTargets normalizes each target, drops blanks, and removes
// duplicates keeping the first occurrence.
func NormalizeTargets(targets []string) []string {
	seen := make(map[string]bool, len(targets))
	out := make([]string, 0, len(targets))
	for _, raw := range targets {
		name, err := NormalizeBranch(raw)
		if err != nil || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// uniqueTrimmed trims values, drops blanks and duplicates, and keeps order.
func uniqueTrimmed(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
