package hosting

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Credentials identify one project on a hosting service together with the
// already-decrypted token used to reach it. They are read-only once built and
// may be shared by every concurrent probe for the project.
type Credentials struct {
	Host      string
	ProjectID string
	Token     string
}

var (
	ErrMissingHost    = errors.New("hosting: host is required")
	ErrMissingProject = errors.New("hosting: project id is required")
	ErrMissingToken   = errors.New("hosting: token is required")
)

// Validate reports whether the credentials are complete enough to issue requests.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrMissingHost
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		return ErrMissingProject
	}
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// String never includes the token.
func (c Credentials) String() string {
	token := ""
	if c.Token != "" {
		token = "<redacted>"
	}
	return fmt.Sprintf("host=%s project=%s token=%s", c.BaseURL(), c.ProjectID, token)
}

// BaseURL returns the host with a scheme and without a trailing slash.
func (c Credentials) BaseURL() string {
	host := strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host
}

// projectURL builds {host}/api/v4/projects/{id}{path}?{query}. Path-style
// project ids ("group/project") are escaped into a single path segment.
func (c Credentials) projectURL(path string, query url.Values) string {
	u := fmt.Sprintf("%s/api/v4/projects/%s%s", c.BaseURL(), url.PathEscape(strings.TrimSpace(c.ProjectID)), path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
