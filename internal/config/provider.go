package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sergeknystautas/landed/internal/api/contracts"
	"github.com/sergeknystautas/landed/internal/hosting"
)

// Provider resolves project names to hosting credentials. The token comes
// from LANDED_TOKEN_<PROJECT> when set, otherwise from secrets.json; it is
// read on every lookup so a token change needs no restart.
type Provider struct {
	mu  sync.RWMutex
	cfg *Config

	// loadSecrets is swapped in tests.
	loadSecrets func() (*SecretsFile, error)
}

// NewProvider creates a provider over cfg.
func NewProvider(cfg *Config) *Provider {
	return &Provider{cfg: cfg, loadSecrets: LoadSecretsFile}
}

// SetConfig swaps the config after a reload.
func (p *Provider) SetConfig(cfg *Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

func (p *Provider) config() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Lookup returns ready-to-use credentials for the named project.
func (p *Provider) Lookup(name string) (hosting.Credentials, error) {
	project, ok := p.config().FindProject(name)
	if !ok {
		return hosting.Credentials{}, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}

	token, err := p.token(name)
	if err != nil {
		return hosting.Credentials{}, err
	}
	if token == "" {
		return hosting.Credentials{}, fmt.Errorf("%w for project %s (set %s or run: landed token set %s)", ErrNoToken, name, TokenEnvVar(name), name)
	}

	return hosting.Credentials{Host: project.Host, ProjectID: project.ProjectID, Token: token}, nil
}

// Projects lists configured projects without their tokens.
func (p *Provider) Projects() []contracts.Project {
	cfg := p.config()
	out := make([]contracts.Project, 0, len(cfg.Projects))
	for _, project := range cfg.Projects {
		token, err := p.token(project.Name)
		out = append(out, contracts.Project{
			Name:      project.Name,
			Host:      project.Host,
			ProjectID: project.ProjectID,
			HasToken:  err == nil && token != "",
		})
	}
	return out
}

func (p *Provider) token(name string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(TokenEnvVar(name))); v != "" {
		return v, nil
	}
	secrets, err := p.loadSecrets()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(secrets.Projects[name].Token), nil
}
