package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/sergeknystautas/landed/internal/inclusion"
	"github.com/sergeknystautas/landed/internal/version"
)

var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrProjectNotFound = errors.New("project not found")
	ErrNoToken         = errors.New("no token configured")
)

const (
	// Default inclusion engine tuning
	DefaultMaxConcurrency     = 6
	DefaultRequestTimeoutMs   = 15000 // 15 seconds
	DefaultSearchPageSize     = 20
	MaxSearchPageSize         = 50
	DefaultMaxBranchesPerTerm = 10
	DefaultCacheSize          = 512

	// Default dashboard binding
	DefaultBindAddress = "127.0.0.1"
	DefaultPort        = 7447
)

// Config represents the application configuration.
type Config struct {
	ConfigVersion string           `json:"config_version,omitempty"`
	Projects      []Project        `json:"projects"`
	Inclusion     *InclusionConfig `json:"inclusion,omitempty"`
	Network       *NetworkConfig   `json:"network,omitempty"`

	// LegacyConcurrency is the top-level "concurrency" field written before
	// 0.2.0. Migrate moves it into inclusion.max_concurrency.
	LegacyConcurrency int `json:"concurrency,omitempty"`

	// path is the file path where this config was loaded from or should be saved to.
	// Not serialized to JSON.
	path string
}

// Project is a hosted repository that inclusion checks can run against. Its
// token lives in secrets.json or the environment, never here.
type Project struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	ProjectID string `json:"project_id"`
}

// InclusionConfig tunes the inclusion engine.
type InclusionConfig struct {
	MaxConcurrency     int `json:"max_concurrency,omitempty"`
	RequestTimeoutMs   int `json:"request_timeout_ms,omitempty"`
	SearchPageSize     int `json:"search_page_size,omitempty"`
	MaxBranchesPerTerm int `json:"max_branches_per_term,omitempty"`
	CacheTTLMs         int `json:"cache_ttl_ms,omitempty"` // 0 disables the probe cache
	CacheSize          int `json:"cache_size,omitempty"`
}

// NetworkConfig controls server binding.
type NetworkConfig struct {
	BindAddress string `json:"bind_address,omitempty"`
	Port        int    `json:"port,omitempty"`
}

// Validate checks projects and numeric settings.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Projects))
	for i, p := range c.Projects {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: projects[%d].name is required", ErrInvalidConfig, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate project name %q", ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = true
		if strings.TrimSpace(p.Host) == "" {
			return fmt.Errorf("%w: project %q: host is required", ErrInvalidConfig, p.Name)
		}
		if strings.TrimSpace(p.ProjectID) == "" {
			return fmt.Errorf("%w: project %q: project_id is required", ErrInvalidConfig, p.Name)
		}
	}

	if in := c.Inclusion; in != nil {
		fields := []struct {
			name  string
			value int
		}{
			{"inclusion.max_concurrency", in.MaxConcurrency},
			{"inclusion.request_timeout_ms", in.RequestTimeoutMs},
			{"inclusion.search_page_size", in.SearchPageSize},
			{"inclusion.max_branches_per_term", in.MaxBranchesPerTerm},
			{"inclusion.cache_ttl_ms", in.CacheTTLMs},
			{"inclusion.cache_size", in.CacheSize},
		}
		for _, f := range fields {
			if f.value < 0 {
				return fmt.Errorf("%w: %s must be >= 0", ErrInvalidConfig, f.name)
			}
		}
	}

	if c.Network != nil && (c.Network.Port < 0 || c.Network.Port > 65535) {
		return fmt.Errorf("%w: network.port must be between 1 and 65535", ErrInvalidConfig)
	}
	return nil
}

// Path returns the file the config is loaded from and saved to.
func (c *Config) Path() string {
	return c.path
}

// GetProjects returns the configured projects.
func (c *Config) GetProjects() []Project {
	return c.Projects
}

// FindProject returns the project with the given name.
func (c *Config) FindProject(name string) (Project, bool) {
	for _, p := range c.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

// GetMaxConcurrency returns the in-flight target cap. Defaults to 6.
func (c *Config) GetMaxConcurrency() int {
	if c.Inclusion == nil || c.Inclusion.MaxConcurrency <= 0 {
		return DefaultMaxConcurrency
	}
	return c.Inclusion.MaxConcurrency
}

// GetRequestTimeoutMs returns the per-request deadline in ms. Defaults to 15000ms.
func (c *Config) GetRequestTimeoutMs() int {
	if c.Inclusion == nil || c.Inclusion.RequestTimeoutMs <= 0 {
		return DefaultRequestTimeoutMs
	}
	return c.Inclusion.RequestTimeoutMs
}

// RequestTimeout returns the per-request deadline as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.GetRequestTimeoutMs()) * time.Millisecond
}

// GetSearchPageSize returns the commit search page size, clamped to 1..50.
// Defaults to 20.
func (c *Config) GetSearchPageSize() int {
	if c.Inclusion == nil || c.Inclusion.SearchPageSize <= 0 {
		return DefaultSearchPageSize
	}
	if c.Inclusion.SearchPageSize > MaxSearchPageSize {
		return MaxSearchPageSize
	}
	return c.Inclusion.SearchPageSize
}

// GetMaxBranchesPerTerm returns how many source branches a multi-term compare
// considers per search term. Defaults to 10.
func (c *Config) GetMaxBranchesPerTerm() int {
	if c.Inclusion == nil || c.Inclusion.MaxBranchesPerTerm <= 0 {
		return DefaultMaxBranchesPerTerm
	}
	return c.Inclusion.MaxBranchesPerTerm
}

// GetCacheTTLMs returns the probe cache TTL in ms. 0 means caching is off.
func (c *Config) GetCacheTTLMs() int {
	if c.Inclusion == nil || c.Inclusion.CacheTTLMs <= 0 {
		return 0
	}
	return c.Inclusion.CacheTTLMs
}

// CacheTTL returns the probe cache TTL as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.GetCacheTTLMs()) * time.Millisecond
}

// GetCacheSize returns the probe cache capacity. Defaults to 512.
func (c *Config) GetCacheSize() int {
	if c.Inclusion == nil || c.Inclusion.CacheSize <= 0 {
		return DefaultCacheSize
	}
	return c.Inclusion.CacheSize
}

// InclusionSettings maps the inclusion section to engine settings.
func (c *Config) InclusionSettings() inclusion.Settings {
	return inclusion.Settings{
		MaxConcurrency:     c.GetMaxConcurrency(),
		RequestTimeout:     c.RequestTimeout(),
		SearchPageSize:     c.GetSearchPageSize(),
		MaxBranchesPerTerm: c.GetMaxBranchesPerTerm(),
		CacheTTL:           c.CacheTTL(),
		CacheSize:          c.GetCacheSize(),
	}
}

// GetBindAddress returns the address to bind the server to.
// Defaults to "127.0.0.1" (localhost only).
func (c *Config) GetBindAddress() string {
	if c.Network == nil || c.Network.BindAddress == "" {
		return DefaultBindAddress
	}
	return c.Network.BindAddress
}

// GetNetworkAccess returns whether the API should be accessible from the local network.
func (c *Config) GetNetworkAccess() bool {
	return c.GetBindAddress() == "0.0.0.0"
}

// GetPort returns the API port. Defaults to 7447.
func (c *Config) GetPort() int {
	if c.Network == nil || c.Network.Port <= 0 {
		return DefaultPort
	}
	return c.Network.Port
}

// Dir returns the landed state directory (~/.landed).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".landed"), nil
}

// DefaultPath returns ~/.landed/config.json.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// expandHome expands a leading ~ in path.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// CreateDefault creates a default config with the given config file path.
// The path is stored so that subsequent Save() calls write to the same location.
func CreateDefault(configPath string) *Config {
	return &Config{
		ConfigVersion: version.Version,
		Projects:      []Project{},
		Inclusion: &InclusionConfig{
			MaxConcurrency:     DefaultMaxConcurrency,
			RequestTimeoutMs:   DefaultRequestTimeoutMs,
			SearchPageSize:     DefaultSearchPageSize,
			MaxBranchesPerTerm: DefaultMaxBranchesPerTerm,
		},
		path: configPath,
	}
}

// Load loads the configuration from the specified path.
// The path is stored so that subsequent Save() calls write to the same location.
func Load(configPath string) (*Config, error) {
	configPath, err := expandHome(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := parse(configPath)
	if err != nil {
		return nil, err
	}
	cfg.path = configPath
	return cfg, nil
}

// Reload reloads the configuration from disk and replaces this Config struct.
// On error the current values are kept.
func (c *Config) Reload() error {
	if c.path == "" {
		return fmt.Errorf("config path not set: use Load() or CreateDefault() with a path")
	}
	newCfg, err := parse(c.path)
	if err != nil {
		return err
	}
	newCfg.path = c.path
	*c = *newCfg
	return nil
}

func parse(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		// Try to extract line and column from JSON errors
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			line, col := offsetToLineCol(data, syntaxErr.Offset)
			return nil, fmt.Errorf("%w: %s (line %d, column %d)", ErrInvalidConfig, syntaxErr.Error(), line, col)
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			line, col := offsetToLineCol(data, typeErr.Offset)
			return nil, fmt.Errorf("%w: field %q expects %s, got %s (line %d, column %d)",
				ErrInvalidConfig, typeErr.Field, typeErr.Type, typeErr.Value, line, col)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// Apply migrations before validation
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var concurrencyMovedIn = semver.MustParse("0.2.0")

// Migrate rolls the config forward to the current schema. Migrations are
// idempotent, so configs written by development builds (version "dev") run
// all of them.
func (c *Config) Migrate() error {
	from := semver.MustParse("0.0.0")
	if c.ConfigVersion != "" {
		if v, err := semver.NewVersion(c.ConfigVersion); err == nil {
			from = v
		}
	}

	if from.LessThan(concurrencyMovedIn) && c.LegacyConcurrency != 0 {
		if c.LegacyConcurrency < 0 {
			return fmt.Errorf("%w: concurrency must be >= 0", ErrInvalidConfig)
		}
		if c.Inclusion == nil {
			c.Inclusion = &InclusionConfig{}
		}
		if c.Inclusion.MaxConcurrency == 0 {
			c.Inclusion.MaxConcurrency = c.LegacyConcurrency
		}
		fmt.Printf("[config] migrated concurrency=%d into inclusion.max_concurrency\n", c.LegacyConcurrency)
		c.LegacyConcurrency = 0
	}
	return nil
}

// Save writes the config to the path it was loaded from or created with.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config path not set: use Load() or CreateDefault() with a path")
	}

	// Update config version to current binary version
	c.ConfigVersion = version.Version

	// Ensure the directory exists
	landedDir := filepath.Dir(c.path)
	if landedDir != "." && landedDir != "" {
		if err := os.MkdirAll(landedDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// Marshal with indentation for readability
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to a temporary file first, then rename for atomicity
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ConfigExists checks if the config file exists.
func ConfigExists() bool {
	configPath, err := DefaultPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(configPath)
	return err == nil
}

// EnsureExists checks if config exists, and offers to create one interactively if not.
// Returns true if config exists or was created, false if user declined or error occurred.
func EnsureExists() (bool, error) {
	if ConfigExists() {
		return true, nil
	}

	configPath, err := DefaultPath()
	if err != nil {
		return false, err
	}

	fmt.Println("Welcome to landed!")
	fmt.Println()
	fmt.Println("No config file found at ~/.landed/config.json")
	fmt.Println()
	fmt.Print("Would you like to create one now? [Y/n] ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	if response == "n" || response == "no" {
		fmt.Println("Config not created. Please create ~/.landed/config.json manually to continue.")
		return false, nil
	}

	cfg := CreateDefault(configPath)
	if err := cfg.Save(); err != nil {
		return false, fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("[config] created at %s\n", configPath)
	fmt.Println()
	fmt.Println("[config] add a project under \"projects\", then store its token with: landed token set <project>")

	return true, nil
}

// offsetToLineCol converts a byte offset to line and column numbers (1-indexed).
func offsetToLineCol(data []byte, offset int64) (line, col int) {
	line = 1
	col = 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
