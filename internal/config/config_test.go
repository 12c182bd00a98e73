package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sergeknystautas/landed/internal/version"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.json")

	validConfig := Config{
		ConfigVersion: "0.3.0",
		Projects: []Project{
			{Name: "app", Host: "gitlab.example.com", ProjectID: "group/app"},
		},
		Inclusion: &InclusionConfig{MaxConcurrency: 4},
	}
	data, err := json.MarshalIndent(validConfig, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
	if got := cfg.GetMaxConcurrency(); got != 4 {
		t.Errorf("GetMaxConcurrency() = %d, want 4", got)
	}

	// Verify Save() works (path should be set from Load)
	cfg.Projects = append(cfg.Projects, Project{Name: "docs", Host: "gitlab.example.com", ProjectID: "7"})
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	cfg2, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() after save failed: %v", err)
	}
	if len(cfg2.Projects) != 2 {
		t.Errorf("projects after reload = %d, want 2", len(cfg2.Projects))
	}
	if cfg2.ConfigVersion != version.Version {
		t.Errorf("ConfigVersion = %q, want %q", cfg2.ConfigVersion, version.Version)
	}
	if _, err := os.Stat(configPath + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should be renamed away, stat err = %v", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoad_SyntaxErrorReportsPosition(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "{\n  \"projects\": [\n    {\"name\": \"app\",}\n  ]\n}")

	_, err := Load(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error should name line 3: %v", err)
	}
}

func TestLoad_TypeErrorReportsField(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"projects": [], "inclusion": {"max_concurrency": "six"}}`)

	_, err := Load(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "max_concurrency") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{Projects: []Project{{Name: "app", Host: "h", ProjectID: "1"}}},
		},
		{
			name:    "missing name",
			cfg:     Config{Projects: []Project{{Host: "h", ProjectID: "1"}}},
			wantErr: "projects[0].name",
		},
		{
			name:    "duplicate name",
			cfg:     Config{Projects: []Project{{Name: "a", Host: "h", ProjectID: "1"}, {Name: "a", Host: "h", ProjectID: "2"}}},
			wantErr: "duplicate",
		},
		{
			name:    "missing host",
			cfg:     Config{Projects: []Project{{Name: "a", ProjectID: "1"}}},
			wantErr: "host is required",
		},
		{
			name:    "missing project id",
			cfg:     Config{Projects: []Project{{Name: "a", Host: "h"}}},
			wantErr: "project_id is required",
		},
		{
			name:    "negative timeout",
			cfg:     Config{Inclusion: &InclusionConfig{RequestTimeoutMs: -1}},
			wantErr: "inclusion.request_timeout_ms",
		},
		{
			name:    "bad port",
			cfg:     Config{Network: &NetworkConfig{Port: 70000}},
			wantErr: "network.port",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetters_Defaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.GetMaxConcurrency(); got != DefaultMaxConcurrency {
		t.Errorf("GetMaxConcurrency() = %d, want %d", got, DefaultMaxConcurrency)
	}
	if got := cfg.RequestTimeout(); got != 15*time.Second {
		t.Errorf("RequestTimeout() = %s, want 15s", got)
	}
	if got := cfg.GetSearchPageSize(); got != DefaultSearchPageSize {
		t.Errorf("GetSearchPageSize() = %d, want %d", got, DefaultSearchPageSize)
	}
	if got := cfg.GetMaxBranchesPerTerm(); got != DefaultMaxBranchesPerTerm {
		t.Errorf("GetMaxBranchesPerTerm() = %d, want %d", got, DefaultMaxBranchesPerTerm)
	}
	if got := cfg.CacheTTL(); got != 0 {
		t.Errorf("CacheTTL() = %s, want 0 (disabled)", got)
	}
	if got := cfg.GetCacheSize(); got != DefaultCacheSize {
		t.Errorf("GetCacheSize() = %d, want %d", got, DefaultCacheSize)
	}
	if got := cfg.GetBindAddress(); got != "127.0.0.1" {
		t.Errorf("GetBindAddress() = %q, want 127.0.0.1", got)
	}
	if cfg.GetNetworkAccess() {
		t.Error("GetNetworkAccess() should default to false")
	}
	if got := cfg.GetPort(); got != 7447 {
		t.Errorf("GetPort() = %d, want 7447", got)
	}
}

func TestGetSearchPageSize_Clamped(t *testing.T) {
	tests := []struct {
		configured int
		want       int
	}{
		{0, 20},
		{1, 1},
		{35, 35},
		{50, 50},
		{200, 50},
	}
	for _, tt := range tests {
		cfg := &Config{Inclusion: &InclusionConfig{SearchPageSize: tt.configured}}
		if got := cfg.GetSearchPageSize(); got != tt.want {
			t.Errorf("search_page_size %d: got %d, want %d", tt.configured, got, tt.want)
		}
	}
}

func TestInclusionSettings(t *testing.T) {
	cfg := &Config{Inclusion: &InclusionConfig{
		MaxConcurrency:   3,
		RequestTimeoutMs: 2500,
		CacheTTLMs:       60000,
	}}
	s := cfg.InclusionSettings()
	if s.MaxConcurrency != 3 {
		t.Errorf("MaxConcurrency = %d, want 3", s.MaxConcurrency)
	}
	if s.RequestTimeout != 2500*time.Millisecond {
		t.Errorf("RequestTimeout = %s, want 2.5s", s.RequestTimeout)
	}
	if s.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %s, want 1m", s.CacheTTL)
	}
	if s.SearchPageSize != DefaultSearchPageSize {
		t.Errorf("SearchPageSize = %d, want %d", s.SearchPageSize, DefaultSearchPageSize)
	}
}

func TestMigrate_LegacyConcurrency(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"unversioned", `{"projects": [], "concurrency": 3}`, 3},
		{"old version", `{"config_version": "0.1.4", "projects": [], "concurrency": 2}`, 2},
		{"dev build", `{"config_version": "dev", "projects": [], "concurrency": 5}`, 5},
		{"explicit value wins", `{"config_version": "0.1.0", "concurrency": 2, "inclusion": {"max_concurrency": 8}}`, 8},
		{"current version ignores legacy field", `{"config_version": "0.2.0", "concurrency": 2}`, DefaultMaxConcurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, t.TempDir(), tt.content))
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if got := cfg.GetMaxConcurrency(); got != tt.want {
				t.Errorf("GetMaxConcurrency() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMigrate_SaveDropsLegacyField(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"projects": [], "concurrency": 3}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"concurrency"`) {
		t.Errorf("legacy field should not be written back:\n%s", data)
	}
	if !strings.Contains(string(data), `"max_concurrency": 3`) {
		t.Errorf("migrated value missing:\n%s", data)
	}
}

func TestReload(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"projects": [{"name": "app", "host": "h", "project_id": "1"}]}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	writeConfig(t, filepath.Dir(path), `{"projects": [], "network": {"port": 9000}}`)
	if err := cfg.Reload(); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	if len(cfg.Projects) != 0 || cfg.GetPort() != 9000 {
		t.Errorf("reloaded config not applied: %+v", cfg)
	}
	if cfg.Path() != path {
		t.Errorf("Reload() should keep the path")
	}

	writeConfig(t, filepath.Dir(path), `{"projects": [{"name": ""}]}`)
	if err := cfg.Reload(); err == nil {
		t.Fatal("expected invalid config error")
	}
	if cfg.GetPort() != 9000 {
		t.Errorf("failed reload must keep the previous values")
	}
}

func TestCreateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := CreateDefault(path)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() of default failed: %v", err)
	}
}

func TestFindProject(t *testing.T) {
	cfg := &Config{Projects: []Project{{Name: "app", Host: "h", ProjectID: "1"}}}
	if p, ok := cfg.FindProject("app"); !ok || p.ProjectID != "1" {
		t.Errorf("FindProject(app) = %+v, %v", p, ok)
	}
	if _, ok := cfg.FindProject("nope"); ok {
		t.Error("FindProject(nope) should not be found")
	}
}

func TestOffsetToLineCol(t *testing.T) {
	data := []byte("ab\ncd\nef")
	tests := []struct {
		offset    int64
		line, col int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{3, 2, 1},
		{7, 3, 2},
	}
	for _, tt := range tests {
		line, col := offsetToLineCol(data, tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("offset %d: got %d:%d, want %d:%d", tt.offset, line, col, tt.line, tt.col)
		}
	}
}
