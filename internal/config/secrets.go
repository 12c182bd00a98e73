package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProjectSecrets holds the credentials for one project.
type ProjectSecrets struct {
	Token string `json:"token,omitempty"`
}

// SecretsFile is the on-disk shape of ~/.landed/secrets.json.
type SecretsFile struct {
	Projects map[string]ProjectSecrets `json:"projects,omitempty"`
}

func secretsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "secrets.json"), nil
}

// LoadSecretsFile loads the secrets file or returns an empty structure if it doesn't exist.
func LoadSecretsFile() (*SecretsFile, error) {
	path, err := secretsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SecretsFile{Projects: map[string]ProjectSecrets{}}, nil
		}
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	var secrets SecretsFile
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}
	if secrets.Projects == nil {
		secrets.Projects = map[string]ProjectSecrets{}
	}
	return &secrets, nil
}

// SaveSecretsFile writes secrets with owner-only permissions.
func SaveSecretsFile(secrets *SecretsFile) error {
	path, err := secretsPath()
	if err != nil {
		return err
	}

	if secrets == nil {
		secrets = &SecretsFile{}
	}
	if secrets.Projects == nil {
		secrets.Projects = map[string]ProjectSecrets{}
	}

	data, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create landed directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write secrets: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to restrict secrets permissions: %w", err)
	}
	return nil
}

// SaveProjectToken stores the token for a project.
func SaveProjectToken(projectName, token string) error {
	if projectName == "" {
		return fmt.Errorf("project name is required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is required")
	}

	existing, err := LoadSecretsFile()
	if err != nil {
		return err
	}
	existing.Projects[projectName] = ProjectSecrets{Token: token}
	return SaveSecretsFile(existing)
}

// DeleteProjectToken removes the stored token for a project.
func DeleteProjectToken(projectName string) error {
	if projectName == "" {
		return fmt.Errorf("project name is required")
	}

	existing, err := LoadSecretsFile()
	if err != nil {
		return err
	}
	if _, ok := existing.Projects[projectName]; !ok {
		return nil
	}
	delete(existing.Projects, projectName)
	return SaveSecretsFile(existing)
}

// GetProjectToken returns the stored token for a project, or "".
func GetProjectToken(projectName string) (string, error) {
	secrets, err := LoadSecretsFile()
	if err != nil {
		return "", err
	}
	return secrets.Projects[projectName].Token, nil
}
