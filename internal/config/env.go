package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// TokenEnvPrefix is the prefix of per-project token environment variables.
const TokenEnvPrefix = "LANDED_TOKEN_"

// TokenEnvVar returns the environment variable that overrides the stored
// token for project: "release-tools" becomes LANDED_TOKEN_RELEASE_TOOLS.
func TokenEnvVar(project string) string {
	var b strings.Builder
	b.WriteString(TokenEnvPrefix)
	for _, r := range strings.ToUpper(project) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// LoadEnv loads ~/.landed/.env into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadEnv() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return loadEnvFile(filepath.Join(dir, ".env"))
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	fmt.Printf("[config] loaded environment from %s\n", path)
	return nil
}
