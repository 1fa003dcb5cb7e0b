package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// defaultEnvFile is read when ENV_FILE is not set.
const defaultEnvFile = ".env"

// parseDotEnv loads KEY=VALUE pairs from the env file into the process
// environment. Variables already present win; a missing file is not an error.
func parseDotEnv(path string) error {
	if path == "" {
		path = defaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}
