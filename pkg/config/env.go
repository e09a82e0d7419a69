package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads a dotenv file into a map. An empty path yields nil.
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return env, nil
}

// BuildEnv returns the extra environment for build processes
func (s *Settings) BuildEnv() (map[string]string, error) {
	return LoadEnvFile(s.EnvFile)
}
