package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configFileEnvVar = "SERVICEDESK_CONFIG"

type Config interface {
	EnvConfig
	GatewayConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Gateway
	Stores
}

// New returns a configuration backed by the process environment only.
func New() Config {
	return newMainConfig(nil)
}

// Load reads an optional .env file and an optional YAML file, then returns a
// configuration where environment variables take precedence over file values.
// An empty path falls back to $SERVICEDESK_CONFIG.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("[config Load] failed to read .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(configFileEnvVar)
	}
	if path == "" {
		return New(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config Load] failed to read %s: %w", path, err)
	}

	values := make(map[string]string)
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("[config Load] invalid yaml in %s: %w", path, err)
	}
	return newMainConfig(values), nil
}

func newMainConfig(fileValues map[string]string) mainConfig {
	src := source{file: fileValues}
	return mainConfig{
		EnvVars: EnvVars{src},
		Gateway: Gateway{src},
		Stores:  Stores{src},
	}
}

// source resolves a key from the environment first and the config file second.
type source struct {
	file map[string]string
}

func (s source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}
