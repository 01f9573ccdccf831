package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. YAP_NAME.
const EnvPrefix = "YAP"

// Env holds overrides read from the environment.
type Env struct {
	Profile     string   `envconfig:"PROFILE"`
	Name        string   `envconfig:"NAME"`
	Listen      []string `envconfig:"LISTEN"`
	KeyFile     string   `envconfig:"KEY_FILE"`
	LogLevel    string   `envconfig:"LOG_LEVEL"`
	LogFile     string   `envconfig:"LOG_FILE"`
	HTTPAddr    string   `envconfig:"HTTP_ADDR"`
	JoinTimeout Duration `envconfig:"JOIN_TIMEOUT"`
}

// Config returns the overrides as a Config suitable for Merge.
func (e Env) Config() Config {
	return Config{
		Name:        e.Name,
		Listen:      e.Listen,
		KeyFile:     e.KeyFile,
		LogLevel:    e.LogLevel,
		LogFile:     e.LogFile,
		HTTPAddr:    e.HTTPAddr,
		JoinTimeout: e.JoinTimeout,
	}
}

// LoadEnv reads dotenv files (missing files are ignored) into the process
// environment without overriding variables that are already set, then
// decodes the YAP_* variables.
func LoadEnv(dotenv ...string) (Env, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("read environment: %w", err)
	}
	return env, nil
}
