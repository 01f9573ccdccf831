package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel    = "info"
	DefaultHTTPAddr    = "127.0.0.1:8080"
	DefaultJoinTimeout = 30 * time.Second

	defaultProfile = "default"
	appDir         = "yaprooms"
)

// DefaultListen are the multiaddrs a node listens on when none are
// configured.
var DefaultListen = []string{
	"/ip4/0.0.0.0/tcp/0",
	"/ip4/0.0.0.0/udp/0/quic-v1",
}

// Config represents node and chat runtime configuration.
type Config struct {
	Name        string   `yaml:"name,omitempty"`
	Listen      []string `yaml:"listen,omitempty"`
	KeyFile     string   `yaml:"key_file,omitempty"`
	LogLevel    string   `yaml:"log_level,omitempty"`
	LogFile     string   `yaml:"log_file,omitempty"`
	HTTPAddr    string   `yaml:"http_addr,omitempty"`
	JoinTimeout Duration `yaml:"join_timeout,omitempty"`
}

// Duration is a time.Duration that reads and writes as "30s" style text
// in YAML and environment variables.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.Decode(raw)
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}
	d.Duration = parsed
	return nil
}

// Store provides access to persisted configurations.
type Store interface {
	Default() (Config, bool)
	Load(name string) (Config, bool)
	Save(name string, cfg Config) error
	SaveDefault(cfg Config) error
}

type fileStore struct {
	path string
	mu   sync.Mutex
	data map[string]Config
}

// Load opens or creates a config store at the provided path.
func Load(path string) (Store, error) {
	if path == "" {
		return nil, nil
	}

	store := &fileStore{path: path, data: make(map[string]Config)}

	bytes, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(bytes, &store.data); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if store.data == nil {
		store.data = make(map[string]Config)
	}

	return store, nil
}

// ResolveProfile merges the default config with a named profile. The
// result is not normalized so callers can overlay env and flags first.
func ResolveProfile(store Store, name string) (Config, error) {
	merged := Config{}
	trimmed := strings.TrimSpace(name)

	if store != nil {
		if base, ok := store.Default(); ok {
			merged = Merge(merged, base)
		}
		if trimmed != "" && !strings.EqualFold(trimmed, defaultProfile) {
			cfg, ok := store.Load(trimmed)
			if !ok {
				return Config{}, fmt.Errorf("unknown profile %q", trimmed)
			}
			merged = Merge(merged, cfg)
		}
	} else if trimmed != "" {
		return Config{}, fmt.Errorf("unknown profile %q", trimmed)
	}

	return merged, nil
}

// Merge overlays non-zero fields from overlay onto base. A non-empty
// overlay listen list replaces the base list.
func Merge(base, overlay Config) Config {
	result := cloneConfig(base)
	if overlay.Name != "" {
		result.Name = overlay.Name
	}
	if len(overlay.Listen) > 0 {
		result.Listen = MergeAddrs(overlay.Listen)
	}
	if overlay.KeyFile != "" {
		result.KeyFile = overlay.KeyFile
	}
	if overlay.LogLevel != "" {
		result.LogLevel = overlay.LogLevel
	}
	if overlay.LogFile != "" {
		result.LogFile = overlay.LogFile
	}
	if overlay.HTTPAddr != "" {
		result.HTTPAddr = overlay.HTTPAddr
	}
	if overlay.JoinTimeout.Duration > 0 {
		result.JoinTimeout = overlay.JoinTimeout
	}
	return result
}

// Normalize fills in default values and deduplicates listen addresses.
func Normalize(cfg Config) Config {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = defaultName()
	}
	cfg.Listen = MergeAddrs(cfg.Listen)
	if len(cfg.Listen) == 0 {
		cfg.Listen = append([]string(nil), DefaultListen...)
	}
	if cfg.KeyFile == "" {
		if dir := DefaultDir(); dir != "" {
			cfg.KeyFile = filepath.Join(dir, "identity.key")
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.JoinTimeout.Duration <= 0 {
		cfg.JoinTimeout = Duration{DefaultJoinTimeout}
	}
	return cfg
}

// MergeAddrs merges address lists removing duplicates and blanks.
func MergeAddrs(parts ...[]string) []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, list := range parts {
		for _, addr := range list {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			merged = append(merged, addr)
		}
	}
	return merged
}

// Summary returns human-friendly summary lines for display.
func Summary(cfg Config) []string {
	lines := []string{
		"  name: " + cfg.Name,
		"  listen: " + strings.Join(cfg.Listen, ", "),
		"  key file: " + cfg.KeyFile,
		"  log level: " + cfg.LogLevel,
	}
	if cfg.LogFile != "" {
		lines = append(lines, "  log file: "+cfg.LogFile)
	}
	lines = append(lines,
		"  http: "+cfg.HTTPAddr,
		"  join timeout: "+cfg.JoinTimeout.String(),
	)
	return lines
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDir)
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	dir := DefaultDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

func (f *fileStore) Save(name string, cfg Config) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("profile name cannot be empty")
	}
	if strings.EqualFold(trimmed, defaultProfile) {
		return errors.New("profile name \"default\" is reserved")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		f.data = make(map[string]Config)
	}
	f.data[trimmed] = cloneConfig(cfg)
	return f.persist()
}

func (f *fileStore) Default() (Config, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.data[defaultProfile]
	if !ok {
		return Config{}, false
	}
	return cloneConfig(cfg), true
}

func (f *fileStore) Load(name string) (Config, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Config{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.data[trimmed]
	if !ok {
		return Config{}, false
	}
	return cloneConfig(cfg), true
}

func (f *fileStore) SaveDefault(cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		f.data = make(map[string]Config)
	}
	f.data[defaultProfile] = cloneConfig(cfg)
	return f.persist()
}

func (f *fileStore) persist() error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	bytes, err := yaml.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("persist config: %w", err)
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	cfg.Listen = MergeAddrs(cfg.Listen)
	return cfg
}

func defaultName() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return fmt.Sprintf("anon-%d", time.Now().Unix()%1000)
}
