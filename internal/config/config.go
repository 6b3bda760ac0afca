// Package config loads the file browser configuration.
//
// Values are layered: built-in defaults, an optional YAML or JSON file, the
// FILENAV_ROOT environment variable, then command line flags applied by the
// caller. The resulting Config is validated once and treated as read-only.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// RootEnv overrides the configured root directory when set and non-blank.
const RootEnv = "FILENAV_ROOT"

var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrLoadFailed        = errors.New("config: load failed")
	ErrInvalidRoot       = errors.New("config: invalid root directory")
	ErrInvalidLog        = errors.New("config: invalid log settings")
)

type Config struct {
	Root              string    `koanf:"root"`
	ShowHidden        bool      `koanf:"show_hidden"`
	AllowedExtensions []string  `koanf:"allowed_extensions"`
	Listen            string    `koanf:"listen"`
	MetricsListen     string    `koanf:"metrics_listen"`
	Log               LogConfig `koanf:"log"`
}

type LogConfig struct {
	Level      string `koanf:"level"`  // debug, info, warn, error
	Format     string `koanf:"format"` // json, console
	File       string `koanf:"file"`   // empty logs to stderr
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Root:   ".",
		Listen: "0.0.0.0:3000",
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Load builds a Config from defaults, the file at path (skipped when path is
// empty) and the environment. The result is not validated yet.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}

		if err := decode(data, path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if root, ok := os.LookupEnv(RootEnv); ok && strings.TrimSpace(root) != "" {
		cfg.Root = root
	}

	return cfg, nil
}

func decode(data []byte, path string, cfg *Config) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	if len(data) == 0 {
		return nil
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	return nil
}

// Validate canonicalizes the root and normalizes the extension allow-list.
// It returns the normalized copy; cfg itself is left untouched.
func (cfg Config) Validate() (Config, error) {
	root, err := CanonicalRoot(cfg.Root)
	if err != nil {
		return Config{}, err
	}

	out := cfg
	out.Root = root
	out.AllowedExtensions = normalizeExtensions(cfg.AllowedExtensions)

	switch strings.ToLower(out.Log.Level) {
	case "debug", "info", "warn", "error":
		out.Log.Level = strings.ToLower(out.Log.Level)
	default:
		return Config{}, fmt.Errorf("%w: unknown level %q", ErrInvalidLog, cfg.Log.Level)
	}

	switch out.Log.Format {
	case "json", "console":
	default:
		return Config{}, fmt.Errorf("%w: unknown format %q", ErrInvalidLog, cfg.Log.Format)
	}

	return out, nil
}

// CanonicalRoot returns the absolute, symlink-free form of dir and checks that
// it is an existing directory.
func CanonicalRoot(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, resolved)
	}

	return resolved, nil
}

func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(exts))
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}

		if _, ok := seen[ext]; ok {
			continue
		}

		seen[ext] = struct{}{}
		out = append(out, ext)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
