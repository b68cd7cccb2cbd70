package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Version int
	Project Project
	Index   Index
	Include []string
	Exclude []string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize     int64
	MaxFileCount    int
	FollowSymlinks  bool
	WatchMode       bool // Enable file system watching for automatic reindexing
	WatchDebounceMs int  // Debounce time for file change events
	ScanSliceMs     int  // Time slice after which a full scan yields control
	ScanBatchSize   int  // Files processed between progress reports
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	root, _ := os.Getwd()
	if root == "" {
		root = "."
	}
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Index: Index{
			MaxFileSize:     10 * 1024 * 1024,
			MaxFileCount:    10000,
			FollowSymlinks:  false,
			WatchMode:       false,
			WatchDebounceMs: 100,
			ScanSliceMs:     50,
			ScanBatchSize:   64,
		},
		Include: []string{"**/*.php"},
		Exclude: []string{"**/vendor/**", "**/node_modules/**", "**/.git/**"},
	}
}

// Load reads project configuration. Precedence: an explicit path wins; then
// .phpref.kdl in root; then .phpref.toml; then defaults. A missing config
// file is not an error — the engine degrades to defaults.
func Load(path string) (*Config, error) {
	if path != "" && !isDefaultConfigName(filepath.Base(path)) {
		return loadExplicit(path)
	}

	root := "."
	if path != "" {
		root = filepath.Dir(path)
	}

	if cfg, err := LoadKDL(root); err != nil {
		return nil, err
	} else if cfg != nil {
		return cfg, nil
	}
	if cfg, err := LoadTOML(root); err != nil {
		return nil, err
	} else if cfg != nil {
		return cfg, nil
	}
	return Default(), nil
}

func isDefaultConfigName(base string) bool {
	return base == ".phpref.kdl" || base == ".phpref.toml"
}

func loadExplicit(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	switch filepath.Ext(path) {
	case ".kdl":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		cfg, err := parseKDL(string(content))
		if err != nil {
			return nil, err
		}
		resolveRoot(cfg, filepath.Dir(path))
		return cfg, nil
	case ".toml":
		return loadTOMLFile(path)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
}

// resolveRoot makes Project.Root absolute, relative to the directory that
// contains the config file.
func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root == "" {
		abs, err := filepath.Abs(configDir)
		if err == nil {
			cfg.Project.Root = abs
		} else {
			cfg.Project.Root = configDir
		}
		return
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(configDir, cfg.Project.Root))
	}
}
