package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// tomlConfig mirrors the subset of Config expressible in .phpref.toml.
// Zero values mean "not set" and keep the defaults.
type tomlConfig struct {
	Project struct {
		Root string `toml:"root"`
		Name string `toml:"name"`
	} `toml:"project"`
	Index struct {
		MaxFileSize     int64 `toml:"max_file_size"`
		MaxFileCount    int   `toml:"max_file_count"`
		FollowSymlinks  bool  `toml:"follow_symlinks"`
		WatchMode       bool  `toml:"watch_mode"`
		WatchDebounceMs int   `toml:"watch_debounce_ms"`
		ScanSliceMs     int   `toml:"scan_slice_ms"`
		ScanBatchSize   int   `toml:"scan_batch_size"`
	} `toml:"index"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// LoadTOML attempts to load configuration from a .phpref.toml file.
// Returns (nil, nil) when the file does not exist.
func LoadTOML(projectRoot string) (*Config, error) {
	tomlPath := filepath.Join(projectRoot, ".phpref.toml")

	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		return nil, nil
	}

	return loadTOMLFile(tomlPath)
}

func loadTOMLFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", path, err)
	}

	var tc tomlConfig
	if err := toml.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default()
	cfg.Project.Root = tc.Project.Root
	cfg.Project.Name = tc.Project.Name
	if tc.Index.MaxFileSize > 0 {
		cfg.Index.MaxFileSize = tc.Index.MaxFileSize
	}
	if tc.Index.MaxFileCount > 0 {
		cfg.Index.MaxFileCount = tc.Index.MaxFileCount
	}
	cfg.Index.FollowSymlinks = tc.Index.FollowSymlinks
	cfg.Index.WatchMode = tc.Index.WatchMode
	if tc.Index.WatchDebounceMs > 0 {
		cfg.Index.WatchDebounceMs = tc.Index.WatchDebounceMs
	}
	if tc.Index.ScanSliceMs > 0 {
		cfg.Index.ScanSliceMs = tc.Index.ScanSliceMs
	}
	if tc.Index.ScanBatchSize > 0 {
		cfg.Index.ScanBatchSize = tc.Index.ScanBatchSize
	}
	if len(tc.Include) > 0 {
		cfg.Include = tc.Include
	}
	if len(tc.Exclude) > 0 {
		cfg.Exclude = tc.Exclude
	}

	resolveRoot(cfg, filepath.Dir(path))
	return cfg, nil
}
