package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/waypoint"
)

// Read reads a config from the given file, substituting environment variables first. Files
// ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func Read(
	ctx context.Context,
	filePath string,
	logger logging.Logger,
) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	logger logging.Logger,
) (*Config, error) {
	unprocessedConfig := Config{
		ConfigFilePath: originalPath,
	}
	if isYAML(originalPath) {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if err := yaml.UnmarshalStrict(data, &unprocessedConfig); err != nil {
			return nil, errors.Wrap(err, "failed to decode Config from yaml")
		}
	} else if err := json.NewDecoder(r).Decode(&unprocessedConfig); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	return processConfig(ctx, &unprocessedConfig, logger)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// processConfig validates the config and loads its waypoints. A waypoint file given by a relative
// path is resolved against the directory of the config file.
func processConfig(ctx context.Context, cfg *Config, logger logging.Logger) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}

	wpCfg := *cfg.Waypoints
	if wpCfg.File != "" && !filepath.IsAbs(wpCfg.File) && cfg.ConfigFilePath != "" {
		wpCfg.File = filepath.Join(filepath.Dir(cfg.ConfigFilePath), wpCfg.File)
	}
	store, err := waypoint.Load(&wpCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load waypoints")
	}
	cfg.Store = store
	logger.Infow("loaded waypoints", "count", store.Count(), "source", waypointSource(&wpCfg))
	return cfg, nil
}

func waypointSource(cfg *waypoint.Config) string {
	if cfg.File != "" {
		return cfg.File
	}
	return "inline"
}
