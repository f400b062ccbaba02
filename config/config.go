// Package config ingests the asset server's boot-time settings. Everything
// beyond what the core needs to find its resources directory and bind
// address is treated as an external collaborator's concern (domain-settings,
// per spec), so this stays intentionally small next to a typical registry
// configuration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Version is the major/minor version of the configuration document. Major
// bumps mean structural changes; minor bumps are strictly additive.
type Version string

// CurrentVersion is the only version this package currently parses.
const CurrentVersion Version = "0.1"

// Config is the root configuration document for the asset server.
type Config struct {
	Version Version `yaml:"version"`

	// Resources is the directory under which map.json and files/ live.
	Resources string `yaml:"resources"`

	// Listen is the bind address the (external) transport listens on.
	// The core never dials or listens itself; this is forwarded to it.
	Listen string `yaml:"listen"`

	Pools struct {
		// Transfer is the TransferPool's worker count.
		Transfer int `yaml:"transfer"`
	} `yaml:"pools"`

	Bake struct {
		// ModelExtensions are file extensions treated as model assets.
		ModelExtensions []string `yaml:"modelExtensions"`
		// TextureExtensions are file extensions treated as texture assets,
		// subject to MetaStore's skybox opt-in gate.
		TextureExtensions []string `yaml:"textureExtensions"`
		// Version is the current bake version stamped on fresh AssetMeta.
		Version int `yaml:"version"`
	} `yaml:"bake"`

	Stats struct {
		// IntervalSeconds is the cadence of the liveness heartbeat the
		// server logs while its metrics namespace is registered; the
		// counters themselves are exposed continuously, not just once
		// per interval, for an external scraper to poll on its own
		// schedule.
		IntervalSeconds int `yaml:"intervalSeconds"`
		// DebugAddr, if set, serves the registered metrics namespace
		// over HTTP for scraping. Left empty, no debug listener starts.
		DebugAddr string `yaml:"debugAddr"`
	} `yaml:"stats"`
}

// Default returns a Config with the defaults this server boots with absent
// any file or environment override.
func Default() *Config {
	c := &Config{
		Version:   CurrentVersion,
		Resources: "./data",
		Listen:    ":7777",
	}
	c.Pools.Transfer = 50
	c.Bake.ModelExtensions = []string{"fbx"}
	c.Bake.TextureExtensions = []string{"png", "tga", "jpg"}
	c.Bake.Version = 1
	c.Stats.IntervalSeconds = 30
	return c
}

// Parse reads a YAML configuration document, falling back to Default()'s
// values for anything left unset, then applies ASSETD_-prefixed
// environment overrides for the handful of scalar fields operators
// commonly need to flip without editing the file.
func Parse(in []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(in, c); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if c.Version != CurrentVersion {
		return nil, fmt.Errorf("config: unsupported version %q", c.Version)
	}

	applyEnvOverrides(c)

	if c.Resources == "" {
		return nil, fmt.Errorf("config: resources directory must be set")
	}

	return c, nil
}

// ParseFile loads and parses the configuration document at path.
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// applyEnvOverrides mirrors the teacher's PREFIX_FIELD convention, but
// hand-written for this config's small, fixed field set rather than the
// reflective walk a larger configuration surface would need.
func applyEnvOverrides(c *Config) {
	if v, ok := os.LookupEnv("ASSETD_RESOURCES"); ok {
		c.Resources = v
	}
	if v, ok := os.LookupEnv("ASSETD_LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := os.LookupEnv("ASSETD_POOLS_TRANSFER"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pools.Transfer = n
		}
	}
	if v, ok := os.LookupEnv("ASSETD_BAKE_MODELEXTENSIONS"); ok {
		c.Bake.ModelExtensions = splitCSV(v)
	}
	if v, ok := os.LookupEnv("ASSETD_BAKE_TEXTUREEXTENSIONS"); ok {
		c.Bake.TextureExtensions = splitCSV(v)
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
