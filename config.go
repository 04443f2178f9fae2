package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"emberfall/server/logging"
)

const (
	defaultListenAddr  = ":8080"
	defaultTickRate    = 15
	defaultCatalogPath = "config/chains.yaml"
)

// ServiceConfig captures the tunables for one decay service process.
type ServiceConfig struct {
	ListenAddr  string
	TickRate    int
	CatalogPath string
	Seed        int64
	Logging     logging.Config
}

// DefaultServiceConfig returns the settings used when no config file is given.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:  defaultListenAddr,
		TickRate:    defaultTickRate,
		CatalogPath: defaultCatalogPath,
		Seed:        1,
		Logging:     logging.DefaultConfig(),
	}
}

type fileConfig struct {
	Listen      string   `toml:"listen"`
	TickRate    int      `toml:"tick_rate"`
	Catalog     string   `toml:"catalog"`
	Seed        int64    `toml:"seed"`
	LogSinks    []string `toml:"log_sinks"`
	LogSeverity string   `toml:"log_severity"`
	LogBuffer   int      `toml:"log_buffer"`
	LogRaw      bool     `toml:"log_raw_console"`
}

func loadServiceConfig(path string) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("load service config: %w", err)
	}

	if meta.IsDefined("listen") {
		addr := strings.TrimSpace(raw.Listen)
		if addr != "" {
			cfg.ListenAddr = addr
		}
	}

	if meta.IsDefined("tick_rate") {
		if raw.TickRate <= 0 {
			return ServiceConfig{}, fmt.Errorf("tick_rate must be positive, got %d", raw.TickRate)
		}
		cfg.TickRate = raw.TickRate
	}

	if meta.IsDefined("catalog") {
		catalog := strings.TrimSpace(raw.Catalog)
		if catalog != "" {
			cfg.CatalogPath = catalog
		}
	}

	if meta.IsDefined("seed") {
		cfg.Seed = raw.Seed
	}

	if meta.IsDefined("log_sinks") {
		cfg.Logging.EnabledSinks = normalizeSinks(raw.LogSinks)
	}

	if meta.IsDefined("log_severity") {
		severity, err := parseSeverity(raw.LogSeverity)
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.Logging.MinimumSeverity = severity
	}

	if meta.IsDefined("log_buffer") {
		cfg.Logging.BufferSize = raw.LogBuffer
	}

	if meta.IsDefined("log_raw_console") {
		cfg.Logging.Console.Raw = raw.LogRaw
	}

	return cfg, nil
}

func normalizeSinks(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func parseSeverity(name string) (logging.Severity, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "debug":
		return logging.SeverityDebug, nil
	case "info":
		return logging.SeverityInfo, nil
	case "warn":
		return logging.SeverityWarn, nil
	case "error":
		return logging.SeverityError, nil
	default:
		return 0, fmt.Errorf("unknown log severity %q", name)
	}
}
