package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kasader/rdt/internal/logging"
	"github.com/kasader/rdt/rdt"
)

// Config is the full file configuration for the rdt commands.
type Config struct {
	Protocol    rdt.Config
	LogLevel    string
	MetricsAddr string
}

type fileConfig struct {
	Protocol protocolTable `toml:"protocol"`
	Log      logTable      `toml:"log"`
	Metrics  metricsTable  `toml:"metrics"`
}

type protocolTable struct {
	MaxDatagram      int     `toml:"max_datagram"`
	WindowSize       int     `toml:"window_size"`
	InitialRTT       string  `toml:"initial_rtt"`
	InitialDeviation string  `toml:"initial_deviation"`
	MinTimeout       string  `toml:"min_timeout"`
	MaxTimeout       string  `toml:"max_timeout"`
	FinTimeoutFactor float64 `toml:"fin_timeout_factor"`
	MaxRetries       int     `toml:"max_retries"`
	Linger           string  `toml:"linger"`
}

type logTable struct {
	Level string `toml:"level"`
}

type metricsTable struct {
	ListenAddr string `toml:"listen_addr"`
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		Protocol: rdt.DefaultConfig(),
		LogLevel: "info",
	}
}

// Load reads path and overlays every key it defines on Default.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return apply(Default(), raw, meta)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed: %w", err)
	}
	return apply(Default(), raw, meta)
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config has unknown key %q", undecoded[0].String())
	}

	p := &cfg.Protocol
	if meta.IsDefined("protocol", "max_datagram") {
		p.MaxDatagram = raw.Protocol.MaxDatagram
	}
	if meta.IsDefined("protocol", "window_size") {
		p.WindowSize = raw.Protocol.WindowSize
	}
	if meta.IsDefined("protocol", "fin_timeout_factor") {
		p.FinTimeoutFactor = raw.Protocol.FinTimeoutFactor
	}
	if meta.IsDefined("protocol", "max_retries") {
		p.MaxRetries = raw.Protocol.MaxRetries
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"initial_rtt", raw.Protocol.InitialRTT, &p.InitialRTT},
		{"initial_deviation", raw.Protocol.InitialDeviation, &p.InitialDeviation},
		{"min_timeout", raw.Protocol.MinTimeout, &p.MinTimeout},
		{"max_timeout", raw.Protocol.MaxTimeout, &p.MaxTimeout},
		{"linger", raw.Protocol.Linger, &p.Linger},
	}
	for _, d := range durations {
		if !meta.IsDefined("protocol", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse protocol.%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("log", "level") {
		level := strings.TrimSpace(raw.Log.Level)
		if _, ok := logging.ParseLevel(level); !ok {
			return Config{}, fmt.Errorf("unknown log.level %q", level)
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("metrics", "listen_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.Metrics.ListenAddr)
	}

	if err := cfg.Protocol.Validate(); err != nil {
		return Config{}, fmt.Errorf("protocol config invalid: %w", err)
	}
	return cfg, nil
}
