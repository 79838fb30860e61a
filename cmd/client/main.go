// Command client reads a file or stdin and sends it to a server over UDP.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/kasader/rdt/internal/config"
	"github.com/kasader/rdt/internal/logging"
	"github.com/kasader/rdt/rdt"
	"github.com/kasader/rdt/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7777", "server UDP address")
	inPath := flag.String("in", "-", "input file, - for stdin")
	cfgPath := flag.String("config", "", "TOML config file")
	flag.Parse()

	if err := run(*addr, *inPath, *cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, inPath, cfgPath string) error {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logging.ConfigureRuntime()
	if !logging.SetLevel(cfg.LogLevel) {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	log := logging.New("client")

	reg := prometheus.NewRegistry()
	metrics := rdt.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg, log)
	}

	data, err := readInput(inPath)
	if err != nil {
		return err
	}

	ch, err := transport.Dial(addr)
	if err != nil {
		return err
	}
	defer ch.Close()

	sender, err := rdt.NewSender(ch, cfg.Protocol, rdt.WithLogger(log), rdt.WithMetrics(metrics))
	if err != nil {
		return err
	}
	if err := sender.Send(data); err != nil {
		return err
	}
	log.Info().Int("bytes", len(data)).Str("addr", addr).Msg("stream delivered")
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
