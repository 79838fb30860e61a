// Command server receives one stream over UDP and writes it to a file or
// stdout.
package main

import (
	"bufio"
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
	listen := flag.String("listen", "127.0.0.1:7777", "UDP address to listen on")
	outPath := flag.String("out", "-", "output file, - for stdout")
	cfgPath := flag.String("config", "", "TOML config file")
	flag.Parse()

	if err := run(*listen, *outPath, *cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(listen, outPath, cfgPath string) error {
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
	log := logging.New("server")

	reg := prometheus.NewRegistry()
	metrics := rdt.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg, log)
	}

	out, err := openOutput(outPath)
	if err != nil {
		return err
	}

	ch, err := transport.Listen(listen)
	if err != nil {
		out.Close()
		return err
	}
	defer ch.Close()
	log.Info().Str("addr", ch.LocalAddr().String()).Msg("listening")

	receiver, err := rdt.NewReceiver(ch, cfg.Protocol, rdt.WithLogger(log), rdt.WithMetrics(metrics))
	if err != nil {
		out.Close()
		return err
	}
	n, err := writeStream(out, receiver.Recv)
	if err != nil {
		return err
	}
	log.Info().Int64("bytes", n).Msg("stream complete")
	return nil
}

// openOutput opens the sink; "-" is stdout, which is never closed.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return f, nil
}

// writeStream buffers recv's output into dst and closes dst. Flush and close
// errors are reported, so a short write to a file is never silent.
func writeStream(dst io.WriteCloser, recv func(io.Writer) (int64, error)) (int64, error) {
	w := bufio.NewWriter(dst)
	n, err := recv(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := dst.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	return n, err
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
