package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"swapmarket/config"
	"swapmarket/core/events"
	swapstate "swapmarket/core/state"
	"swapmarket/native/swap"
	"swapmarket/observability/logging"
	"swapmarket/registry"
	"swapmarket/rpc"
	"swapmarket/storage"
)

const shutdownGrace = 5 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SWAPD_ENV"))
	logger := logging.Setup("swapd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	engine := swap.NewEngine()
	engine.SetState(swapstate.NewManager(db))

	resolver, err := buildResolver(cfg)
	if err != nil {
		logger.Error("Failed to wire registries", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetRegistries(resolver)

	recorder := events.NewRecorder(cfg.EventBuffer)
	engine.SetEmitter(recorder)

	server := rpc.NewServer(engine, recorder)

	rpcSrv := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("addr", cfg.RPCAddress))
		if err := rpcSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("Starting metrics server", slog.String("addr", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Server failed", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = rpcSrv.Shutdown(ctx)
	_ = metricsSrv.Shutdown(ctx)
}

func buildResolver(cfg *config.Config) (swap.RegistryResolver, error) {
	resolver := registry.NewStaticResolver()
	for _, entry := range cfg.Registries {
		addr, err := parseRegistryAddress(entry.Address)
		if err != nil {
			return nil, err
		}
		if cfg.DevMode && strings.TrimSpace(entry.Endpoint) == "" {
			resolver.Register(addr, registry.NewMemory())
			continue
		}
		client, err := registry.NewClient(entry.Endpoint)
		if err != nil {
			return nil, err
		}
		resolver.Register(addr, client)
	}
	return resolver, nil
}

func parseRegistryAddress(raw string) ([20]byte, error) {
	var out [20]byte
	cleaned := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	if len(cleaned) != 40 {
		return out, fmt.Errorf("registry address must be 20 bytes: %q", raw)
	}
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, fmt.Errorf("invalid registry address %q: %w", raw, err)
	}
	copy(out[:], decoded)
	return out, nil
}
