package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"battlemediation/internal/ai"
	"battlemediation/internal/audit"
	"battlemediation/internal/controller"
	"battlemediation/internal/coordinator"
	"battlemediation/internal/network"
	"battlemediation/internal/room"
	"battlemediation/internal/simulator"
	"battlemediation/pkg/config"
	"battlemediation/pkg/logger"
)

var (
	addr       = flag.String("addr", "", "http service address (overrides config)")
	configFile = flag.String("config", "config.yml", "path to config file")
	logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	showCaller = flag.Bool("show-caller", false, "show caller information in logs")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		cfg = config.Default()
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *addr != "" {
		if host, port, err := net.SplitHostPort(*addr); err == nil {
			if host != "" {
				cfg.Server.Host = host
			}
			if p, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = p
			}
		}
	}

	level := parseLevel(cfg.Logging.Level)

	logBroadcaster := network.NewLogBroadcaster(1000)
	logger.InitLoggers(level, *showCaller)
	logger.InitStreamingLoggers(logBroadcaster, level, *showCaller)

	serverLogger := logger.NewColoredLogger("SERVER", logger.ColorBrightWhite)
	serverLogger.SetLevel(level)
	serverLogger.SetShowCaller(*showCaller)

	serverLogger.Info("starting battle mediation server on %s", cfg.GetAddr())

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			serverLogger.Fatal("failed to open audit store: %v", err)
		}
		defer auditStore.Close()
	}

	dex := simulator.NewFixtureDex()
	adapter := simulator.NewAdapter(dex)

	registry := room.NewRegistry()
	registry.StartIdleSweep(cfg.Room.IdleSweepInterval, cfg.Room.IdleTimeout)
	defer registry.StopIdleSweep()

	var kb *ai.KBClient
	if cfg.AI.KnowledgeBaseAddr != "" {
		kb, err = ai.NewKBClient(cfg.AI.KnowledgeBaseAddr)
		if err != nil {
			serverLogger.Warn("could not dial knowledge-base service, tier 5 will fall back: %v", err)
			kb = nil
		}
	}

	pvp := coordinator.NewPvPCoordinator(registry, adapter, auditStore)
	aiCoord := coordinator.NewAICoordinator(adapter, cfg.AI, kb, auditStore)
	ctl := controller.New(cfg.Socket, pvp, aiCoord, auditStore)

	router := mux.NewRouter()
	router.HandleFunc("/battle", ctl.HandleWebSocket)
	router.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/admin/logs", logBroadcaster.HandleAdminLogs)
	router.HandleFunc("/admin/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"rooms":        registry.Count(),
			"log_clients":  logBroadcaster.GetClientCount(),
			"log_buffered": logBroadcaster.GetStats()["buffer_size"],
		})
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", metricsHandler(registry, logBroadcaster)).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Socket.ReadTimeout,
		WriteTimeout: cfg.Socket.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverLogger.Fatal("server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	serverLogger.Info("received shutdown signal: %v", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		serverLogger.Warn("server forced to shutdown: %v", err)
	}
	serverLogger.Info("server gracefully stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

// metricsHandler is a Prometheus text-exposition stub (spec.md §6 lists
// /metrics as present but out of scope): enough gauges for an ops probe
// to scrape something real, not a full metrics pipeline.
func metricsHandler(registry *room.Registry, logBroadcaster *network.LogBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "# HELP battlemediation_rooms_active Rooms currently tracked by the registry.\n")
		fmt.Fprintf(w, "# TYPE battlemediation_rooms_active gauge\n")
		fmt.Fprintf(w, "battlemediation_rooms_active %d\n", registry.Count())
		fmt.Fprintf(w, "# HELP battlemediation_log_clients_active Admin log-stream clients currently connected.\n")
		fmt.Fprintf(w, "# TYPE battlemediation_log_clients_active gauge\n")
		fmt.Fprintf(w, "battlemediation_log_clients_active %d\n", logBroadcaster.GetClientCount())
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseLevel(s string) logger.LogLevel {
	switch s {
	case "debug":
		return logger.DEBUG
	case "warn":
		return logger.WARN
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}
