package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"idlerealm.ai/internal/persistence/localdb"
	persistlog "idlerealm.ai/internal/persistence/log"
	"idlerealm.ai/internal/protocol"
	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/tuning"
	"idlerealm.ai/internal/transport/ws"
)

func main() {
	var cfg serverConfig
	flag.StringVar(&cfg.Addr, "addr", ":8080", "http listen address")
	flag.StringVar(&cfg.DataDir, "data", "./data", "runtime data directory")
	flag.StringVar(&cfg.ConfigDir, "configs", "", "content directory (default: embedded content)")
	flag.StringVar(&cfg.TuningPath, "tuning", "", "path to tuning.yaml (default: built-in tuning)")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	sessLogger := log.New(os.Stdout, "[session] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := overlayEnv(cfg, nil)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	var cats *catalogs.Catalogs
	if dir := strings.TrimSpace(cfg.ConfigDir); dir != "" {
		cats, err = catalogs.Load(dir)
	} else {
		cats, err = catalogs.LoadDefault()
	}
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tune := tuning.Defaults()
	if tp := strings.TrimSpace(cfg.TuningPath); tp != "" {
		tune, err = tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	local, err := localdb.Open(filepath.Join(cfg.DataDir, "saves.sqlite"))
	if err != nil {
		logger.Fatalf("open local store: %v", err)
	}
	defer local.Close()

	remote, err := buildRemote(cfg.Remote, logger)
	if err != nil {
		logger.Fatalf("init remote store: %v", err)
	}
	if remote == nil {
		logger.Printf("remote store disabled (%sR2_ENDPOINT not set)", envPrefix)
	}
	// Closed after the HTTP server so final session saves still upload.
	defer remote.Close()

	var journal *persistlog.Journal
	if cfg.Journal {
		journal = persistlog.NewJournal(cfg.DataDir, func(err error) { logger.Printf("journal: %v", err) })
		defer journal.Close()
	}

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("protocol schemas: %v", err)
	}

	deps := sessionDeps{cats: cats, tune: tune, local: local, remote: remote, journal: journal, logger: sessLogger}
	wsSrv := ws.NewServer(deps.opener(), cats.Digests(), tuningDigest(tune), validator, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	if cfg.Metrics {
		mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
			rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
			fmt.Fprintf(rw, "# HELP idlerealm_sessions Connected characters.\n")
			fmt.Fprintf(rw, "# TYPE idlerealm_sessions gauge\n")
			fmt.Fprintf(rw, "idlerealm_sessions %d\n", wsSrv.Active())
			writeMirrorMetrics(rw, remote)
		})
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
		if err := wsSrv.Shutdown(ctx2); err != nil {
			logger.Printf("ws shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s (data=%s)", cfg.Addr, cfg.DataDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-stopped
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
