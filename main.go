package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/logsleuth/logsleuth/internal/config"
	"github.com/logsleuth/logsleuth/internal/monitor"
	"github.com/logsleuth/logsleuth/internal/policy"
	"github.com/logsleuth/logsleuth/internal/rpc"
	"github.com/logsleuth/logsleuth/internal/splunk"
	"github.com/logsleuth/logsleuth/internal/store"
	"github.com/logsleuth/logsleuth/internal/tools"
	"github.com/logsleuth/logsleuth/internal/trace"
	"github.com/logsleuth/logsleuth/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting %s %s", cfg.Server.Name, cfg.Server.Version)
	log.Printf("Splunk backend: %s://%s:%d", cfg.Splunk.Scheme, cfg.Splunk.Host, cfg.Splunk.Port)

	backend := splunk.NewRESTClient(cfg.Splunk)
	engine := splunk.NewEngine(backend, cfg.Splunk.Timeout, cfg.MaxResultsDefault)
	retriever := trace.NewRetriever(engine)

	var auditStore *store.Store
	if cfg.AuditDBPath != "" {
		auditStore, err = store.Open(cfg.AuditDBPath)
		if err != nil {
			log.Fatalf("Failed to open audit store: %v", err)
		}
		defer auditStore.Close()
		log.Printf("Audit store: %s", cfg.AuditDBPath)
	}

	var recorder monitor.CheckRecorder
	var auditor tools.Auditor
	if auditStore != nil {
		recorder = auditStore
		auditor = auditStore
	}
	supervisor := monitor.NewSupervisor(engine, recorder)

	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	toolset := tools.New(engine, retriever, supervisor, backend, policyEngine, auditor, cfg.MaxResultsDefault)

	dispatcher := rpc.NewDispatcher()
	tools.RegisterRPC(dispatcher, toolset)

	server := transport.NewServer(cfg.Server.Name, cfg.Server.Version, dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Listening on %s", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")

		supervisor.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARN: failed to shut down server gracefully: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
	log.Println("Server stopped")
}
