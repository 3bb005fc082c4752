package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"collegia.org/internal/access"
	"collegia.org/internal/audit"
	"collegia.org/internal/config"
	"collegia.org/internal/feed"
	"collegia.org/internal/fees"
	"collegia.org/internal/httpapi"
	"collegia.org/internal/obs"
	"collegia.org/internal/store/pg"
	"collegia.org/internal/workflow"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	access.SetSecret(cfg.AuthSecret)

	var db *sql.DB
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Stores: postgres when a DSN is configured, in-memory otherwise.
	var (
		identities    access.IdentityStore
		directory     access.DirectoryStore
		workflowStore workflow.Store
		primarySink   audit.Sink
	)
	if db != nil {
		pgStore := pg.New(db)
		identities = pgStore
		directory = pgStore
		workflowStore = pg.NewWorkflowStore(db)
		primarySink = pg.NewAuditSink(pgStore)
	} else {
		mem := access.NewMemoryStore()
		identities = mem
		directory = mem
		workflowStore = workflow.NewInMemory()
		primarySink = audit.LogSink{}
	}

	liveFeed := feed.New()
	rec := audit.NewRecorder(
		audit.MultiSink{primarySink, liveFeed.Sink()},
		audit.WithBuffer(cfg.AuditBuffer),
	)

	accessSvc, err := access.NewService(identities, directory)
	if err != nil {
		log.Fatalf("access service: %v", err)
	}
	resolver, err := access.NewResolver(identities)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	guard, err := access.NewGuard(directory, rec)
	if err != nil {
		log.Fatalf("guard: %v", err)
	}
	workflowSvc, err := workflow.NewService(workflowStore, guard, rec)
	if err != nil {
		log.Fatalf("workflow service: %v", err)
	}
	feeLedger := fees.NewInMemory()

	api := httpapi.New(httpapi.Options{
		Probe:    httpapi.ReadyProbe{DB: db},
		Version:  version,
		Access:   accessSvc,
		Resolver: resolver,
		Workflow: workflowSvc,
		Fees:     feeLedger,
		Recorder: rec,
		Feed:     liveFeed,
		TokenTTL: cfg.TokenTTL,
	})

	handler := api.Handler()
	handler = httpapi.Logging(handler)
	handler = httpapi.RateLimit(handler, cfg.RateLimitBurst, cfg.RateLimitRPS)
	handler = httpapi.MaxBodyBytes(handler, cfg.MaxBodyBytes)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting collegia-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	// Drain the audit queue while the database is still reachable.
	rec.Close()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
