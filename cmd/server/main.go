package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"courseform/internal/adapters/attachment"
	"courseform/internal/adapters/email"
	web "courseform/internal/adapters/http"
	"courseform/internal/adapters/http/perf"
	storage "courseform/internal/adapters/storage"
	"courseform/internal/adapters/storage/draft"
	"courseform/internal/adapters/storage/submission"
	"courseform/internal/adapters/submit"
	"courseform/internal/application/orchestrators"
	"courseform/internal/config"
	domain "courseform/internal/domain/course"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configFile := flag.String("config", "", "path to a YAML config file (default: ./courseform.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := perf.NewCollector(perf.DefaultRingSize)

	spool, err := attachment.NewLocalSpool(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to open upload dir: %v", err)
	}
	// Covers sessions that expire in Redis and files left behind by a restart.
	spool.StartJanitor(ctx, time.Minute, cfg.DraftTTL)

	store, closeStore, err := newDraftStore(ctx, cfg, func(form domain.Form) {
		orchestrators.ExecuteExpireForm(form, orchestrators.CourseFormDeps{Spool: spool})
	})
	if err != nil {
		log.Fatalf("failed to open draft store: %v", err)
	}
	defer closeStore()

	policy, err := domain.PolicyByName(strings.ToLower(cfg.SlotPolicy))
	if err != nil {
		log.Fatalf("invalid slot policy: %v", err)
	}

	services := &web.Services{
		DraftStore: draft.NewTimedStore(store, collector, 0),
		Spool:      spool,
		Submitter:  submit.NewLogSubmitter(slog.Default()),
		Policy:     policy,
	}
	if strings.EqualFold(cfg.Submitter, "sqlite") {
		db, err := storage.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open submission ledger: %v", err)
		}
		defer db.Close()
		ledger := submission.NewSQLiteStore(storage.NewTimedDB(db, collector, cfg.SlowQueryMS))
		services.Submitter = submit.NewLedgerSubmitter(ledger)
		services.Submissions = ledger
		slog.Info("submission_ledger_ready", "path", cfg.SQLitePath)
	}
	if to := cfg.NotifyRecipients(); len(to) > 0 {
		services.Submitter = &submit.NotifySubmitter{
			Next:   services.Submitter,
			Sender: newSender(cfg),
			To:     to,
			Files:  spool,
		}
	}
	if !cfg.IsProduction() {
		services.Collector = collector
	}

	handler := web.NewMux(ctx, services, web.Options{
		CSRFKey:            csrfKey(cfg),
		SecureCookies:      cfg.IsProduction(),
		TrustedOrigins:     trustedOrigins(cfg.Addr),
		DraftTTL:           cfg.DraftTTL,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		SlowRequestMs:      cfg.SlowRequestMS,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server_shutdown_failed", "error", err.Error())
		}
	}()

	slog.Info("server_starting",
		"version", version,
		"addr", cfg.Addr,
		"env", cfg.Env,
		"draft_store", cfg.DraftStore,
		"slot_policy", cfg.SlotPolicy,
		"submitter", cfg.Submitter,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	slog.Info("server_stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newDraftStore opens the configured draft store. The returned func releases it.
// onExpire is called for sessions the memory store sweeps.
func newDraftStore(ctx context.Context, cfg config.Config, onExpire func(domain.Form)) (draft.Store, func(), error) {
	if strings.EqualFold(cfg.DraftStore, "redis") {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := draft.NewRedisStore(client, cfg.DraftTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			client.Close()
			return nil, nil, err
		}
		slog.Info("draft_store_ready", "kind", "redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return store, func() { client.Close() }, nil
	}

	store := draft.NewMemoryStore(cfg.DraftTTL)
	store.StartSweeper(ctx, time.Minute, onExpire)
	slog.Info("draft_store_ready", "kind", "memory", "ttl", cfg.DraftTTL.String())
	return store, func() {}, nil
}

// newSender returns the Resend sender when an API key is set, otherwise a logging no-op.
func newSender(cfg config.Config) email.Sender {
	if cfg.ResendAPIKey == "" {
		slog.Info("email_sender", "kind", "noop")
		return email.NewNoopSender()
	}
	slog.Info("email_sender", "kind", "resend", "from", cfg.NotifyFrom)
	return email.NewResendSender(cfg.ResendAPIKey, cfg.NotifyFrom)
}

// csrfKey returns the configured key, or a random one outside production.
func csrfKey(cfg config.Config) []byte {
	key, ok, err := cfg.CSRFKeyBytes()
	if err != nil {
		log.Fatal(err)
	}
	if ok {
		return key
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	slog.Warn("csrf_key_random", "hint", "form posts won't survive a restart; set COURSEFORM_CSRF_KEY")
	return key
}

// trustedOrigins allows the local dev hosts for the configured port.
func trustedOrigins(addr string) []string {
	port := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		port = addr[i+1:]
	}
	return []string{"localhost:" + port, "127.0.0.1:" + port}
}
