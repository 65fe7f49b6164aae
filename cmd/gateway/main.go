package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/mindengage-quizdocs/internal/api/http"
	"github.com/mind-engage/mindengage-quizdocs/internal/archive"
	auth "github.com/mind-engage/mindengage-quizdocs/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quizdocs/internal/config"
	"github.com/mind-engage/mindengage-quizdocs/internal/db"
	"github.com/mind-engage/mindengage-quizdocs/internal/extract"
	"github.com/mind-engage/mindengage-quizdocs/internal/ingest"
	"github.com/mind-engage/mindengage-quizdocs/internal/logger"
	"github.com/mind-engage/mindengage-quizdocs/internal/normalize"
	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
	"github.com/mind-engage/mindengage-quizdocs/internal/rbac"
	"github.com/mind-engage/mindengage-quizdocs/internal/storage"
)

func main() {
	cfg := config.FromEnv()
	log := logger.Must(cfg.LogMode, cfg.LogFile)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("gateway stopped", "err", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return err
	}
	defer dbh.Close()
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)

	// --- Storage + pipeline ---
	files, err := storage.NewFSStore(cfg.StorageRoot)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ids := quiz.UUIDIssuer{}
	svc := ingest.NewService(ingest.Deps{
		Store:          store,
		Files:          files,
		Extractor:      extract.NewRegistry(extract.WithMaxMemberBytes(cfg.MaxUploadBytes)),
		Unpacker:       archive.NewUnpacker(cfg.MaxImageEntryBytes, log),
		Normalizer:     normalize.New(files.Root(), ids, nil),
		IDs:            ids,
		Metrics:        ingest.NewMetrics(reg),
		Log:            log,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxImageBytes:  cfg.MaxImageEntryBytes,
	})
	if cfg.LegacyQuestionFallback {
		log.Warn("legacy question fallback enabled; course levels without a processed upload return every stored question")
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, api.RequestLogger(log), middleware.Recoverer)
	r.Use(api.NewHTTPMetrics(reg).Middleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		Ingest:         svc,
		Store:          store,
		Selector:       quiz.NewSelector(store, log, cfg.LegacyQuestionFallback),
		Files:          files,
		Log:            log,
		EnableAuth:     cfg.EnableAuth,
		Auth:           auth.NewAuthService(cfg.AuthHMACSecret),
		Instructor:     auth.Instructor{User: cfg.AdminUser, PassHash: cfg.AdminPassHash},
		Checker:        rbac.NewChecker(nil),
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxImageBytes:  cfg.MaxImageEntryBytes,
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "storage", files.Root(), "auth", cfg.EnableAuth)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
