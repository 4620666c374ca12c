package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"filedesk/internal/account"
	"filedesk/internal/blob"
	"filedesk/internal/config"
	"filedesk/internal/db"
	"filedesk/internal/files"
	"filedesk/internal/logger"
	"filedesk/internal/server"
	"filedesk/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "filedesk: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "filedesk: init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("backend stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

// stores holds the metadata side of the service. users and meta are the same
// value; dbConn is nil when metadata lives in memory.
type stores struct {
	meta   files.MetadataStore
	users  account.Store
	pinger server.Pinger
	dbConn *sql.DB
}

func (s stores) Close() error {
	if s.dbConn == nil {
		return nil
	}
	return s.dbConn.Close()
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	st, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	blobs, err := buildBlobStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	policy, err := files.ParsePolicy(cfg.Upload.Policy)
	if err != nil {
		return err
	}

	svc := files.NewService(st.meta, blobs,
		files.WithPolicy(policy),
		files.WithLogger(log.Named("files").Logger),
	)

	srv := server.New(server.Config{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		Version:           cfg.Build.Version,
		MaxUploadBytes:    cfg.Upload.MaxBytes,
		Files:             svc,
		Auth:              authConfig(cfg.Auth, account.NewAuthenticator(st.users, log.Named("account").Logger)),
		DB:                st.pinger,
		Logger:            log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", cfg.Build.Version),
			zap.String("commit", cfg.Build.Commit),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("upload_policy", cfg.Upload.Policy),
		)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info("shutdown complete")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

// openStores connects to PostgreSQL and migrates it when a URL is set, and
// otherwise falls back to the in-memory store.
func openStores(ctx context.Context, dc config.DatabaseConfig, log *logger.Logger) (stores, error) {
	if dc.URL == "" {
		log.Warn("database.url not set; metadata and users are kept in memory and lost on restart")
		return memoryStores(), nil
	}

	conn, err := db.OpenDB(ctx, dc.URL, db.PoolConfig{
		MaxOpenConns:    dc.MaxOpenConns,
		MaxIdleConns:    dc.MaxIdleConns,
		ConnMaxLifetime: dc.ConnMaxLifetime,
	})
	if err != nil {
		return stores{}, fmt.Errorf("connect database: %w", err)
	}

	log.Info("running migrations")
	res, err := db.RunMigrations(dc.URL)
	if err != nil {
		_ = conn.Close()
		return stores{}, fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrations complete", zap.Uint("version", res.Version), zap.Bool("dirty", res.Dirty))

	pg := store.NewPostgres(conn)
	return stores{meta: pg, users: pg, pinger: pg, dbConn: conn}, nil
}

func memoryStores() stores {
	m := store.NewMemory()
	return stores{meta: m, users: m}
}

func buildBlobStore(ctx context.Context, sc config.StorageConfig) (files.BlobStore, error) {
	switch sc.Backend {
	case "", "disk":
		return blob.NewDisk(sc.Dir)
	case "minio":
		return blob.NewMinIO(ctx, blob.MinIOConfig{
			Endpoint:  sc.MinIO.Endpoint,
			AccessKey: sc.MinIO.AccessKey,
			SecretKey: sc.MinIO.SecretKey,
			Bucket:    sc.MinIO.Bucket,
		})
	}
	return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
}

func authConfig(ac config.AuthConfig, authn *account.Authenticator) server.AuthConfig {
	return server.AuthConfig{
		Authenticator: authn,
		SessionSecret: ac.SessionSecret,
		SessionTTL:    ac.SessionTTL,
		CookieName:    ac.CookieName,
		CookieSecure:  ac.CookieSecure,
		LoginRate:     rate.Limit(ac.LoginRate),
		LoginBurst:    ac.LoginBurst,
	}
}
