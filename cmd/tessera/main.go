// Command tessera runs the schema-driven data layer: it loads the declared
// schema from the config file, connects to the store, reconciles structure,
// and serves the HTTP surface.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tessera-db/tessera/internal/backup"
	backupminio "github.com/tessera-db/tessera/internal/backup/minio"
	"github.com/tessera-db/tessera/internal/config"
	"github.com/tessera-db/tessera/internal/database"
	"github.com/tessera-db/tessera/internal/logger"
	"github.com/tessera-db/tessera/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", "tessera.yaml", "path to the configuration file")
		clean      = flag.Bool("clean", false, "reset the schema at boot (snapshot and restore around the reset)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config: " + err.Error())
		os.Exit(1)
	}

	log := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.SetGlobal(log)

	if err := run(cfg, log, *clean); err != nil {
		log.Fatal(err.Error())
	}
}

func run(cfg *config.Config, log *logger.Logger, clean bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	spec, err := cfg.Spec()
	if err != nil {
		return err
	}

	pool, err := database.Connect(ctx, &database.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime.Std(),
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime.Std(),
		ConnectTimeout:  cfg.Database.ConnectTimeout.Std(),
		AcquireTimeout:  cfg.Database.AcquireTimeout.Std(),
	})
	if err != nil {
		return err
	}

	store, err := buildBackupStore(ctx, cfg)
	if err != nil {
		pool.Close()
		return err
	}

	mode := database.ModeTrust
	if cfg.Database.Mode == "verify" {
		mode = database.ModeVerify
	}

	db, err := database.Open(ctx, pool, spec,
		database.WithMode(mode),
		database.WithBackupStore(store),
		database.WithLogger(log),
	)
	if err != nil {
		pool.Close()
		return err
	}
	defer db.Close()

	if clean {
		log.Warn("clean flag set, resetting schema with backup")
		if err := db.Reset(ctx, true); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(db, log),
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Infof("listening on %s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func buildBackupStore(ctx context.Context, cfg *config.Config) (backup.Store, error) {
	if cfg.Backup.Target == "minio" {
		return backupminio.New(ctx, &backupminio.Config{
			Endpoint:  cfg.Backup.Minio.Endpoint,
			AccessKey: cfg.Backup.Minio.AccessKey,
			SecretKey: cfg.Backup.Minio.SecretKey,
			UseSSL:    cfg.Backup.Minio.UseSSL,
			Region:    cfg.Backup.Minio.Region,
			Bucket:    cfg.Backup.Minio.Bucket,
			Key:       cfg.Backup.Minio.Key,
		})
	}
	return backup.NewFileStore(cfg.Backup.Path), nil
}
