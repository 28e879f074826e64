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

	"github.com/dukerupert/annex/internal/annostore"
	"github.com/dukerupert/annex/internal/config"
	"github.com/dukerupert/annex/internal/database"
	"github.com/dukerupert/annex/internal/linksync"
	"github.com/dukerupert/annex/internal/logging"
	"github.com/dukerupert/annex/internal/model"
	"github.com/dukerupert/annex/internal/notecodec"
	"github.com/dukerupert/annex/internal/paperless"
	"github.com/dukerupert/annex/internal/secrets"
	"github.com/dukerupert/annex/internal/serializer"
	"github.com/dukerupert/annex/internal/server"
	"github.com/dukerupert/annex/internal/store"
)

// serverUser is the fallback user source when no secrets passphrase is
// configured: the scheduler syncs with the server's own credentials only.
type serverUser struct {
	token string
}

func (s serverUser) ListWithTokens(ctx context.Context) ([]model.User, error) {
	return []model.User{{Username: "server", PaperlessToken: s.token}}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	client, err := paperless.NewClient(cfg.PaperlessURL, cfg.PaperlessToken, logger.With("component", "paperless"))
	if err != nil {
		log.Fatalf("paperless client: %v", err)
	}

	ser, err := serializer.Get(cfg.SerializerName)
	if err != nil {
		log.Fatalf("serializer: %v", err)
	}
	headerTemplate := ""
	if cfg.HeaderTemplate != "" {
		raw, err := os.ReadFile(cfg.HeaderTemplate)
		if err != nil {
			log.Fatalf("read header template: %v", err)
		}
		headerTemplate = string(raw)
	}
	codec, err := notecodec.New(ser, headerTemplate)
	if err != nil {
		log.Fatalf("note codec: %v", err)
	}

	storage, err := annostore.New(cfg.StorageBackend, db, client, codec, logger.With("component", "storage"))
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	syncer := linksync.NewSyncer(cfg.LinkFieldName, cfg.BaseURL, logger.With("component", "linksync"))
	srv := server.New(db, client, storage, syncer, logger)

	if cfg.SyncEnabled {
		var users linksync.UserSource
		if cfg.SecretsPassphrase != "" {
			box, err := secrets.NewBox(cfg.SecretsPassphrase)
			if err != nil {
				log.Fatalf("secrets: %v", err)
			}
			users = store.NewUserStore(db, box)
		} else {
			logger.Warn("no secrets passphrase set, syncing with server credentials only")
			users = serverUser{token: cfg.PaperlessToken}
		}

		newClient := func(token string) (*paperless.Client, error) {
			return paperless.NewClient(cfg.PaperlessURL, token, logger.With("component", "paperless"))
		}
		sched := linksync.NewScheduler(syncer, users, newClient, cfg.SyncInterval, logger.With("component", "scheduler"))
		sched.Start(context.Background())
		defer sched.Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Annex running at http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
