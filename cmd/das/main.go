// cmd/das/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"das-service/internal/api"
	"das-service/internal/api/handlers"
	"das-service/internal/config"
	"das-service/internal/core/auth"
	"das-service/internal/core/das"
	"das-service/internal/core/report"
	"das-service/internal/logger"
	"das-service/internal/monitoring"
	"das-service/internal/pdftext"
	"das-service/internal/storage"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName   = "das-service"
	purgeInterval = 10 * time.Minute
)

// --- Helper Functions ---

func openStore(ctx context.Context, cfg config.StorageConfig, zl *zap.Logger) (storage.Store, *firestore.Client, error) {
	if cfg.Backend != config.BackendFirestore {
		return storage.NewMemoryStore(time.Now), nil, nil
	}

	client, err := storage.NewFirestoreClient(ctx, cfg.ProjectID, cfg.DatabaseID)
	if err != nil {
		return nil, nil, err
	}
	zl.Info("Conectado com sucesso ao Firestore", zap.String("project", cfg.ProjectID), zap.String("collection", cfg.Collection))
	return storage.NewFirestoreStore(client, cfg.Collection, zl), client, nil
}

// purgeLoop drops expired records from the in-memory store.
func purgeLoop(ctx context.Context, mem *storage.MemoryStore, zl *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mem.Purge(); n > 0 {
				zl.Debug("registros expirados removidos", zap.Int("count", n))
			}
		}
	}
}

func userStore(cfg config.AuthConfig, client *firestore.Client, zl *zap.Logger) auth.UserStore {
	if cfg.AdminPasswordHash == "" && client != nil {
		return auth.NewFirestoreUsers(client)
	}
	if cfg.AdminPasswordHash == "" {
		zl.Warn("ADMIN_PASSWORD_HASH não configurado: login administrativo desativado")
	}
	return auth.NewStaticUsers(cfg.AdminUsername, cfg.AdminPasswordHash)
}

// --- Main Service Runner ---
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: configuração inválida: %v", err)
	}

	zl, err := logger.New(cfg.Server.Mode, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer zl.Sync()
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, client, err := openStore(ctx, cfg.Storage, zl)
	if err != nil {
		zl.Fatal("Erro ao inicializar armazenamento", zap.Error(err))
	}
	if client != nil {
		defer client.Close()
	}

	collector := monitoring.NewCollector(zl)
	dasService := das.NewService(zl, das.WithObserver(collector))
	authService := auth.NewService(userStore(cfg.Auth, client, zl), []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, zl)

	router := api.NewRouter(api.Handlers{
		Documents: handlers.NewDocumentHandler(
			dasService,
			pdftext.NewExtractor(zl),
			store,
			report.NewService(),
			handlers.DocumentOptions{Expiry: cfg.Storage.Expiry(), MaxUploadBytes: cfg.Server.MaxUploadBytes()},
			zl,
		),
		Admin:  handlers.NewAdminHandler(authService, store, cfg.Auth.TokenTTL, cfg.Server.Mode == gin.ReleaseMode, zl),
		Health: handlers.NewHealthHandler(serviceName, collector),
	}, authService, cfg.Server.CORSOrigins, zl)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if mem, ok := store.(*storage.MemoryStore); ok {
		g.Go(func() error {
			purgeLoop(gctx, mem, zl)
			return nil
		})
	}
	g.Go(func() error {
		zl.Info("🚀 DAS Service (Go) iniciado", zap.String("porta", cfg.Server.Port), zap.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zl.Fatal("Falha no servidor DAS", zap.Error(err))
	}
	zl.Info("DAS Service encerrado")
}
