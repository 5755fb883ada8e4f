package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"expat-market.storefront/internal/config"
	"expat-market.storefront/internal/domain/entities"
	"expat-market.storefront/internal/infrastructure/backend"
	"expat-market.storefront/internal/infrastructure/sessionstore"
	"expat-market.storefront/internal/interfaces/cli"
	"expat-market.storefront/internal/usecases"
	"expat-market.storefront/pkg/logger"
	"expat-market.storefront/pkg/redis"
)

const flushTimeout = 5 * time.Second

var (
	loadDotenv       = godotenv.Load
	loadCfg          = config.Load
	initLog          = logger.Init
	initRedis        = redis.Init
	closeRedis       = redis.Close
	newSnapshotStore = func(keyHex, prefix string, ttl time.Duration) (sessionstore.KV, error) {
		return redis.NewSnapshotStore(keyHex, prefix, ttl)
	}
	newBackendClient = func(baseURL string, timeout time.Duration) (*backend.Client, error) {
		return backend.NewClient(baseURL, timeout)
	}

	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	defer logger.Sync()

	kv, closeKV, err := buildKV(cfg)
	if err != nil {
		return err
	}
	defer closeKV()

	client, err := newBackendClient(cfg.Backend.URL, cfg.Backend.Timeout)
	if err != nil {
		return fmt.Errorf("failed to initialize backend client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cli.NewOutput(stdout)
	toasts := cli.NewToastPrinter(out)
	store := sessionstore.New(kv)

	auth := usecases.NewAuthUsecase(client, store, toasts)
	cart := usecases.NewCartUsecase(client, store, auth, toasts, cli.NewNavigator(out))
	cart.SetPersistDelay(cfg.Storefront.PersistDebounce)
	catalog := usecases.NewCatalogUsecase(client)

	auth.OnLogin(func(ctx context.Context, _ *entities.User) {
		if err := cart.LoadCart(ctx); err != nil {
			logger.Warn(ctx, "Cart load after login failed", zap.Error(err))
		}
	})
	auth.OnLogout(func(ctx context.Context) { cart.Reset(ctx) })

	syncCtx, cancelSync := context.WithCancel(ctx)
	defer cancelSync()
	var wg sync.WaitGroup
	if cfg.Storefront.CartSyncInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cart.StartAutoSync(syncCtx, cfg.Storefront.CartSyncInterval)
		}()
	}

	logger.Info(ctx, "Storefront starting",
		zap.String("backend", cfg.Backend.URL),
		zap.Bool("redis", cfg.Redis.URL != ""),
		zap.Duration("cartSync", cfg.Storefront.CartSyncInterval),
	)

	app := cli.NewApp(cli.Deps{
		Auth:    auth,
		Cart:    cart,
		Catalog: catalog,
		OAuth:   client,
		In:      stdin,
		Out:     out,
	})
	app.Run(ctx)

	cart.StopAutoSync()
	cancelSync()
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := store.Close(flushCtx); err != nil {
		return fmt.Errorf("failed to flush session: %w", err)
	}
	return nil
}

// buildKV picks the snapshot backing store: Redis when configured with an
// encryption key, process memory otherwise.
func buildKV(cfg *config.Config) (sessionstore.KV, func(), error) {
	if cfg.Redis.URL == "" {
		return sessionstore.NewMemoryKV(), func() {}, nil
	}
	if cfg.Security.SessionEncryptionKey == "" {
		logger.Warn(context.Background(), "SESSION_ENCRYPTION_KEY not set, keeping session snapshots in memory")
		return sessionstore.NewMemoryKV(), func() {}, nil
	}

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	kv, err := newSnapshotStore(cfg.Security.SessionEncryptionKey, cfg.Redis.Prefix, entities.CartSnapshotTTL)
	if err != nil {
		_ = closeRedis()
		return nil, nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	logger.Info(context.Background(), "Session snapshots stored in redis", zap.String("prefix", cfg.Redis.Prefix))
	return kv, func() { _ = closeRedis() }, nil
}
