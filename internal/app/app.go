// Package app はアプリケーションの起動とワイヤリングを実装する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/ichiba/internal/catalog"
	"github.com/hitoshi/ichiba/internal/config"
	"github.com/hitoshi/ichiba/internal/database"
	"github.com/hitoshi/ichiba/internal/handler"
	"github.com/hitoshi/ichiba/internal/limitorder"
	"github.com/hitoshi/ichiba/internal/logger"
	"github.com/hitoshi/ichiba/internal/metrics"
	"github.com/hitoshi/ichiba/internal/middleware"
	"github.com/hitoshi/ichiba/internal/notify"
	"github.com/hitoshi/ichiba/internal/order"
	"github.com/hitoshi/ichiba/internal/repository"
	"github.com/hitoshi/ichiba/internal/security"
	"github.com/hitoshi/ichiba/internal/seed"
	"github.com/hitoshi/ichiba/internal/worker/cleanup"
	"github.com/hitoshi/ichiba/internal/worker/offersync"
	"github.com/hitoshi/ichiba/internal/worker/report"
	"github.com/hitoshi/ichiba/internal/worker/sweep"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	categoryRepo := repository.NewPostgresCategoryRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)
	offerRepo := repository.NewPostgresOfferRepo(db)
	orderRepo := repository.NewPostgresOrderRepo(db)
	limitRepo := repository.NewPostgresLimitRepo(db)
	batchRepo := repository.NewPostgresBatchRepo(db)
	reportRepo := repository.NewPostgresReportRepo(db)
	statsRepo := repository.NewPostgresStatsRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. ドメインサービスの初期化
	catalogService := catalog.NewService(productRepo, offerRepo, categoryRepo, sanitizer)
	orderService := order.NewService(orderRepo, offerRepo, userRepo)
	limitService := limitorder.NewService(limitRepo, userRepo, productRepo)

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. レート制限の構成（req/min設定をreq/secに変換）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = perMinute(cfg.RateLimitGeneral)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.PlaceRate = perMinute(cfg.RateLimitPlace)
	rateLimiterCfg.PlaceBurst = cfg.RateLimitPlace
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusRecorder:    collector,
		Logger:            slog.Default(),

		AdminKey: cfg.AdminKey,
		UserRepo: userRepo,

		CatalogService: catalogService,
		OrderService:   orderService,
		LimitService:   limitService,

		AdminCatalog: catalogService,
		ProductRepo:  productRepo,
		LimitRepo:    limitRepo,
		StatsRepo:    statsRepo,
		URLValidator: ssrfGuard,

		BatchRepo:  batchRepo,
		ReportRepo: reportRepo,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 指値マッチングスイープをメインgoroutineで、オファー同期と
// レポート生成のポーラーをバックグラウンドで実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)
	offerRepo := repository.NewPostgresOfferRepo(db)
	orderRepo := repository.NewPostgresOrderRepo(db)
	limitRepo := repository.NewPostgresLimitRepo(db)
	batchRepo := repository.NewPostgresBatchRepo(db)
	reportRepo := repository.NewPostgresReportRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. スイープの初期化
	matcher := sweep.NewMatcher(
		limitRepo, orderRepo, userRepo, productRepo,
		collector, slog.Default(),
	)
	sweeper := sweep.NewSweeper(limitRepo, matcher, collector, slog.Default())

	// 5. B2Bバッチジョブの初期化
	processor := offersync.NewProcessor(
		batchRepo, productRepo, offerRepo, collector, slog.Default(),
	)

	ssrfGuard := security.NewSSRFGuard()
	notifier := notify.NewWebhookNotifier(
		ssrfGuard, slog.Default(), cfg.WebhookTimeout, cfg.WebhookMaxSize,
	)
	generator := report.NewGenerator(
		reportRepo, orderRepo, productRepo, userRepo,
		notifier, collector, slog.Default(),
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
		slog.Duration("offer_sync_interval", cfg.OfferSyncInterval),
		slog.Duration("report_interval", cfg.ReportInterval),
	)

	// オファー同期・レポート生成のポーラーと日次クリーンアップをバックグラウンドで起動
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	go processor.Start(ctx, cfg.OfferSyncInterval)
	go generator.Start(ctx, cfg.ReportInterval)
	go cleanupJob.Start(ctx, 24*time.Hour)

	// 指値マッチングスイープをメインgoroutineで実行（ブロッキング）
	sweeper.Start(ctx, cfg.SweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed はデモデータの投入を実行する。
// RESET_DB=trueの場合は既存データを消去してから投入する。
func runSeed(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	seeder := seed.NewSeeder(db, slog.Default())
	if err := seeder.Run(ctx, cfg.ResetDB); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	slog.Info("seed completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

// perMinute は1分あたりのリクエスト数をrate.Limit（req/sec）に変換する。
func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}
