package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/theforce/internal/character"
	"github.com/hitoshi/theforce/internal/config"
	"github.com/hitoshi/theforce/internal/connectivity"
	"github.com/hitoshi/theforce/internal/database"
	"github.com/hitoshi/theforce/internal/detail"
	"github.com/hitoshi/theforce/internal/favorite"
	"github.com/hitoshi/theforce/internal/handler"
	"github.com/hitoshi/theforce/internal/logger"
	"github.com/hitoshi/theforce/internal/metrics"
	"github.com/hitoshi/theforce/internal/middleware"
	"github.com/hitoshi/theforce/internal/repository"
	"github.com/hitoshi/theforce/internal/security"
	"github.com/hitoshi/theforce/internal/swapi"
)

// sessionEvictInterval はアイドルセッションの掃除間隔。
const sessionEvictInterval = time.Minute

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

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

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
		slog.String("swapi_base_url", cfg.SWAPIBaseURL),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// components はserveモードで動かすコンポーネント一式。
type components struct {
	db       *sqlx.DB
	monitor  *connectivity.Monitor
	sessions *detail.Manager
	limiter  *middleware.RateLimiter
	router   http.Handler
}

// build はDB接続を開き、全依存関係をワイヤリングする。
// SQLiteの場合は起動時にマイグレーションも適用する。
func build(cfg *config.Config, log *slog.Logger) (*components, error) {
	// 1. DB接続
	dialect, err := database.DialectOf(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if dialect == database.DialectSQLite {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to migrate local store: %w", err)
		}
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established", slog.String("dialect", string(dialect)))

	// 2. リポジトリの初期化
	var favoriteRepo repository.FavoriteRepository
	switch dialect {
	case database.DialectPostgres:
		favoriteRepo = repository.NewPostgresFavoriteRepo(db.DB)
	default:
		favoriteRepo = repository.NewSQLiteFavoriteRepo(db)
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. リモート取得（SSRF対策付きクライアント）
	guard := security.NewURLGuard(hostOf(cfg.SWAPIBaseURL), cfg.RemoteAllowPrivate)
	swapiClient := swapi.NewClient(
		guard.NewSafeClient(cfg.RemoteTimeout),
		guard,
		security.NewTextSanitizer(),
		collector,
		log,
		swapi.ClientConfig{
			BaseURL:        cfg.SWAPIBaseURL,
			RateLimit:      cfg.RemoteRateLimit,
			RateBurst:      cfg.RemoteRateBurst,
			MaxConcurrency: cfg.RemoteMaxConcurrent,
			MaxBodySize:    cfg.RemoteMaxSize,
		},
	)

	// 5. ドメインサービスの初期化
	favoriteService := favorite.NewService(favoriteRepo, collector, log)
	characterService := character.NewService(swapiClient, log)
	monitor := connectivity.NewMonitor(swapiClient, log)
	sessions := detail.NewManager(detail.Deps{
		Fetcher:      characterService,
		Store:        favoriteService,
		Connectivity: monitor,
		Metrics:      collector,
		Logger:       log,
	}, cfg.SessionTTL)

	// 6. ルーターの構築（RATE_LIMIT_GENERALはreq/min単位）
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral), log)
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		HealthChecker:     db,
		MetricsHandler:    metrics.Handler(registry),
		URLValidator:      guard,
		CharacterService:  characterService,
		CatalogService:    swapiClient,
		FavoriteService:   favoriteService,
		SessionManager:    sessions,
		Connectivity:      monitor,
	})

	return &components{
		db:       db,
		monitor:  monitor,
		sessions: sessions,
		limiter:  limiter,
		router:   router,
	}, nil
}

// start はバックグラウンドのループを起動する。ctxのキャンセルで停止する。
func (c *components) start(ctx context.Context, cfg *config.Config) {
	go c.monitor.Run(ctx, cfg.ConnectivityProbeInterval)
	go c.sessions.Run(ctx, sessionEvictInterval)
}

// close は全セッションを終了してから依存を解放する。
func (c *components) close() {
	c.sessions.Shutdown()
	c.monitor.Close()
	c.limiter.Stop()
	if err := c.db.Close(); err != nil {
		slog.Warn("failed to close database", slog.String("error", err.Error()))
	}
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	c, err := build(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.start(ctx, cfg)

	// NDJSONのストリームはハンドラー側で書き込み期限を解除する
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	// 購読中のストリームを先に閉じないとShutdownが完了しない
	cancel()
	c.sessions.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
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

// hostOf はベースURLのホスト名を返す。URL検証で許可するホストになる。
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
// SQLiteのファイルパスは認証情報を含まないためそのまま返す。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
