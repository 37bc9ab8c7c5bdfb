package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/platfeed/internal/auth"
	"github.com/hitoshi/platfeed/internal/config"
	"github.com/hitoshi/platfeed/internal/database"
	"github.com/hitoshi/platfeed/internal/feed"
	"github.com/hitoshi/platfeed/internal/handler"
	"github.com/hitoshi/platfeed/internal/logger"
	"github.com/hitoshi/platfeed/internal/metrics"
	"github.com/hitoshi/platfeed/internal/middleware"
	"github.com/hitoshi/platfeed/internal/realtime"
	"github.com/hitoshi/platfeed/internal/repository"
	"github.com/hitoshi/platfeed/internal/security"
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

	// 3. ログレベルの反映
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid LOG_LEVEL, falling back to info", slog.String("log_level", cfg.LogLevel))
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
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// readyOptions は起動時のDB疎通待ちの設定。テストで短縮する。
var readyOptions = database.DefaultReadyOptions()

// server はserveモードで起動する構成要素一式。
type server struct {
	handler     http.Handler
	hub         *realtime.Hub
	rateLimiter *middleware.RateLimiter
}

// close はHTTPサーバー停止後に残るバックグラウンド処理を止める。
// リアルタイム接続はStatusGoingAwayで閉じられる。
func (s *server) close() {
	s.hub.Close()
	s.rateLimiter.Stop()
}

// newServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// dbへの接続確認は行わない。
func newServer(cfg *config.Config, db *sql.DB, log *slog.Logger) *server {
	// 1. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. 認証
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(userRepo, tokens, auth.ServiceConfig{BcryptCost: cfg.BcryptCost})

	// 4. リアルタイム配信と投稿
	hub := realtime.NewHub(cfg.RealtimeSendBuffer, collector, log)
	postService := feed.NewService(
		postRepo,
		hub,
		security.NewTextSanitizer(),
		security.NewImageValidator(cfg.MaxImageSize),
		collector,
	)
	wsHandler := realtime.NewHandler(hub, tokens, realtime.HandlerConfig{
		WriteTimeout:   cfg.RealtimeWriteTimeout,
		OriginPatterns: cfg.WSAllowedOrigins,
	}, log)

	// 5. ルーター
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth))

	router := handler.NewRouter(&handler.RouterDeps{
		ClaimVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		MaxBodySize:       cfg.MaxBodySize,
		TrustProxyHeaders: cfg.TrustProxy,
		Logger:            log,
		HTTPMetrics:       collector,

		AuthService: authService,
		PostService: postService,

		Realtime:    wsHandler,
		Connections: hub,

		HealthDB:       db,
		MetricsHandler: metrics.Handler(reg),
	})

	return &server{handler: router, hub: hub, rateLimiter: rl}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.WaitReady(context.Background(), db, readyOptions); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. ワイヤリング
	srv := newServer(cfg, db, slog.Default())

	// 3. HTTPサーバーの起動
	// WriteTimeoutはWebSocket接続を切断してしまうため設定しない
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-stop:
		slog.Info("shutting down API server...")
	case err, ok := <-serveErr:
		if ok {
			srv.close()
			return fmt.Errorf("server listen error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdownはハイジャック済みのWebSocket接続を待たないため、先にHTTPを止めてからハブを閉じる
	shutdownErr := httpServer.Shutdown(ctx)
	srv.close()
	if shutdownErr != nil {
		return fmt.Errorf("server shutdown failed: %w", shutdownErr)
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

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("dirty", status.Dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/api/health", port))
}

func checkHealth(endpoint string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
