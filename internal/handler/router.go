package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/platfeed/internal/middleware"
)

// platformPattern は /api/posts/{platform} と /api/posts/{id} を区別するための正規表現。
const platformPattern = "twitter|instagram|facebook"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	ClaimVerifier     middleware.ClaimVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	MaxBodySize       int64 // 0以下の場合は制限しない
	TrustProxyHeaders bool  // trueの場合はX-Forwarded-For等から接続元IPを解決する
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder // nilの場合は記録しない

	// 認証
	AuthService AuthServiceInterface

	// 投稿
	PostService PostServiceInterface

	// リアルタイム
	Realtime    http.Handler
	Connections ConnectionCounter

	// 運用
	HealthDB       Pinger       // nilの場合はDB疎通を確認しない
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Metrics → Recovery → SecurityHeaders → CORS
//	  /api/*:        BodyLimit
//	  登録・ログイン: RateLimit(Auth)
//	  投稿:          Auth → RateLimit(General)
//
// /ws はトークンをクエリで受け取るため、認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	postHandler := NewPostHandler(deps.PostService)
	healthHandler := NewHealthHandler(deps.Connections, deps.HealthDB)

	// --- 認証不要のルート ---
	r.Get("/api/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/ws", deps.Realtime)

	r.Group(func(r chi.Router) {
		if deps.MaxBodySize > 0 {
			r.Use(middleware.NewBodyLimitMiddleware(deps.MaxBodySize))
		}

		// 登録・ログイン（IP単位のレート制限）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/api/register", authHandler.Register)
			r.Post("/api/login", authHandler.Login)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Auth → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.ClaimVerifier))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Route("/api/posts", func(r chi.Router) {
				r.Post("/", postHandler.CreatePost)
				r.Get("/{platform:"+platformPattern+"}", postHandler.ListPosts)
				r.Get("/{id}", postHandler.GetPost)
				r.Post("/{id}/like", postHandler.ToggleLike)
				r.Post("/{id}/comment", postHandler.AddComment)
			})
		})
	})

	return r
}
