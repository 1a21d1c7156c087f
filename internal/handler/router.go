package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/teammate/internal/metrics"
	"github.com/hitoshi/teammate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 投稿
	PostService PostServiceInterface

	// 応募
	ApplicationService ApplicationServiceInterface

	// プロフィール
	ProfileService ProfileServiceInterface

	// イベント配信
	EventHandler *EventHandler

	// アバター画像の配信元ディレクトリ
	AvatarDir string

	// ヘルスチェック用DB接続（nil可）
	DB *sql.DB
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF
//
// 認証ルート（/auth/*）と公開読み取りルートはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Metrics)
	postHandler := NewPostHandler(deps.PostService, deps.Metrics)
	appHandler := NewApplicationHandler(deps.ApplicationService, deps.Metrics)
	profileHandler := NewProfileHandler(deps.ProfileService)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.DB))
	r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証フロー
	r.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.Login)
		r.Get("/github/callback", authHandler.Callback)
		r.Post("/signup", authHandler.SignUp)
		r.Post("/login", authHandler.PasswordLogin)
		r.Get("/confirm", authHandler.Confirm)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 投稿の閲覧は未ログインでも可能
	r.Get("/api/posts", postHandler.ListPosts)
	r.Get("/api/posts/{id}", postHandler.GetPost)

	// アップロード済みアバター画像の配信
	if deps.AvatarDir != "" {
		fileServer := http.StripPrefix("/avatars/", http.FileServer(http.Dir(deps.AvatarDir)))
		r.Get("/avatars/*", fileServer.ServeHTTP)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// POST /api/posts - 投稿作成（投稿専用レート制限を追加）
		r.With(deps.RateLimiter.PostCreationMiddleware()).Post("/api/posts", postHandler.CreatePost)

		// 応募
		r.Route("/api/posts/{id}/applications", func(r chi.Router) {
			r.Post("/", appHandler.Apply)
			r.Get("/", appHandler.ListApplicants)
		})

		// イベント配信
		if deps.EventHandler != nil {
			r.Get("/api/events", deps.EventHandler.Stream)
		}

		// プロフィール（メール確認済みユーザーのみ）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireConfirmedEmailMiddleware(deps.UserFinder))

			r.Get("/api/profile", profileHandler.GetProfile)
			r.Put("/api/profile", profileHandler.UpdateProfile)
			r.Post("/api/profile/avatar", profileHandler.UploadAvatar)
		})
	})

	return r
}

// newHealthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
