package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/formman/internal/middleware"
)

// HealthChecker はヘルスチェックエンドポイントが必要とする依存インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionConfig     middleware.SessionConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Resolver          middleware.PrincipalResolver
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface

	// アカウント
	UserService     UserServiceInterface
	PasswordChanger PasswordChangerInterface

	// フォーム・フィードバック
	FormService     FormServiceInterface
	FeedbackService FeedbackServiceInterface

	// 運用系（nil可）
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	StatusRecorder middleware.HTTPStatusRecorder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → CSRF
//
// セッションミドルウェアはルートグループごとに異なる:
//   - 認証ルート（/api/auth）はセッション検証なし。失効Cookieを持つユーザーが
//     再ログインできなくなるため。
//   - 公開フォームルートはオプショナルセッション（Cookieがなければ匿名）。
//   - それ以外のAPIルートはセッション必須。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionConfig)
	userHandler := NewUserHandler(deps.UserService, deps.PasswordChanger)
	formHandler := NewFormHandler(deps.FormService, deps.FeedbackService)

	// --- 運用系ルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証ルート ---
	// セッション検証の外に置く。レート制限はIPキーで適用される。
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/auth", authHandler.Login)
		r.Delete("/api/auth", authHandler.Logout)
	})

	// --- 公開フォームルート ---
	// オプショナルセッション: Cookieがなければ匿名として通す。
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.Resolver, deps.SessionConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/forms", formHandler.ListPublic)
		r.Get("/api/forms/{hash}", formHandler.Get)

		// 投稿は匿名スパム対策の専用レート制限を追加
		r.With(deps.RateLimiter.SubmitMiddleware()).Post("/api/forms/{hash}/feedbacks", formHandler.SubmitFeedback)

		// 一覧はサービス層で所有者・管理者に限定される
		r.Get("/api/forms/{hash}/feedbacks", formHandler.ListFeedbacks)
	})

	// --- 認証必須ルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Resolver, deps.SessionConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// フォーム管理
		r.Post("/api/forms", formHandler.Create)
		r.Patch("/api/forms/{hash}", formHandler.Update)
		r.Delete("/api/forms/{hash}", formHandler.Delete)

		// アカウント管理
		r.Route("/api/users", func(r chi.Router) {
			r.Post("/", userHandler.Create)
			r.Get("/", userHandler.List)

			r.Route("/{username}", func(r chi.Router) {
				r.Get("/", userHandler.Get)
				r.Patch("/", userHandler.ChangePassword)
				r.Delete("/", userHandler.Delete)
			})
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// checkerがnilの場合は常に200を返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
