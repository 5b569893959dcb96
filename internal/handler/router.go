package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/authlog/internal/metrics"
	"github.com/hitoshi/authlog/internal/middleware"
)

// HealthChecker はデータベース接続の死活確認インターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// ドメインサービス
	WebhookService     WebhookServiceInterface
	EventService       EventServiceInterface
	ExportService      ExportServiceInterface
	ApplicationService ApplicationServiceInterface
	UserService        UserServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → RateLimit
//
// Webhook受信ルートはCORSの対象外（ブラウザからではなくIdPからの
// サーバー間リクエストのため）で、アプリケーション名単位のレート制限を使う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	webhookHandler := NewWebhookHandler(deps.WebhookService)
	eventHandler := NewEventHandler(deps.EventService)
	exportHandler := NewExportHandler(deps.ExportService)
	appHandler := NewApplicationHandler(deps.ApplicationService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 運用エンドポイント ---

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- Webhook受信 ---
	// アプリケーション名単位のレート制限

	r.With(deps.RateLimiter.WebhookMiddleware()).
		Post("/webhook/{appName}", webhookHandler.Receive)

	// --- ダッシュボードAPI ---
	// ミドルウェアスタック: CORS → RateLimit(General)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// アプリケーション管理
		r.Route("/api/applications", func(r chi.Router) {
			r.Get("/", appHandler.ListApplications)
			r.Post("/", appHandler.CreateApplication)
			r.Get("/filter", appHandler.ListApplicationsForFilter)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", appHandler.GetApplication)
				r.Put("/", appHandler.UpdateApplication)
				r.Delete("/", appHandler.DeleteApplication)
			})
		})

		// イベント検索・集計
		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", eventHandler.ListEvents)
			r.Delete("/", eventHandler.DeleteEvents)
			r.Get("/stats", eventHandler.GetStats)
			r.Get("/trend", eventHandler.GetTrend)
		})

		// エクスポート
		r.Get("/api/export/events", exportHandler.ExportEvents)

		// ユーザー参照
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.ListUsers)
			r.Get("/{id}/avatar", userHandler.GetAvatar)
		})
	})

	return r
}
