package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ichiba/internal/middleware"
	"github.com/hitoshi/ichiba/internal/repository"
)

// HealthChecker はヘルスチェックでDB疎通を確認するインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ヘルスチェック・メトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.HTTPStatusRecorder
	Logger            *slog.Logger

	// 認証
	AdminKey string
	UserRepo repository.UserRepository

	// 公開API
	CatalogService CatalogServiceInterface
	OrderService   OrderServiceInterface
	LimitService   LimitServiceInterface

	// 管理API
	AdminCatalog AdminCatalogInterface
	ProductRepo  repository.ProductRepository
	LimitRepo    AdminLimitStore
	StatsRepo    AdminStatsStore
	URLValidator WebhookURLValidator

	// B2B API
	BatchRepo  B2BBatchStore
	ReportRepo B2BReportStore
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → Recovery → SecurityHeaders → Logging → Metrics → RateLimit(General)
//
// 管理API（/api/admin/*）はX-Admin-Key、B2B API（/api/b2b/*）はX-B2B-Keyの
// 検証を各グループの内側で行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}

	catalogHandler := NewCatalogHandler(deps.CatalogService)
	orderHandler := NewOrderHandler(deps.OrderService)
	limitHandler := NewLimitHandler(deps.LimitService)
	adminHandler := NewAdminHandler(
		deps.AdminCatalog, deps.UserRepo, deps.ProductRepo,
		deps.LimitRepo, deps.StatsRepo, deps.URLValidator,
	)
	b2bHandler := NewB2BHandler(deps.BatchRepo, deps.ReportRepo, deps.ProductRepo)

	// --- レート制限の外に置くルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- 公開ルート ---

		r.Post("/api/products/List", catalogHandler.ListProducts)
		r.Post("/api/offers/List", catalogHandler.ListOffers)

		// 注文と指値の投入には投入専用レート制限を追加
		r.With(deps.RateLimiter.PlacementMiddleware()).Post("/api/orders/Place", orderHandler.PlaceOrder)
		r.With(deps.RateLimiter.PlacementMiddleware()).Post("/api/limits/Place", limitHandler.PlaceLimit)
		r.Post("/api/limits/Cancel", limitHandler.CancelLimit)

		// --- 管理ルート（X-Admin-Key必須） ---

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewAdminKeyMiddleware(deps.AdminKey))

			r.Get("/overview", adminHandler.Overview)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", adminHandler.ListUsers)
				r.Post("/", adminHandler.CreateUser)
				r.Delete("/{id}", adminHandler.DeleteUser)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", adminHandler.ListCategories)
				r.Post("/", adminHandler.CreateCategory)
				r.Delete("/{id}", adminHandler.DeleteCategory)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", adminHandler.ListProducts)
				r.Post("/", adminHandler.CreateProduct)

				r.Route("/{productId}", func(r chi.Router) {
					r.Patch("/", adminHandler.UpdateProduct)
					r.Delete("/", adminHandler.DeleteProduct)

					r.Post("/offers", adminHandler.AddOffer)
					r.Delete("/offers/{offerId}", adminHandler.RemoveOffer)
				})
			})

			r.Get("/limits", adminHandler.ListLimits)
		})

		// --- B2Bルート（X-B2B-Key必須） ---

		r.Route("/api/b2b", func(r chi.Router) {
			r.Use(middleware.NewB2BKeyMiddleware(deps.UserRepo))

			r.Route("/offer-sync/batches", func(r chi.Router) {
				r.Post("/", b2bHandler.SubmitBatch)
				r.Get("/", b2bHandler.ListBatches)
				r.Get("/{id}", b2bHandler.GetBatch)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Post("/", b2bHandler.RequestReport)
				r.Get("/{id}", b2bHandler.GetReport)
				r.Get("/{id}/download", b2bHandler.DownloadReport)
				r.Post("/{id}/received", b2bHandler.ConfirmReportReceived)
			})
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラを返す。
// checkerがnilの場合は常にokを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				status = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(struct {
			Status string `json:"status"`
		}{Status: status})
	}
}
