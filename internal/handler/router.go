package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/theforce/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// リモート参照URLの検証（nilの場合は省略）
	URLValidator URLValidator

	CharacterService CharacterServiceInterface
	CatalogService   CatalogServiceInterface
	FavoriteService  FavoriteServiceInterface
	SessionManager   SessionManagerInterface
	Connectivity     ConnectivityInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → CORS → RateLimit（/api配下のみ）
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	characterHandler := NewCharacterHandler(deps.CharacterService, deps.CatalogService, deps.URLValidator, logger)
	sessionHandler := NewSessionHandler(deps.SessionManager, deps.URLValidator, logger)
	favoriteHandler := NewFavoriteHandler(deps.FavoriteService, logger)
	connectivityHandler := NewConnectivityHandler(deps.Connectivity)

	r.Get("/health", NewHealthHandler(deps.HealthChecker, logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// リモート参照（SWAPI）
		r.Get("/characters", characterHandler.SearchCharacters)
		r.Get("/characters/details", characterHandler.StreamDetails)
		r.Get("/films", characterHandler.ListFilms)
		r.Get("/species", characterHandler.ListSpecies)
		r.Get("/planets", characterHandler.ListPlanets)

		// 詳細セッション
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.CreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Delete("/", sessionHandler.CloseSession)
				r.Get("/events", sessionHandler.StreamEvents)
				r.Post("/retry", sessionHandler.RetrySession)

				r.Put("/favorite", sessionHandler.AddFavorite)
				r.Delete("/favorite", sessionHandler.RemoveFavorite)
				r.Post("/favorite/toggle", sessionHandler.ToggleFavorite)
			})
		})

		// 保存済みお気に入り
		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", favoriteHandler.ListFavorites)
			r.Put("/", favoriteHandler.SaveFavorite)
			r.Delete("/", favoriteHandler.DeleteAllFavorites)
			r.Get("/{name}", favoriteHandler.GetFavorite)
			r.Delete("/{name}", favoriteHandler.DeleteFavorite)
		})

		r.Get("/connectivity", connectivityHandler.GetConnectivity)
		r.Post("/connectivity", connectivityHandler.ReportConnectivity)
	})

	return r
}
