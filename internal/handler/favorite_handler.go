package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/theforce/internal/middleware"
	"github.com/hitoshi/theforce/internal/model"
)

// FavoriteServiceInterface はお気に入りハンドラーが必要とするサービスインターフェース。
type FavoriteServiceInterface interface {
	Get(ctx context.Context, name string) (*model.Favorite, error)
	List(ctx context.Context) ([]model.Favorite, error)
	Save(ctx context.Context, fav *model.Favorite) error
	Delete(ctx context.Context, name string) error
	DeleteAll(ctx context.Context) error
}

// FavoriteHandler は保存済みお気に入りのHTTPハンドラー。
// オフライン時の一覧表示と、セッションを介さない直接の保存・削除に使う。
type FavoriteHandler struct {
	service FavoriteServiceInterface
	logger  *slog.Logger
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
func NewFavoriteHandler(service FavoriteServiceInterface, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{service: service, logger: logger}
}

// ListFavorites は保存済みお気に入りを登録順で返す。
// GET /api/favorites
func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	results := make([]favoriteResponse, len(favs))
	for i := range favs {
		results[i] = toFavoriteResponse(&favs[i])
	}
	writeJSON(w, http.StatusOK, results)
}

// GetFavorite は指定キャラクターのお気に入りを返す。
// GET /api/favorites/{name}
func (h *FavoriteHandler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	name := nameParam(r)

	fav, err := h.service.Get(r.Context(), name)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if fav == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewFavoriteNotFoundError(name))
		return
	}

	writeJSON(w, http.StatusOK, toFavoriteResponse(fav))
}

// SaveFavorite はお気に入りを保存する。同名のお気に入りは置き換える。
// PUT /api/favorites
func (h *FavoriteHandler) SaveFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	fav := req.toModel()
	if err := h.service.Save(r.Context(), fav); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	saved, err := h.service.Get(r.Context(), fav.Name())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if saved == nil {
		saved = fav
	}
	writeJSON(w, http.StatusOK, toFavoriteResponse(saved))
}

// DeleteFavorite は指定キャラクターのお気に入りを削除する。未登録でも204を返す。
// DELETE /api/favorites/{name}
func (h *FavoriteHandler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), nameParam(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllFavorites は全てのお気に入りを削除する。
// DELETE /api/favorites
func (h *FavoriteHandler) DeleteAllFavorites(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAll(r.Context()); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
