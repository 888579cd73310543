package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/theforce/internal/detail"
	"github.com/hitoshi/theforce/internal/middleware"
	"github.com/hitoshi/theforce/internal/model"
	"github.com/hitoshi/theforce/internal/swapi"
)

// classifyError はドメインエラーをHTTPステータスと統一エラーに変換する。
func classifyError(err error) (int, *model.APIError) {
	var apiErr *model.APIError
	var fetchErr *model.FetchError
	var storeErr *model.StoreError
	var statusErr *swapi.StatusError

	switch {
	case errors.As(err, &apiErr):
		return mapAPIErrorToHTTPStatus(apiErr), apiErr
	case errors.Is(err, model.ErrInputMissing):
		return http.StatusBadRequest, model.NewInputMissingError()
	case errors.Is(err, detail.ErrNotReady):
		return http.StatusConflict, model.NewFavoriteNotReadyError()
	case errors.Is(err, model.ErrInvalidFavorite):
		return http.StatusBadRequest, model.NewInvalidRequestError(err.Error())
	case errors.As(err, &storeErr):
		return http.StatusInternalServerError, model.NewLocalStoreFailedError(storeErr.Op)
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, model.NewFetchFailedError(fetchErr.Section)
	case errors.Is(err, swapi.ErrInvalidURL):
		return http.StatusBadRequest, model.NewInvalidURLError(err.Error())
	case errors.As(err, &statusErr):
		if statusErr.Class == swapi.StatusClassPermanent {
			return http.StatusNotFound, model.NewRemoteNotFoundError()
		}
		return http.StatusBadGateway, model.NewRemoteUnavailableError()
	default:
		return http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "内部エラーが発生しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInputMissing, model.ErrCodeInvalidURL, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeFavoriteNotFound, model.ErrCodeSessionNotFound, model.ErrCodeRemoteNotFound:
		return http.StatusNotFound
	case model.ErrCodeFavoriteNotReady:
		return http.StatusConflict
	case model.ErrCodeFetchFailed, model.ErrCodeRemoteUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError はサービス層から返されたエラーを統一エラーレスポンスとして書き込む。
// 5xxのみエラーログに残す。クライアントの切断はレスポンスを書かない。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}

	status, apiErr := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeInvalidRequest(w http.ResponseWriter, reason string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
}
