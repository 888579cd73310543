package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/theforce/internal/model"
)

// ErrorResponseBody はAPIエラーの統一フォーマット。
// HTTPエラーレスポンスのほか、NDJSONで配信する詳細状態のセクションエラーにも埋め込まれる。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// NewErrorResponseBody はAPIErrorをレスポンス用の形に変換する。nilはnilを返す。
func NewErrorResponseBody(apiErr *model.APIError) *ErrorResponseBody {
	if apiErr == nil {
		return nil
	}
	return &ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// レート制限のRetry-Afterなど追加のヘッダーは呼び出し側で先に設定しておく。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(NewErrorResponseBody(apiErr))
}

// internalServerError は詳細を含まない内部エラー。原因はログにのみ記録する。
var internalServerError = &model.APIError{
	Code:     "INTERNAL_ERROR",
	Message:  "内部エラーが発生しました。",
	Category: "system",
	Action:   "しばらく待ってから再度お試しください。",
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// パニックからの回復時にも使う。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, internalServerError)
}
