package swapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidURL は取得先URLが検証に失敗した場合のエラー。
var ErrInvalidURL = errors.New("invalid remote URL")

// StatusClass はHTTPステータスコードに基づく取得結果の分類。
type StatusClass int

const (
	// StatusClassOK は取得成功（200）。
	StatusClassOK StatusClass = iota
	// StatusClassPermanent は再試行しても回復しないステータス（404/410/401/403）。
	StatusClassPermanent
	// StatusClassTransient は時間を置けば回復しうるステータス（429/5xx）。
	StatusClassTransient
	// StatusClassUnknown は未知のステータスコード。
	StatusClassUnknown
)

// String はログ出力用の分類名を返す。
func (c StatusClass) String() string {
	switch c {
	case StatusClassOK:
		return "ok"
	case StatusClassPermanent:
		return "permanent"
	case StatusClassTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode == http.StatusOK:
		return StatusClassOK
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return StatusClassPermanent
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return StatusClassPermanent
	case statusCode == http.StatusTooManyRequests:
		return StatusClassTransient
	case statusCode >= 500:
		return StatusClassTransient
	default:
		return StatusClassUnknown
	}
}

// StatusError はSWAPIが200以外を返した場合のエラー。
type StatusError struct {
	URL        string
	StatusCode int
	Class      StatusClass
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("SWAPIがステータス %d (%s) を返しました: %s", e.StatusCode, e.Class, e.URL)
}

// Temporary は時間を置いた再試行で回復しうるかを返す。
func (e *StatusError) Temporary() bool {
	return e.Class == StatusClassTransient
}
