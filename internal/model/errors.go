// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, remote, storage, session, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInputMissing      = "INPUT_MISSING"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeLocalStoreFailed  = "LOCAL_STORE_FAILED"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeFavoriteNotFound  = "FAVORITE_NOT_FOUND"
	ErrCodeFavoriteNotReady  = "FAVORITE_NOT_READY"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	ErrCodeRemoteNotFound    = "REMOTE_NOT_FOUND"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
)

// ErrInputMissing はキャラクター参照もお気に入りも渡されずにセッションを開始した場合のエラー。
// そのセッションにとって終端のエラーとなる。
var ErrInputMissing = errors.New("キャラクター詳細の読み込みに必要な入力がありません")

// ErrInvalidFavorite はキーが空のお気に入りを保存しようとした場合のエラー。
var ErrInvalidFavorite = errors.New("お気に入りのキャラクター名が空です")

// FetchError はセクション単位のリモート取得失敗（FetchFailed(section)）を表す。
// 他のセクションには伝播せず、再試行で回復できる。
type FetchError struct {
	Section Section
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	return fmt.Sprintf("%sの取得に失敗しました: %v", e.Section, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// StoreOp はローカルストア操作の種別を表す。
type StoreOp string

const (
	StoreOpGet       StoreOp = "get"
	StoreOpList      StoreOp = "list"
	StoreOpSave      StoreOp = "save"
	StoreOpDelete    StoreOp = "delete"
	StoreOpDeleteAll StoreOp = "delete_all"
)

// StoreError はお気に入りストアの読み書き失敗（LocalStoreFailed(operation)）を表す。
// 「見つからない」とは区別される。
type StoreError struct {
	Op  StoreOp
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	return fmt.Sprintf("お気に入りストアの%s操作に失敗しました: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewInputMissingError は入力不足エラーを生成する。
func NewInputMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeInputMissing,
		Message:  "キャラクター詳細を読み込めませんでした。",
		Category: "validation",
		Action:   "characterまたはfavoriteのいずれかを指定してください。",
	}
}

// NewFetchFailedError はセクション取得失敗エラーを生成する。
func NewFetchFailedError(section Section) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("%sの取得に失敗しました。", section),
		Category: "remote",
		Action:   "ネットワーク接続が回復すると自動的に再取得されます。",
	}
}

// NewLocalStoreFailedError はローカルストア失敗エラーを生成する。
func NewLocalStoreFailedError(op StoreOp) *APIError {
	return &APIError{
		Code:     ErrCodeLocalStoreFailed,
		Message:  fmt.Sprintf("お気に入りの%s操作に失敗しました。", op),
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "SWAPIのキャラクターURLを指定してください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewFavoriteNotFoundError はお気に入り未登録エラーを生成する。
func NewFavoriteNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeFavoriteNotFound,
		Message:  fmt.Sprintf("お気に入りが見つかりません: %s", name),
		Category: "storage",
		Action:   "キャラクター名を確認してください。",
	}
}

// NewFavoriteNotReadyError は詳細の読み込み完了前にお気に入り追加した場合のエラーを生成する。
func NewFavoriteNotReadyError() *APIError {
	return &APIError{
		Code:     ErrCodeFavoriteNotReady,
		Message:  "キャラクター詳細の読み込みが完了していません。",
		Category: "session",
		Action:   "読み込み完了後に再度お試しください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", id),
		Category: "session",
		Action:   "セッションを作成し直してください。",
	}
}

// NewRemoteUnavailableError はSWAPI呼び出し失敗エラーを生成する。
func NewRemoteUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeRemoteUnavailable,
		Message:  "SWAPIからデータを取得できませんでした。",
		Category: "remote",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRemoteNotFoundError はSWAPIに指定リソースが存在しない場合のエラーを生成する。
func NewRemoteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRemoteNotFound,
		Message:  "指定されたリソースはSWAPIに存在しません。",
		Category: "remote",
		Action:   "URLまたはページ番号を確認してください。",
	}
}

// NewRateLimitedError はリクエスト過多エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}
