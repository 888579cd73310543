package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/theforce/internal/detail"
	"github.com/hitoshi/theforce/internal/middleware"
	"github.com/hitoshi/theforce/internal/model"
)

// SessionManagerInterface はセッションハンドラーが必要とするセッション管理インターフェース。
type SessionManagerInterface interface {
	// Create はセッションを開始する。入力がない場合はmodel.ErrInputMissingを返す。
	Create(input detail.Input) (*detail.Session, error)
	// Get は指定IDのセッションを返す。
	Get(id string) (*detail.Session, bool)
	// Close は指定IDのセッションを終了する。存在しない場合はfalseを返す。
	Close(id string) bool
}

// SessionHandler はキャラクター詳細セッションのHTTPハンドラー。
type SessionHandler struct {
	manager   SessionManagerInterface
	validator URLValidator
	logger    *slog.Logger
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(manager SessionManagerInterface, validator URLValidator, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{manager: manager, validator: validator, logger: logger}
}

// sessionResponse はセッション状態のAPIレスポンス。
type sessionResponse struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Character characterResponse     `json:"character"`
	Detail    detailResponse        `json:"detail"`
	Favorite  favoriteStateResponse `json:"favorite"`
	Snapshot  *favoriteResponse     `json:"snapshot,omitempty"`
}

type retryResponse struct {
	Sections []string `json:"sections"`
}

func toSessionResponse(s *detail.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID(),
		Name:      s.Key(),
		Character: toCharacterResponse(s.Character()),
		Detail:    toDetailResponse(s.Detail()),
		Favorite:  toFavoriteStateResponse(s.Favorite()),
	}
	if snap := s.Snapshot(); snap != nil {
		fr := toFavoriteResponse(snap)
		resp.Snapshot = &fr
	}
	return resp
}

// CreateSession はキャラクターまたは保存済みお気に入りから詳細セッションを開始する。
// POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	var input detail.Input
	if req.Favorite != nil {
		input.Favorite = req.Favorite.toModel()
	}
	if req.Character != nil {
		c := req.Character.toModel()
		input.Character = &c
	}
	if input.Favorite == nil && input.Character != nil && h.validator != nil {
		if err := h.validator.ValidateURL(input.Character.URL); err != nil {
			handleServiceError(w, r, h.logger, model.NewInvalidURLError(err.Error()))
			return
		}
	}

	s, err := h.manager.Create(input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(s))
}

// GetSession はセッションの現在の状態を返す。
// GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// StreamEvents は詳細状態とお気に入り状態の変化をNDJSONで配信する。
// セッションの終了またはクライアントの切断で終了する。
// GET /api/sessions/{id}/events
func (h *SessionHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	events := s.Watch(r.Context())
	out := newNDJSONWriter(w)
	for ev := range events {
		var line eventResponse
		switch {
		case ev.Detail != nil:
			d := toDetailResponse(*ev.Detail)
			line = eventResponse{Type: "detail", Detail: &d}
		case ev.Favorite != nil:
			f := toFavoriteStateResponse(*ev.Favorite)
			line = eventResponse{Type: "favorite", Favorite: &f}
		default:
			continue
		}
		if err := out.Write(line); err != nil {
			h.logger.Debug("イベントストリームの書き込みを中止しました",
				slog.String("session_id", s.ID()),
				slog.String("error", err.Error()),
			)
			// Watchのgoroutineはr.Context()の終了で止まる
			return
		}
	}
}

// AddFavorite はお気に入り登録を要求する。
// PUT /api/sessions/{id}/favorite
func (h *SessionHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.favoriteOp(w, r, (*detail.Session).AddFavorite)
}

// RemoveFavorite はお気に入り解除を要求する。
// DELETE /api/sessions/{id}/favorite
func (h *SessionHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.favoriteOp(w, r, (*detail.Session).RemoveFavorite)
}

// ToggleFavorite はお気に入り状態を反転する。
// POST /api/sessions/{id}/favorite/toggle
func (h *SessionHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	h.favoriteOp(w, r, (*detail.Session).ToggleFavorite)
}

// favoriteOp は楽観的に反映した表示状態を202で返す。
// ?wait=true の場合は書き込みと確認の完了を待ち、確定した状態を200で返す。
func (h *SessionHandler) favoriteOp(w http.ResponseWriter, r *http.Request, op func(*detail.Session) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := op(s); err != nil {
		h.writeSessionError(w, r, s.ID(), err)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, toFavoriteStateResponse(s.Favorite()))
		return
	}

	if err := s.Sync(r.Context()); err != nil {
		h.writeSessionError(w, r, s.ID(), err)
		return
	}
	writeJSON(w, http.StatusOK, toFavoriteStateResponse(s.Favorite()))
}

// RetrySession はエラー中のセクションを再取得する。
// POST /api/sessions/{id}/retry
func (h *SessionHandler) RetrySession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	retried := s.RetryErrored()
	sections := make([]string, len(retried))
	for i, sec := range retried {
		sections[i] = string(sec)
	}
	writeJSON(w, http.StatusAccepted, retryResponse{Sections: sections})
}

// CloseSession はセッションを終了する。
// DELETE /api/sessions/{id}
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.manager.Close(id) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSessionNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*detail.Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := h.manager.Get(id)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSessionNotFoundError(id))
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) writeSessionError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, detail.ErrClosed) || errors.Is(err, detail.ErrNotStarted) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSessionNotFoundError(id))
		return
	}
	handleServiceError(w, r, h.logger, err)
}
