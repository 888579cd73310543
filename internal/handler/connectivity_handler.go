package handler

import (
	"net/http"
)

// ConnectivityInterface は接続状態の参照と報告を行う。
type ConnectivityInterface interface {
	Connected() bool
	Set(connected bool) bool
}

// ConnectivityHandler は接続状態のHTTPハンドラー。
// クライアントが検知したネットワーク回復を報告すると、エラー中のセクションが再取得される。
type ConnectivityHandler struct {
	monitor ConnectivityInterface
}

// NewConnectivityHandler はConnectivityHandlerを生成する。
func NewConnectivityHandler(monitor ConnectivityInterface) *ConnectivityHandler {
	return &ConnectivityHandler{monitor: monitor}
}

type connectivityResponse struct {
	Connected bool `json:"connected"`
	Changed   bool `json:"changed"`
}

// GetConnectivity は現在の接続状態を返す。
// GET /api/connectivity
func (h *ConnectivityHandler) GetConnectivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, connectivityResponse{Connected: h.monitor.Connected()})
}

// ReportConnectivity はクライアントから報告された接続状態を反映する。
// POST /api/connectivity
func (h *ConnectivityHandler) ReportConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Connected == nil {
		writeInvalidRequest(w, "connectedを指定してください。")
		return
	}

	changed := h.monitor.Set(*req.Connected)
	writeJSON(w, http.StatusOK, connectivityResponse{Connected: *req.Connected, Changed: changed})
}
