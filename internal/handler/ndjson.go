package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// ndjsonWriter は1行1JSONのストリーミングレスポンスを書き込む。
type ndjsonWriter struct {
	enc *json.Encoder
	rc  *http.ResponseController
}

// newNDJSONWriter はヘッダーを送出し、書き込みタイムアウトを解除したwriterを返す。
func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	// サーバーのWriteTimeoutでは長時間の購読が切れるため解除する。未対応のwriterでは無視する
	_ = rc.SetWriteDeadline(time.Time{})
	return &ndjsonWriter{enc: json.NewEncoder(w), rc: rc}
}

// Write は1行書き込んでフラッシュする。
func (n *ndjsonWriter) Write(v any) error {
	if err := n.enc.Encode(v); err != nil {
		return err
	}
	if err := n.rc.Flush(); err != nil && err != http.ErrNotSupported {
		return err
	}
	return nil
}
