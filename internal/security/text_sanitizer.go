package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はリモートから取得した自由テキスト（名前、オープニングクロール等）から
// マークアップを除去してプレーンテキストに整える。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyを使ったTextSanitizerの実装。
// Policyはスレッドセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText は全てのタグを除去し、エスケープされた実体参照を元の文字に戻す。
// 改行はオープニングクロールの表示に必要なため保持する。前後の空白は取り除く。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
