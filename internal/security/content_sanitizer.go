// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は採用企業が入力した求人本文や求職者の自己紹介を
// 画面に返す前にサニタイズする。bluemondayの許可リストベースのポリシーを使う。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェース。
type ContentSanitizerService interface {
	// Sanitize は本文用のサニタイズを行う。
	// 段落・改行・箇条書き・強調・httpsリンクだけを残し、script等は除去する。
	Sanitize(rawHTML string) string
	// Strip はすべてのタグを除去する。タイトルや会社名など1行の項目に使う。
	Strip(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
type contentSanitizer struct {
	body  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "strong", "em", "b", "i")

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "mailto")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		body:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

// Sanitize は本文用のサニタイズを行う。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.body.Sanitize(rawHTML)
}

// Strip はすべてのタグを除去する。
func (s *contentSanitizer) Strip(raw string) string {
	return s.plain.Sanitize(raw)
}
