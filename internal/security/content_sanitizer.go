// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は出品者が入力した商品説明のHTMLをサニタイズし、
// 商品ページに埋め込んでも安全な形に変換する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は商品説明のサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize は商品説明のHTMLをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, strong, em, b, i, h3, h4）のみを通過させ、
	// script, iframe, style, imgタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	Sanitize(rawHTML string) string

	// PlainText はタグをすべて除去したテキストを返す。商品カードの抜粋に使う。
	PlainText(rawHTML string) string

	// SafeImageURL は商品画像のURLがhttpまたはhttpsの絶対URLであればそのまま返し、
	// それ以外（javascript:, data:, 相対URLなど）は空文字列を返す。
	SafeImageURL(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, strong, em, b, i, h3, h4
//   - 禁止タグ: script, iframe, style, img および全てのon*イベント属性
//   - aタグ: http/httpsの絶対URLのみ。target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// 商品説明の書式に必要な最低限のタグ
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "b", "i",
		"h3", "h4",
	)

	// 外部リンクは新しいタブで開く
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// PlainText はタグを除去し、連続する空白を1つにまとめたテキストを返す。
func (s *contentSanitizer) PlainText(rawHTML string) string {
	return strings.Join(strings.Fields(s.strict.Sanitize(rawHTML)), " ")
}

// SafeImageURL は画像URLを検証する。
func (s *contentSanitizer) SafeImageURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
