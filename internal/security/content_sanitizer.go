// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はフォーム定義とフィードバックの自由記述テキストを
// サニタイズし、XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグのみを通過させる。
package security

import (
	"encoding/json"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力のサニタイズ機能のインターフェースを定義する。
// フォーム作成・更新およびフィードバック投稿の保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize はテキストをサニタイズして安全な文字列を返す。
	// 許可タグ（br, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string

	// SanitizeJSON はJSONドキュメント内のすべての文字列値を再帰的にサニタイズする。
	// オブジェクトのキーは変更しない。JSONとして不正な入力にはエラーを返す。
	SanitizeJSON(raw json.RawMessage) (json.RawMessage, error)
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: br, strong, em（装飾のみ）
//   - 禁止タグ: script, iframe, style, img, a および全てのon*イベント属性
//
// フォームデータは自由記述のテキストであり、リンクや画像の埋め込みは想定しない。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("br", "strong", "em")

	return &contentSanitizer{policy: p}
}

// Sanitize はテキストをサニタイズして安全な文字列を返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return s.policy.Sanitize(raw)
}

// SanitizeJSON はJSONドキュメント内のすべての文字列値を再帰的にサニタイズする。
func (s *contentSanitizer) SanitizeJSON(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty JSON document")
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}

	sanitized := s.sanitizeValue(doc)

	out, err := json.Marshal(sanitized)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode JSON document: %w", err)
	}
	return out, nil
}

// sanitizeValue はデコード済みJSON値を再帰的にサニタイズする。
func (s *contentSanitizer) sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return s.Sanitize(val)
	case []interface{}:
		for i, elem := range val {
			val[i] = s.sanitizeValue(elem)
		}
		return val
	case map[string]interface{}:
		for k, elem := range val {
			val[k] = s.sanitizeValue(elem)
		}
		return val
	default:
		// 数値・真偽値・nullはそのまま
		return v
	}
}
