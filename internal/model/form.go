package model

import (
	"encoding/json"
	"time"
)

// Form はフィードバック収集フォームを表す。
// Hashは公開URLに使われる短いランダム識別子で、連番IDの推測を防ぐ。
type Form struct {
	ID            string
	Hash          string
	OwnerID       string
	OwnerUsername string // usersテーブルとのJOINで供給される
	Expiration    *time.Time
	Public        bool
	Data          json.RawMessage
	FeedbackCount int
	CreatedAt     time.Time
}

// Expired はフォームが期限切れかどうかを返す。
// Expirationが未設定のフォームは期限切れにならない。
func (f *Form) Expired(now time.Time) bool {
	return f.Expiration != nil && !f.Expiration.After(now)
}

// Feedback はフォームへの投稿を表す。
// AccountIDがnilの場合は匿名投稿。
type Feedback struct {
	ID        string
	FormHash  string
	AccountID *string
	Username  string // 匿名投稿の場合は空
	Data      json.RawMessage
	CreatedAt time.Time
}
