package auth

import (
	"sync"
	"time"
)

// LoginRateLimiterConfig はログイン試行回数制限の設定。
type LoginRateLimiterConfig struct {
	Window      time.Duration // 失敗回数を数えるローリングウィンドウ
	MaxAttempts int           // ウィンドウ内で許容する最大失敗回数
}

// DefaultLoginRateLimiterConfig はデフォルトのログイン試行制限設定を返す。
// 要件: 1時間あたり5回まで。
func DefaultLoginRateLimiterConfig() LoginRateLimiterConfig {
	return LoginRateLimiterConfig{
		Window:      time.Hour,
		MaxAttempts: 5,
	}
}

// loginCounter は単一アカウントの失敗回数とウィンドウ開始時刻を保持する。
type loginCounter struct {
	attempts    int
	windowStart time.Time
}

// LoginRateLimiter はアカウント（ユーザー名）ごとの認証失敗回数を追跡する。
// ウィンドウの期限切れはCheck/RecordFailure時に遅延評価され、
// バックグラウンドのスイーパーを必要としない。
// ロックはマップ操作の間だけ保持し、パスワードハッシュ計算やDB参照を
// ロック内で行ってはならない。
type LoginRateLimiter struct {
	config LoginRateLimiterConfig

	mu       sync.Mutex
	counters map[string]*loginCounter

	now func() time.Time // テストで時刻を制御するための注入ポイント
}

// NewLoginRateLimiter は新しいLoginRateLimiterを生成する。
func NewLoginRateLimiter(config LoginRateLimiterConfig) *LoginRateLimiter {
	return &LoginRateLimiter{
		config:   config,
		counters: make(map[string]*loginCounter),
		now:      time.Now,
	}
}

// Check は指定アカウントの認証試行が許可されるかどうかを返す。
// 有効なウィンドウ内でMaxAttempts以上失敗している場合はfalseを返す。
// 期限切れのウィンドウはこの時点で破棄される。
func (l *LoginRateLimiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok {
		return true
	}
	if l.expired(c) {
		delete(l.counters, key)
		return true
	}
	return c.attempts < l.config.MaxAttempts
}

// RecordFailure は認証失敗を記録する。
// ウィンドウが存在しないか期限切れの場合は新しいウィンドウを開始する。
func (l *LoginRateLimiter) RecordFailure(key string) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || l.expired(c) {
		l.counters[key] = &loginCounter{attempts: 1, windowStart: now}
		return
	}
	c.attempts++
}

// Clear は指定アカウントのカウンターを即座にリセットする。
// 認証成功時に呼び出す。
func (l *LoginRateLimiter) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, key)
}

// Cleanup は期限切れのカウンターをまとめて削除し、削除件数を返す。
// 遅延評価だけでも正しさは保たれるが、試行が二度と来ないキーの
// メモリを回収するために定期的に呼び出せる。
func (l *LoginRateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.counters {
		if l.expired(c) {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}

// Size は現在追跡中のカウンター数を返す。テストおよびメトリクス用。
func (l *LoginRateLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

// expired はカウンターのウィンドウが期限切れかどうかを判定する。
// 呼び出し側でロックを保持していること。
func (l *LoginRateLimiter) expired(c *loginCounter) bool {
	return l.now().Sub(c.windowStart) > l.config.Window
}
