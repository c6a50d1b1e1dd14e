// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/formman/internal/middleware"
	"github.com/hitoshi/formman/internal/model"
)

// decodeJSONBody はリクエストボディをdstにデコードする。
// 解析に失敗した場合は400レスポンスを書き込んでfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parsePageQuery はカーソルページネーションのクエリパラメータを解析する。
// cursorはRFC3339形式。未指定の場合はゼロ値（先頭ページ）。
// limitは整数。未指定・不正な値は0として扱い、サービス層で既定値に丸められる。
func parsePageQuery(r *http.Request) (cursor time.Time, limit int, err error) {
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, 0, model.NewValidationError("cursor", "must be RFC3339 timestamp")
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	return cursor, limit, nil
}
