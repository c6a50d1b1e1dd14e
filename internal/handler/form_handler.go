package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/formman/internal/feedback"
	"github.com/hitoshi/formman/internal/form"
	"github.com/hitoshi/formman/internal/middleware"
	"github.com/hitoshi/formman/internal/model"
)

// FormServiceInterface はフォームハンドラーが必要とするサービスインターフェース。
type FormServiceInterface interface {
	// Create は新しいフォームを作成する。
	Create(ctx context.Context, owner *model.Account, input form.CreateInput) (*model.Form, error)
	// Get はハッシュでフォームを取得する。principalは匿名の場合nil。
	Get(ctx context.Context, principal *model.Account, hash string) (*model.Form, error)
	// ListPublic は公開中かつ期限内のフォーム一覧を返す。
	ListPublic(ctx context.Context, cursor time.Time, limit int) ([]*model.Form, error)
	// Update はフォームを部分更新する。所有者または管理者のみ。
	Update(ctx context.Context, principal *model.Account, hash string, input form.UpdateInput) (*model.Form, error)
	// Expire はフォームを期限切れにする。所有者または管理者のみ。
	Expire(ctx context.Context, principal *model.Account, hash string) error
}

var _ FormServiceInterface = (*form.Service)(nil)

// FeedbackServiceInterface はフィードバックハンドラーが必要とするサービスインターフェース。
type FeedbackServiceInterface interface {
	// Submit はフォームへフィードバックを投稿する。principalは匿名の場合nil。
	Submit(ctx context.Context, principal *model.Account, formHash string, data json.RawMessage) (*model.Feedback, error)
	// List はフォームのフィードバック一覧を返す。所有者または管理者のみ。
	List(ctx context.Context, principal *model.Account, formHash string, cursor time.Time, limit int) ([]*model.Feedback, error)
}

var _ FeedbackServiceInterface = (*feedback.Service)(nil)

// FormHandler はフォームとフィードバックのHTTPハンドラー。
type FormHandler struct {
	forms     FormServiceInterface
	feedbacks FeedbackServiceInterface
}

// NewFormHandler はFormHandlerを生成する。
func NewFormHandler(forms FormServiceInterface, feedbacks FeedbackServiceInterface) *FormHandler {
	return &FormHandler{
		forms:     forms,
		feedbacks: feedbacks,
	}
}

// formResponse はフォーム情報のAPIレスポンス。
// 公開識別子はハッシュのみで、内部IDは露出しない。
type formResponse struct {
	Hash          string          `json:"hash"`
	Owner         string          `json:"owner"`
	Expiration    *time.Time      `json:"expiration,omitempty"`
	Public        bool            `json:"public"`
	Data          json.RawMessage `json:"data"`
	FeedbackCount int             `json:"feedback_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newFormResponse(f *model.Form) formResponse {
	return formResponse{
		Hash:          f.Hash,
		Owner:         f.OwnerUsername,
		Expiration:    f.Expiration,
		Public:        f.Public,
		Data:          f.Data,
		FeedbackCount: f.FeedbackCount,
		CreatedAt:     f.CreatedAt,
	}
}

// feedbackResponse はフィードバック情報のAPIレスポンス。
// 匿名投稿の場合usernameは省略される。
type feedbackResponse struct {
	ID        string          `json:"id"`
	FormHash  string          `json:"form_hash"`
	Username  string          `json:"username,omitempty"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

func newFeedbackResponse(fb *model.Feedback) feedbackResponse {
	return feedbackResponse{
		ID:        fb.ID,
		FormHash:  fb.FormHash,
		Username:  fb.Username,
		Data:      fb.Data,
		CreatedAt: fb.CreatedAt,
	}
}

// createFormRequest はフォーム作成リクエストのボディ。
type createFormRequest struct {
	Expiration *time.Time      `json:"expiration"`
	Public     bool            `json:"public"`
	Data       json.RawMessage `json:"data"`
}

// updateFormRequest はフォーム部分更新リクエストのボディ。
// expirationはRawMessageで受け、フィールド省略（変更なし）と
// 明示的なnull（期限解除）を区別する。
type updateFormRequest struct {
	Expiration json.RawMessage `json:"expiration"`
	Public     *bool           `json:"public"`
	Data       json.RawMessage `json:"data"`
}

// submitFeedbackRequest はフィードバック投稿リクエストのボディ。
type submitFeedbackRequest struct {
	Data json.RawMessage `json:"data"`
}

// ListPublic は公開フォームの一覧を返す。
// GET /api/forms?cursor=RFC3339&limit=n
func (h *FormHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	cursor, limit, err := parsePageQuery(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	forms, err := h.forms.ListPublic(r.Context(), cursor, limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	responses := make([]formResponse, 0, len(forms))
	for _, f := range forms {
		responses = append(responses, newFormResponse(f))
	}
	writeJSON(w, http.StatusOK, responses)
}

// Create は新しいフォームを作成する。
// POST /api/forms
func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionInvalidError())
		return
	}

	var req createFormRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	created, err := h.forms.Create(r.Context(), principal, form.CreateInput{
		Expiration: req.Expiration,
		Public:     req.Public,
		Data:       req.Data,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newFormResponse(created))
}

// Get はハッシュでフォームを取得する。
// GET /api/forms/{hash}
func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := middleware.OptionalAccountFromContext(r.Context())

	f, err := h.forms.Get(r.Context(), principal, chi.URLParam(r, "hash"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newFormResponse(f))
}

// Update はフォームを部分更新する。
// PATCH /api/forms/{hash}
func (h *FormHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionInvalidError())
		return
	}

	var req updateFormRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	input := form.UpdateInput{
		Public: req.Public,
		Data:   req.Data,
	}
	if req.Expiration != nil {
		expiration, err := parseNullableTime(req.Expiration)
		if err != nil {
			middleware.WriteError(w, model.NewValidationError("expiration", "must be RFC3339 timestamp or null"))
			return
		}
		input.Expiration = &expiration
	}

	updated, err := h.forms.Update(r.Context(), principal, chi.URLParam(r, "hash"), input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newFormResponse(updated))
}

// Delete はフォームを期限切れにする。
// DELETE /api/forms/{hash}
//
// 行は物理削除されず、期限が現在時刻に設定される。冪等。
func (h *FormHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewSessionInvalidError())
		return
	}

	if err := h.forms.Expire(r.Context(), principal, chi.URLParam(r, "hash")); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitFeedback はフォームへフィードバックを投稿する。匿名投稿可。
// POST /api/forms/{hash}/feedbacks
func (h *FormHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	principal := middleware.OptionalAccountFromContext(r.Context())

	var req submitFeedbackRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	fb, err := h.feedbacks.Submit(r.Context(), principal, chi.URLParam(r, "hash"), req.Data)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newFeedbackResponse(fb))
}

// ListFeedbacks はフォームのフィードバック一覧を返す。所有者または管理者のみ。
// GET /api/forms/{hash}/feedbacks?cursor=RFC3339&limit=n
func (h *FormHandler) ListFeedbacks(w http.ResponseWriter, r *http.Request) {
	principal := middleware.OptionalAccountFromContext(r.Context())

	cursor, limit, err := parsePageQuery(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	feedbacks, err := h.feedbacks.List(r.Context(), principal, chi.URLParam(r, "hash"), cursor, limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	responses := make([]feedbackResponse, 0, len(feedbacks))
	for _, fb := range feedbacks {
		responses = append(responses, newFeedbackResponse(fb))
	}
	writeJSON(w, http.StatusOK, responses)
}

// parseNullableTime はRawMessageをパースし、"null"はnil（期限解除）として返す。
func parseNullableTime(raw json.RawMessage) (*time.Time, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
