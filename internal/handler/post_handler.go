package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/teammate/internal/metrics"
	"github.com/hitoshi/teammate/internal/middleware"
	"github.com/hitoshi/teammate/internal/model"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// Create はタイトルとボディをサニタイズして投稿を作成する。
	Create(ctx context.Context, userID, title, body string) (*model.Post, error)
	// Get は投稿を1件取得する。見つからない場合はPOST_NOT_FOUNDを返す。
	Get(ctx context.Context, postID string) (*model.Post, error)
	// List は新着順の投稿一覧を返す。読み取りエラーでも空スライスを返す。
	List(ctx context.Context, query string) []model.PostWithAuthor
}

// PostHandler はアイデア投稿のHTTPハンドラー。
type PostHandler struct {
	service   PostServiceInterface
	collector metrics.MetricsCollector
}

// NewPostHandler はPostHandlerを生成する。collectorはnil可。
func NewPostHandler(service PostServiceInterface, collector metrics.MetricsCollector) *PostHandler {
	return &PostHandler{
		service:   service,
		collector: collector,
	}
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// postResponse は投稿1件のAPIレスポンス。
type postResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// postWithAuthorResponse は投稿者プロフィール付きの投稿レスポンス。
type postWithAuthorResponse struct {
	postResponse
	AuthorUsername  string `json:"author_username"`
	AuthorAvatarURL string `json:"author_avatar_url"`
}

// ListPosts は投稿一覧を新着順で返す。
// 読み取りエラー時も200と空配列を返す（サービス層でログ済み）。
// GET /api/posts?q=検索語
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	posts := h.service.List(r.Context(), query)

	resp := make([]postWithAuthorResponse, 0, len(posts))
	for _, p := range posts {
		resp = append(resp, toPostWithAuthorResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetPost は投稿詳細を取得する。
// GET /api/posts/:id
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	post, err := h.service.Get(r.Context(), postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostResponse(post))
}

// CreatePost は投稿を作成する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	post, err := h.service.Create(r.Context(), userID, req.Title, req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordPostCreated()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostResponse(post))
}

// --- ヘルパー関数 ---

// toPostResponse はmodel.PostからAPIレスポンスに変換する。
func toPostResponse(post *model.Post) postResponse {
	return postResponse{
		ID:        post.ID,
		UserID:    post.UserID,
		Title:     post.Title,
		Body:      post.Body,
		CreatedAt: post.CreatedAt,
	}
}

// toPostWithAuthorResponse はmodel.PostWithAuthorからAPIレスポンスに変換する。
func toPostWithAuthorResponse(p model.PostWithAuthor) postWithAuthorResponse {
	return postWithAuthorResponse{
		postResponse:    toPostResponse(&p.Post),
		AuthorUsername:  p.AuthorUsername,
		AuthorAvatarURL: p.AuthorAvatarURL,
	}
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorizedError は401の統一エラーレスポンスを書き込む。
func writeUnauthorizedError(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	})
}

// writeInvalidRequestError はリクエストボディ解析失敗時の400レスポンスを書き込む。
func writeInvalidRequestError(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// internalAPIError は内部エラーのAPIErrorを返す。
func internalAPIError() *model.APIError {
	return &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, internalAPIError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeEmailNotConfirmed, model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodePostNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeWeakPassword, model.ErrCodeInvalidConfirmToken,
		model.ErrCodeEmptyTitle, model.ErrCodeInvalidAvatar,
		model.ErrCodeAvatarTooLarge, model.ErrCodeInvalidAvatarURL:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
