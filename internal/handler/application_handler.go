package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/teammate/internal/application"
	"github.com/hitoshi/teammate/internal/metrics"
	"github.com/hitoshi/teammate/internal/middleware"
	"github.com/hitoshi/teammate/internal/model"
)

// ApplicationServiceInterface は応募ハンドラーが必要とするサービスインターフェース。
type ApplicationServiceInterface interface {
	// Apply は投稿への応募を作成する。重複応募はAlreadyApplied=trueで吸収される。
	Apply(ctx context.Context, postID, applicantID string) (*application.ApplyResult, error)
	// ListByPost は投稿への応募一覧を返す。投稿者以外はFORBIDDEN。
	ListByPost(ctx context.Context, postID, requesterID string) ([]model.ApplicationWithApplicant, error)
}

// ApplicationHandler は応募のHTTPハンドラー。
type ApplicationHandler struct {
	service   ApplicationServiceInterface
	collector metrics.MetricsCollector
}

// NewApplicationHandler はApplicationHandlerを生成する。collectorはnil可。
func NewApplicationHandler(service ApplicationServiceInterface, collector metrics.MetricsCollector) *ApplicationHandler {
	return &ApplicationHandler{
		service:   service,
		collector: collector,
	}
}

// applyResponse は応募作成のAPIレスポンス。
// 重複応募（already_applied=true）の場合、idとcreated_atは省略される。
type applyResponse struct {
	ID             string    `json:"id,omitempty"`
	PostID         string    `json:"post_id"`
	ApplicantID    string    `json:"applicant_id"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
	AlreadyApplied bool      `json:"already_applied"`
}

// applicantResponse は応募者一覧の1要素。
type applicantResponse struct {
	ID                 string    `json:"id"`
	ApplicantID        string    `json:"applicant_id"`
	ApplicantUsername  string    `json:"applicant_username"`
	ApplicantAvatarURL string    `json:"applicant_avatar_url"`
	CreatedAt          time.Time `json:"created_at"`
}

// Apply は投稿への応募を処理する。
// 同一ユーザーの2回目以降の応募はエラーにせず already_applied=true を返す。
// POST /api/posts/:id/applications
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	postID := chi.URLParam(r, "id")

	result, err := h.service.Apply(r.Context(), postID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil && !result.AlreadyApplied {
		h.collector.RecordApplicationCreated()
	}

	status := http.StatusCreated
	if result.AlreadyApplied {
		status = http.StatusOK
	}

	// 重複応募の場合、サービスはApplication=nilで吸収を通知する
	resp := applyResponse{
		PostID:         postID,
		ApplicantID:    userID,
		AlreadyApplied: result.AlreadyApplied,
	}
	if result.Application != nil {
		resp.ID = result.Application.ID
		resp.PostID = result.Application.PostID
		resp.ApplicantID = result.Application.ApplicantID
		resp.CreatedAt = result.Application.CreatedAt
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// ListApplicants は投稿への応募者一覧を返す。投稿者のみ閲覧可能。
// GET /api/posts/:id/applications
func (h *ApplicationHandler) ListApplicants(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	postID := chi.URLParam(r, "id")

	apps, err := h.service.ListByPost(r.Context(), postID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]applicantResponse, 0, len(apps))
	for _, a := range apps {
		resp = append(resp, applicantResponse{
			ID:                 a.ID,
			ApplicantID:        a.ApplicantID,
			ApplicantUsername:  a.ApplicantUsername,
			ApplicantAvatarURL: a.ApplicantAvatarURL,
			CreatedAt:          a.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
