package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/authlog/internal/model"
)

// ApplicationServiceInterface はアプリケーションハンドラーが必要とするサービスインターフェース。
type ApplicationServiceInterface interface {
	// Create はアプリケーションを新規作成する。
	Create(ctx context.Context, name, description string) (*model.Application, error)
	// Get は指定IDのアプリケーションを取得する。
	Get(ctx context.Context, id string) (*model.Application, error)
	// List は全アプリケーションを返す。
	List(ctx context.Context) ([]*model.Application, error)
	// ListForFilter はフィルタ用のID+名前を返す。
	ListForFilter(ctx context.Context) ([]model.ApplicationRef, error)
	// Update は名前と説明を更新する。
	Update(ctx context.Context, id, name, description string) (*model.Application, error)
	// Delete はアプリケーションを削除する。関連イベントがある場合は拒否する。
	Delete(ctx context.Context, id string) error
}

// ApplicationHandler はアプリケーション管理のHTTPハンドラー。
type ApplicationHandler struct {
	service ApplicationServiceInterface
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(service ApplicationServiceInterface) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// applicationRequest はアプリケーション作成・更新リクエストのボディ。
type applicationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// applicationResponse はアプリケーションのAPIレスポンス。
type applicationResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateApplication はアプリケーションを新規作成する。
// POST /api/applications
func (h *ApplicationHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	app, err := h.service.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toApplicationResponse(app))
}

// GetApplication はアプリケーション詳細を取得する。
// GET /api/applications/{id}
func (h *ApplicationHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// ListApplications は全アプリケーションを返す。
// GET /api/applications
func (h *ApplicationHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		resp = append(resp, toApplicationResponse(app))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListApplicationsForFilter はフィルタ用ドロップダウンのID+名前一覧を返す。
// GET /api/applications/filter
func (h *ApplicationHandler) ListApplicationsForFilter(w http.ResponseWriter, r *http.Request) {
	refs, err := h.service.ListForFilter(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]appRefResponse, 0, len(refs))
	for _, ref := range refs {
		resp = append(resp, appRefResponse{ID: ref.ID, Name: ref.Name})
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateApplication はアプリケーションの名前と説明を更新する。
// PUT /api/applications/{id}
func (h *ApplicationHandler) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	app, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// DeleteApplication はアプリケーションを削除する。
// DELETE /api/applications/{id}
func (h *ApplicationHandler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toApplicationResponse はmodel.ApplicationからAPIレスポンスに変換する。
func toApplicationResponse(app *model.Application) applicationResponse {
	return applicationResponse{
		ID:          app.ID,
		Name:        app.Name,
		Description: app.Description,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}
