package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/authlog/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// List は全ユーザーを返す。
	List(ctx context.Context) ([]*model.User, error)
	// Avatar はユーザーのアバター画像を外部から取得して返す。
	Avatar(ctx context.Context, id string) (body io.ReadCloser, contentType string, err error)
}

// UserHandler はユーザー参照のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// userResponse はユーザーのAPIレスポンス。
type userResponse struct {
	ID          string    `json:"id"`
	AuthUserID  string    `json:"authUserId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DisplayName string    `json:"displayName"`
	HasAvatar   bool      `json:"hasAvatar"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListUsers は全ユーザーを返す。フィルタ用ドロップダウンで使用する。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{
			ID:          u.ID,
			AuthUserID:  u.AuthUserID,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			DisplayName: u.DisplayName(),
			HasAvatar:   u.Image != "",
			CreatedAt:   u.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetAvatar はユーザーのアバター画像をプロキシして返す。
// GET /api/users/{id}/avatar
// 外部URLをクライアントに直接渡さないことで、取得経路をSSRFガード付きの
// クライアントに限定する。
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := h.service.Avatar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("アバター画像の転送に失敗しました", slog.String("error", err.Error()))
	}
}
