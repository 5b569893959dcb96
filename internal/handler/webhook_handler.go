package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/authlog/internal/model"
)

// maxWebhookBodySize はWebhookペイロードの最大サイズ。
const maxWebhookBodySize = 1 << 20 // 1MiB

// WebhookServiceInterface はWebhookハンドラーが必要とするサービスインターフェース。
type WebhookServiceInterface interface {
	// ProcessWebhook は署名検証からイベント永続化までの取り込みを実行する。
	ProcessWebhook(ctx context.Context, appName string, body []byte, headers http.Header) error
}

// WebhookHandler はWebhook受信のHTTPハンドラー。
type WebhookHandler struct {
	service WebhookServiceInterface
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(service WebhookServiceInterface) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// ackResponse は取り込み成功時の固定ACKペイロード。
type ackResponse struct {
	Success bool `json:"success"`
}

// Receive はWebhookを受信して取り込む。
// POST /webhook/{appName}
//
// 署名はボディの生バイト列に対して計算されるため、
// 読み取り後のボディをそのまま検証に渡す。
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	appName := chi.URLParam(r, "appName")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの読み取りに失敗しました"))
		return
	}

	if err := h.service.ProcessWebhook(r.Context(), appName, body, r.Header); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			writeAPIErrorResponse(w, mapWebhookErrorToHTTPStatus(apiErr), apiErr)
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

// mapWebhookErrorToHTTPStatus はWebhook取り込みのエラーをHTTPステータスコードに変換する。
// 検証系の失敗は400を返し、永続化の失敗はIdP側の再配信を促すため500を返す。
func mapWebhookErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeSecretNotConfigured,
		model.ErrCodeMissingSignatureHeaders,
		model.ErrCodeInvalidSignature,
		model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		// USER_NOT_FOUNDを含む永続化系はすべて500
		return http.StatusInternalServerError
	}
}
