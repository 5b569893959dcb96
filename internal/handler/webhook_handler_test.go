package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/authlog/internal/model"
)

type mockWebhookService struct {
	processFn  func(ctx context.Context, appName string, body []byte, headers http.Header) error
	gotAppName string
	gotBody    []byte
	gotHeaders http.Header
}

func (m *mockWebhookService) ProcessWebhook(ctx context.Context, appName string, body []byte, headers http.Header) error {
	m.gotAppName = appName
	m.gotBody = body
	m.gotHeaders = headers
	if m.processFn != nil {
		return m.processFn(ctx, appName, body, headers)
	}
	return nil
}

func newWebhookRouter(svc WebhookServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewWebhookHandler(svc)
	r.Post("/webhook/{appName}", h.Receive)
	return r
}

func TestWebhookReceive_Ack(t *testing.T) {
	svc := &mockWebhookService{}
	router := newWebhookRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/webhook/myapp", strings.NewReader(`{"type":"session.created"}`))
	req.Header.Set("svix-id", "msg_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body ackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body.Success {
		t.Errorf("固定ACKペイロードを返すべき: %s", rec.Body.String())
	}
	if svc.gotAppName != "myapp" {
		t.Errorf("appName = %s", svc.gotAppName)
	}
	if string(svc.gotBody) != `{"type":"session.created"}` {
		t.Errorf("生のボディがそのまま渡されるべき: %s", svc.gotBody)
	}
	if svc.gotHeaders.Get("svix-id") != "msg_1" {
		t.Error("リクエストヘッダーが検証に渡されるべき")
	}
}

func TestWebhookReceive_VerificationFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        *model.APIError
		wantStatus int
	}{
		{"シークレット未設定", model.NewSecretNotConfiguredError("myapp"), http.StatusBadRequest},
		{"署名ヘッダー欠落", model.NewMissingSignatureHeadersError(), http.StatusBadRequest},
		{"署名不正", model.NewInvalidSignatureError(), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWebhookService{
				processFn: func(ctx context.Context, appName string, body []byte, headers http.Header) error {
					return tt.err
				},
			}
			router := newWebhookRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/webhook/myapp", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body apiErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("統一エラーフォーマットであるべき: %v", err)
			}
			if body.Code != tt.err.Code {
				t.Errorf("code = %s, want %s", body.Code, tt.err.Code)
			}
		})
	}
}

func TestWebhookReceive_PersistenceFailureIs500(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ユーザー未検出", model.NewUserNotFoundError("user_1")},
		{"データベースエラー", model.NewDatabaseError("")},
		{"APIError以外", errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWebhookService{
				processFn: func(ctx context.Context, appName string, body []byte, headers http.Header) error {
					return tt.err
				},
			}
			router := newWebhookRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/webhook/myapp", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			// IdP側の再配信を促すため永続化系はすべて500
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
		})
	}
}
