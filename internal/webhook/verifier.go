package webhook

import (
	"fmt"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"
)

// SignatureVerifier はWebhook署名検証のインターフェースを定義する。
// テストではモックに差し替える。
type SignatureVerifier interface {
	// Verify はペイロードが指定シークレットで署名されていることを検証する。
	// svix-id、svix-timestamp、svix-signatureヘッダーを参照する。
	// タイムスタンプは小さなクロックスキューを許容する。
	Verify(secret string, payload []byte, headers http.Header) error
}

// svixVerifier はsvixの署名スキーム（HMAC-SHA256）による実装。
type svixVerifier struct{}

// NewSvixVerifier はsvixベースのSignatureVerifierを生成する。
func NewSvixVerifier() *svixVerifier {
	return &svixVerifier{}
}

// Verify はsvixライブラリでペイロードの署名を検証する。
func (v *svixVerifier) Verify(secret string, payload []byte, headers http.Header) error {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return fmt.Errorf("failed to init webhook verifier: %w", err)
	}
	if err := wh.Verify(payload, headers); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SignatureVerifier = (*svixVerifier)(nil)
