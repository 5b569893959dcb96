package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: config, auth, validation, database, export, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSecretNotConfigured     = "SECRET_NOT_CONFIGURED"
	ErrCodeMissingSignatureHeaders = "MISSING_SIGNATURE_HEADERS"
	ErrCodeInvalidSignature        = "INVALID_SIGNATURE"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeAppNotFound             = "APP_NOT_FOUND"
	ErrCodeAppNameExists           = "APP_NAME_EXISTS"
	ErrCodeAppHasEvents            = "APP_HAS_EVENTS"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeNoExportData            = "NO_EXPORT_DATA"
	ErrCodeInvalidAvatarURL        = "INVALID_AVATAR_URL"
	ErrCodeDatabaseError           = "DATABASE_ERROR"
)

// NewSecretNotConfiguredError はWebhookシークレット未設定エラーを生成する。
// デプロイ設定の不備であり、リクエストの再送では解決しない。
func NewSecretNotConfiguredError(appName string) *APIError {
	return &APIError{
		Code:     ErrCodeSecretNotConfigured,
		Message:  fmt.Sprintf("アプリケーション %s のWebhookシークレットが設定されていません。", appName),
		Category: "config",
		Action:   fmt.Sprintf("環境変数 WEBHOOK_SECRET_%s を設定してください。", appName),
	}
}

// NewMissingSignatureHeadersError は署名ヘッダー欠落エラーを生成する。
func NewMissingSignatureHeadersError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingSignatureHeaders,
		Message:  "署名ヘッダー（svix-id, svix-timestamp, svix-signature）が不足しています。",
		Category: "auth",
		Action:   "IdPのWebhook設定を確認してください。",
	}
}

// NewInvalidSignatureError は署名検証失敗エラーを生成する。
func NewInvalidSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignature,
		Message:  "Webhookの署名検証に失敗しました。",
		Category: "auth",
		Action:   "シークレットが送信側と一致しているか確認してください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストパラメータを確認してください。",
	}
}

// NewAppNotFoundError はアプリケーション未検出エラーを生成する。
func NewAppNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAppNotFound,
		Message:  "指定されたアプリケーションが見つかりません。",
		Category: "validation",
		Action:   "アプリケーションIDを確認してください。",
	}
}

// NewAppNameExistsError はアプリケーション名の重複エラーを生成する。
func NewAppNameExistsError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeAppNameExists,
		Message:  fmt.Sprintf("アプリケーション名 %s は既に使用されています。", name),
		Category: "validation",
		Action:   "別の名前を指定してください。",
	}
}

// NewAppHasEventsError は関連イベントが存在するアプリケーションの削除エラーを生成する。
// 件数を含むメッセージを返す（参照ガードはアプリケーション層で実施する）。
func NewAppHasEventsError(count int) *APIError {
	return &APIError{
		Code:     ErrCodeAppHasEvents,
		Message:  fmt.Sprintf("このアプリケーションには %d 件の認証イベントが関連付けられているため削除できません。", count),
		Category: "validation",
		Action:   "先にイベントを削除するか、アプリケーションを残してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(authUserID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", authUserID),
		Category: "database",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewNoExportDataError はエクスポート対象0件エラーを生成する。
// 空のスプレッドシートは生成せず、明示的なエラーとして扱う。
func NewNoExportDataError() *APIError {
	return &APIError{
		Code:     ErrCodeNoExportData,
		Message:  "エクスポート対象のイベントがありません。",
		Category: "export",
		Action:   "フィルタ条件を緩めて再度お試しください。",
	}
}

// NewInvalidAvatarURLError はアバターURLが安全でない場合のエラーを生成する。
func NewInvalidAvatarURLError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatarURL,
		Message:  "アバターURLが許可されていない宛先を指しています。",
		Category: "validation",
		Action:   "公開HTTPSのURLのみ利用できます。",
	}
}

// NewDatabaseError は永続化エラーを人間可読なカテゴリに変換して生成する。
// 内部詳細はログにのみ出力し、呼び出し元には返さない。
func NewDatabaseError(reason string) *APIError {
	if reason == "" {
		reason = "データベース操作に失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeDatabaseError,
		Message:  reason,
		Category: "database",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
