package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/authlog/internal/metrics"
	"github.com/hitoshi/authlog/internal/model"
	"github.com/hitoshi/authlog/internal/repository"
	"github.com/hitoshi/authlog/internal/security"
)

// signatureHeaders は必須の署名ヘッダー。いずれか1つでも欠けると検証前に失敗する。
var signatureHeaders = []string{"svix-id", "svix-timestamp", "svix-signature"}

// SecretResolver はアプリケーション名からWebhookシークレットを解決する。
// 未設定の場合は空文字列を返す。
type SecretResolver func(appName string) string

// Service はWebhook取り込みパイプラインのサービス層。
// 署名検証、ペイロード解釈、イベント種別ごとの永続化ディスパッチを行う。
type Service struct {
	appRepo   repository.ApplicationRepository
	userRepo  repository.UserRepository
	eventRepo repository.EventRepository
	verifier  SignatureVerifier
	secrets   SecretResolver
	guard     security.AvatarGuardService
	collector metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	appRepo repository.ApplicationRepository,
	userRepo repository.UserRepository,
	eventRepo repository.EventRepository,
	verifier SignatureVerifier,
	secrets SecretResolver,
	guard security.AvatarGuardService,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		appRepo:   appRepo,
		userRepo:  userRepo,
		eventRepo: eventRepo,
		verifier:  verifier,
		secrets:   secrets,
		guard:     guard,
		collector: collector,
	}
}

// ProcessWebhook はWebhookリクエスト1件を処理する。
// 検証失敗（シークレット未設定・ヘッダー欠落・署名不正）の場合は
// 永続化を一切行わずAPIErrorを返す。検証成功後はイベント種別に応じて
// 永続化し、未知の種別はログのみ出力して正常として扱う。
// 永続化失敗はdatabaseカテゴリのエラーとして返し、リトライは行わない
// （再送はIdP側の再配信ポリシーに委ねる）。
func (s *Service) ProcessWebhook(ctx context.Context, appName string, body []byte, headers http.Header) error {
	secret := s.secrets(appName)
	if secret == "" {
		s.collector.RecordWebhookVerifyFailure("missing_secret")
		return model.NewSecretNotConfiguredError(appName)
	}

	for _, h := range signatureHeaders {
		if headers.Get(h) == "" {
			s.collector.RecordWebhookVerifyFailure("missing_headers")
			return model.NewMissingSignatureHeadersError()
		}
	}

	if err := s.verifier.Verify(secret, body, headers); err != nil {
		slog.Warn("webhook署名検証に失敗しました",
			slog.String("application", appName),
			slog.String("error", err.Error()),
		)
		s.collector.RecordWebhookVerifyFailure("invalid_signature")
		return model.NewInvalidSignatureError()
	}

	evt, err := ParsePayload(body)
	if err != nil {
		return model.NewInvalidRequestError(err.Error())
	}

	s.collector.RecordWebhookReceived(string(evt.Type))

	return s.dispatch(ctx, appName, evt)
}

// dispatch はイベント種別ごとの永続化処理に振り分ける。
// 直和型のタグで網羅的に分岐し、未知の種別は明示的なデフォルト分岐でno-opとする。
func (s *Service) dispatch(ctx context.Context, appName string, evt *Event) error {
	// 未知の種別は永続化もアプリケーション解決も行わずACKする
	if !model.KnownEventType(evt.Type) {
		slog.Info("未知のイベント種別をACKしました",
			slog.String("application", appName),
			slog.String("event_type", string(evt.Type)),
		)
		s.collector.RecordWebhookUnknownType(string(evt.Type))
		return nil
	}

	app, err := s.appRepo.FindByName(ctx, appName)
	if err != nil {
		return s.databaseError("application lookup", appName, err)
	}
	if app == nil {
		// シークレットは設定済みだがアプリケーション行が未登録の状態。
		// 取り込めないので永続化エラーとして呼び出し元の再送に委ねる。
		return s.databaseError("application lookup", appName,
			fmt.Errorf("application not registered: %s", appName))
	}

	switch evt.Type {
	case model.EventSessionCreated, model.EventSessionEnded,
		model.EventSessionRevoked, model.EventSessionRemoved:
		return s.handleSessionEvent(ctx, app, evt)

	case model.EventUserCreated:
		return s.handleUserCreated(ctx, app, evt)

	case model.EventUserUpdated:
		return s.handleUserUpdated(ctx, app, evt)

	default:
		// KnownEventTypeで弾いているため到達しない
		return nil
	}
}

// handleSessionEvent はsession.*イベントを処理する。
// 既存ユーザー（subject IDで一致）に紐付けたイベントを1件追記する。
func (s *Service) handleSessionEvent(ctx context.Context, app *model.Application, evt *Event) error {
	user, err := s.userRepo.FindByAuthUserID(ctx, evt.Session.UserID)
	if err != nil {
		return s.databaseError("user lookup", app.Name, err)
	}
	if user == nil {
		return model.NewUserNotFoundError(evt.Session.UserID)
	}

	event := s.newAuthEvent(evt.Type, app.ID, user.ID)
	if err := s.eventRepo.Insert(ctx, event); err != nil {
		return s.databaseError("event insert", app.Name, err)
	}

	s.collector.RecordEventInserted(string(evt.Type))
	slog.Info("セッションイベントを記録しました",
		slog.String("application", app.Name),
		slog.String("event_type", string(evt.Type)),
		slog.String("auth_user_id", evt.Session.UserID),
	)
	return nil
}

// handleUserCreated はuser.createdイベントを処理する。
// subject IDでユーザーを検索し、存在しなければペイロードのプロフィールで
// 作成、存在すれば再利用する（create-or-connect）。いずれの場合も
// イベントを1件追記する。
func (s *Service) handleUserCreated(ctx context.Context, app *model.Application, evt *Event) error {
	user, err := s.userRepo.FindByAuthUserID(ctx, evt.User.ID)
	if err != nil {
		return s.databaseError("user lookup", app.Name, err)
	}

	if user == nil {
		now := time.Now()
		user = &model.User{
			ID:         uuid.NewString(),
			AuthUserID: evt.User.ID,
			FirstName:  evt.User.FirstName,
			LastName:   evt.User.LastName,
			Image:      s.safeAvatarURL(evt.User.ImageURL),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return s.databaseError("user create", app.Name, err)
		}
	}

	event := s.newAuthEvent(evt.Type, app.ID, user.ID)
	if err := s.eventRepo.Insert(ctx, event); err != nil {
		return s.databaseError("event insert", app.Name, err)
	}

	s.collector.RecordEventInserted(string(evt.Type))
	slog.Info("ユーザー作成イベントを記録しました",
		slog.String("application", app.Name),
		slog.String("auth_user_id", evt.User.ID),
	)
	return nil
}

// handleUserUpdated はuser.updatedイベントを処理する。
// イベント追記とプロフィール上書きを単一のSERIALIZABLEトランザクションで
// 実行する。競合・タイムアウト時は全体が失敗し、部分書き込みは残らない。
func (s *Service) handleUserUpdated(ctx context.Context, app *model.Application, evt *Event) error {
	user, err := s.userRepo.FindByAuthUserID(ctx, evt.User.ID)
	if err != nil {
		return s.databaseError("user lookup", app.Name, err)
	}
	if user == nil {
		return model.NewUserNotFoundError(evt.User.ID)
	}

	event := s.newAuthEvent(evt.Type, app.ID, user.ID)
	profile := repository.ProfileUpdate{
		AuthUserID: evt.User.ID,
		FirstName:  evt.User.FirstName,
		LastName:   evt.User.LastName,
		Image:      s.safeAvatarURL(evt.User.ImageURL),
	}

	if err := s.eventRepo.InsertWithProfileUpdate(ctx, event, profile); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError(evt.User.ID)
		}
		if repository.IsTxContention(err) {
			slog.Warn("プロフィール更新トランザクションが競合しました",
				slog.String("application", app.Name),
				slog.String("auth_user_id", evt.User.ID),
				slog.String("error", err.Error()),
			)
		}
		return s.databaseError("profile update", app.Name, err)
	}

	s.collector.RecordEventInserted(string(evt.Type))
	slog.Info("ユーザー更新イベントを記録しました",
		slog.String("application", app.Name),
		slog.String("auth_user_id", evt.User.ID),
	)
	return nil
}

// newAuthEvent は監査レコードを生成する。作成後は不変として扱う。
func (s *Service) newAuthEvent(eventType model.EventType, appID, userID string) *model.AuthEvent {
	return &model.AuthEvent{
		ID:            uuid.NewString(),
		EventType:     eventType,
		ApplicationID: appID,
		UserID:        userID,
		CreatedAt:     time.Now(),
	}
}

// safeAvatarURL はアバターURLを検証し、安全でない場合は空文字列に落とす。
// アバターは補助情報であり、不正なURLで取り込み全体を失敗させない。
func (s *Service) safeAvatarURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		slog.Warn("アバターURLを破棄しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return rawURL
}

// databaseError は永続化エラーをログに記録し、databaseカテゴリのAPIErrorに変換する。
// 内部詳細はログにのみ出力する。
func (s *Service) databaseError(op, appName string, err error) error {
	slog.Error("webhook永続化エラー",
		slog.String("op", op),
		slog.String("application", appName),
		slog.String("error", err.Error()),
	)
	return model.NewDatabaseError("")
}
