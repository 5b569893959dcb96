package webhook

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/authlog/internal/model"
	"github.com/hitoshi/authlog/internal/repository"
)

// --- モック ---

type mockAppRepo struct {
	findByNameFn func(ctx context.Context, name string) (*model.Application, error)
}

func (m *mockAppRepo) Create(ctx context.Context, app *model.Application) error { return nil }
func (m *mockAppRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	return nil, nil
}
func (m *mockAppRepo) FindByName(ctx context.Context, name string) (*model.Application, error) {
	if m.findByNameFn != nil {
		return m.findByNameFn(ctx, name)
	}
	return &model.Application{ID: "app-1", Name: name}, nil
}
func (m *mockAppRepo) List(ctx context.Context) ([]*model.Application, error) { return nil, nil }
func (m *mockAppRepo) ListForFilter(ctx context.Context) ([]model.ApplicationRef, error) {
	return nil, nil
}
func (m *mockAppRepo) Update(ctx context.Context, app *model.Application) error { return nil }
func (m *mockAppRepo) DeleteByID(ctx context.Context, id string) error          { return nil }

type mockUserRepo struct {
	findByAuthUserIDFn func(ctx context.Context, authUserID string) (*model.User, error)
	createFn           func(ctx context.Context, user *model.User) error
	createCalled       bool
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FindByAuthUserID(ctx context.Context, authUserID string) (*model.User, error) {
	if m.findByAuthUserIDFn != nil {
		return m.findByAuthUserIDFn(ctx, authUserID)
	}
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	m.createCalled = true
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) { return nil, nil }

type mockEventRepo struct {
	insertFn                  func(ctx context.Context, event *model.AuthEvent) error
	insertWithProfileUpdateFn func(ctx context.Context, event *model.AuthEvent, profile repository.ProfileUpdate) error
	insertCalled              bool
	txCalled                  bool
}

func (m *mockEventRepo) Insert(ctx context.Context, event *model.AuthEvent) error {
	m.insertCalled = true
	if m.insertFn != nil {
		return m.insertFn(ctx, event)
	}
	return nil
}
func (m *mockEventRepo) InsertWithProfileUpdate(ctx context.Context, event *model.AuthEvent, profile repository.ProfileUpdate) error {
	m.txCalled = true
	if m.insertWithProfileUpdateFn != nil {
		return m.insertWithProfileUpdateFn(ctx, event, profile)
	}
	return nil
}
func (m *mockEventRepo) List(ctx context.Context, filter model.EventFilter, limit, offset int) ([]model.AuthEventDetail, error) {
	return nil, nil
}
func (m *mockEventRepo) Count(ctx context.Context, filter model.EventFilter) (int, error) {
	return 0, nil
}
func (m *mockEventRepo) CountByType(ctx context.Context, filter model.EventFilter) ([]model.TypeCount, error) {
	return nil, nil
}
func (m *mockEventRepo) CountDistinctUsers(ctx context.Context, filter model.EventFilter) (int, error) {
	return 0, nil
}
func (m *mockEventRepo) CountPerDay(ctx context.Context, filter model.EventFilter, from time.Time) ([]model.DayCount, error) {
	return nil, nil
}
func (m *mockEventRepo) CountByApplication(ctx context.Context, applicationID string) (int, error) {
	return 0, nil
}
func (m *mockEventRepo) DeleteByFilter(ctx context.Context, filter model.EventFilter, limit int) (int, error) {
	return 0, nil
}

type mockVerifier struct {
	err error
}

func (m *mockVerifier) Verify(secret string, payload []byte, headers http.Header) error {
	return m.err
}

type mockGuard struct {
	err error
}

func (m *mockGuard) ValidateURL(rawURL string) error { return m.err }
func (m *mockGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return http.DefaultClient
}

type nopCollector struct{}

func (nopCollector) RecordWebhookReceived(eventType string)      {}
func (nopCollector) RecordWebhookVerifyFailure(reason string)    {}
func (nopCollector) RecordWebhookUnknownType(eventType string)   {}
func (nopCollector) RecordEventInserted(eventType string)        {}
func (nopCollector) RecordExportRows(count int)                  {}
func (nopCollector) RecordExportLatency(duration time.Duration)  {}
func (nopCollector) RecordHTTPStatus(statusCode int)             {}

// --- ヘルパー ---

func validHeaders() http.Header {
	h := http.Header{}
	h.Set("svix-id", "msg_abc")
	h.Set("svix-timestamp", "1700000000")
	h.Set("svix-signature", "v1,deadbeef")
	return h
}

func newTestService(appRepo *mockAppRepo, userRepo *mockUserRepo, eventRepo *mockEventRepo, verifier *mockVerifier) *Service {
	if appRepo == nil {
		appRepo = &mockAppRepo{}
	}
	if verifier == nil {
		verifier = &mockVerifier{}
	}
	secrets := func(appName string) string { return "whsec_test" }
	return NewService(appRepo, userRepo, eventRepo, verifier, secrets, &mockGuard{}, nopCollector{})
}

// --- テスト ---

// シークレット未設定の場合に永続化なしで設定不備エラーを返すことを検証
func TestProcessWebhook_SecretNotConfigured(t *testing.T) {
	userRepo := &mockUserRepo{}
	eventRepo := &mockEventRepo{}
	svc := NewService(&mockAppRepo{}, userRepo, eventRepo, &mockVerifier{},
		func(string) string { return "" }, &mockGuard{}, nopCollector{})

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"session.created","data":{"user_id":"u1"}}`), validHeaders())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSecretNotConfigured {
		t.Fatalf("expected SECRET_NOT_CONFIGURED, got %v", err)
	}
	if eventRepo.insertCalled || userRepo.createCalled {
		t.Error("no persistence should happen on verification failure")
	}
}

// 署名ヘッダーがいずれか1つでも欠けると永続化なしで失敗することを検証
func TestProcessWebhook_MissingSignatureHeaders(t *testing.T) {
	for _, missing := range []string{"svix-id", "svix-timestamp", "svix-signature"} {
		t.Run(missing, func(t *testing.T) {
			eventRepo := &mockEventRepo{}
			svc := newTestService(nil, &mockUserRepo{}, eventRepo, nil)

			h := validHeaders()
			h.Del(missing)
			err := svc.ProcessWebhook(context.Background(), "myapp",
				[]byte(`{"type":"session.created","data":{"user_id":"u1"}}`), h)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMissingSignatureHeaders {
				t.Fatalf("expected MISSING_SIGNATURE_HEADERS, got %v", err)
			}
			if eventRepo.insertCalled {
				t.Error("no persistence should happen when headers are missing")
			}
		})
	}
}

// 署名検証失敗時に永続化なしで失敗することを検証
func TestProcessWebhook_InvalidSignature(t *testing.T) {
	eventRepo := &mockEventRepo{}
	svc := newTestService(nil, &mockUserRepo{}, eventRepo, &mockVerifier{err: errors.New("bad signature")})

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"session.created","data":{"user_id":"u1"}}`), validHeaders())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidSignature {
		t.Fatalf("expected INVALID_SIGNATURE, got %v", err)
	}
	if eventRepo.insertCalled {
		t.Error("no persistence should happen on signature failure")
	}
}

// session.createdが既存ユーザーに紐付くイベントを1件追記することを検証
func TestProcessWebhook_SessionCreated(t *testing.T) {
	userRepo := &mockUserRepo{
		findByAuthUserIDFn: func(ctx context.Context, authUserID string) (*model.User, error) {
			return &model.User{ID: "internal-u1", AuthUserID: authUserID}, nil
		},
	}
	var inserted *model.AuthEvent
	eventRepo := &mockEventRepo{
		insertFn: func(ctx context.Context, event *model.AuthEvent) error {
			inserted = event
			return nil
		},
	}
	svc := newTestService(nil, userRepo, eventRepo, nil)

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"session.created","data":{"user_id":"u1"}}`), validHeaders())
	if err != nil {
		t.Fatalf("ProcessWebhook returned error: %v", err)
	}
	if inserted == nil {
		t.Fatal("expected event insert")
	}
	if inserted.EventType != model.EventSessionCreated {
		t.Errorf("EventType = %s", inserted.EventType)
	}
	if inserted.ApplicationID != "app-1" || inserted.UserID != "internal-u1" {
		t.Errorf("unexpected linkage: app=%s user=%s", inserted.ApplicationID, inserted.UserID)
	}
}

// 未知ユーザーへのセッションイベントが失敗することを検証
func TestProcessWebhook_SessionEvent_UserNotFound(t *testing.T) {
	userRepo := &mockUserRepo{} // FindByAuthUserID returns nil
	eventRepo := &mockEventRepo{}
	svc := newTestService(nil, userRepo, eventRepo, nil)

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"session.ended","data":{"user_id":"unknown"}}`), validHeaders())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
	if eventRepo.insertCalled {
		t.Error("no event should be inserted for unknown users")
	}
}

// user.createdで未知のsubject IDの場合にユーザーが作成されることを検証
func TestProcessWebhook_UserCreated_CreatesUser(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	eventRepo := &mockEventRepo{}
	svc := newTestService(nil, userRepo, eventRepo, nil)

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"user.created","data":{"id":"u1","first_name":"Taro","last_name":"Sato","image_url":"https://img.example.com/t.png"}}`),
		validHeaders())
	if err != nil {
		t.Fatalf("ProcessWebhook returned error: %v", err)
	}
	if created == nil {
		t.Fatal("expected user creation")
	}
	if created.AuthUserID != "u1" || created.FirstName != "Taro" || created.LastName != "Sato" {
		t.Errorf("unexpected user: %+v", created)
	}
	if created.Image != "https://img.example.com/t.png" {
		t.Errorf("Image = %q", created.Image)
	}
	if !eventRepo.insertCalled {
		t.Error("expected event insert")
	}
}

// user.createdの再送で既存ユーザーが再利用されることを検証（重複作成なし）
func TestProcessWebhook_UserCreated_ReusesExisting(t *testing.T) {
	userRepo := &mockUserRepo{
		findByAuthUserIDFn: func(ctx context.Context, authUserID string) (*model.User, error) {
			return &model.User{ID: "internal-u1", AuthUserID: authUserID}, nil
		},
	}
	var inserted *model.AuthEvent
	eventRepo := &mockEventRepo{
		insertFn: func(ctx context.Context, event *model.AuthEvent) error {
			inserted = event
			return nil
		},
	}
	svc := newTestService(nil, userRepo, eventRepo, nil)

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"user.created","data":{"id":"u1"}}`), validHeaders())
	if err != nil {
		t.Fatalf("ProcessWebhook returned error: %v", err)
	}
	if userRepo.createCalled {
		t.Error("existing user should be reused, not recreated")
	}
	if inserted == nil || inserted.UserID != "internal-u1" {
		t.Errorf("event should link to existing user: %+v", inserted)
	}
}

// 安全でないアバターURLが空文字列に落とされることを検証
func TestProcessWebhook_UserCreated_DropsUnsafeAvatarURL(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(&mockAppRepo{}, userRepo, &mockEventRepo{}, &mockVerifier{},
		func(string) string { return "whsec_test" },
		&mockGuard{err: errors.New("blocked")}, nopCollector{})

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"user.created","data":{"id":"u1","image_url":"http://169.254.169.254/x"}}`),
		validHeaders())
	if err != nil {
		t.Fatalf("ProcessWebhook returned error: %v", err)
	}
	if created == nil {
		t.Fatal("expected user creation")
	}
	if created.Image != "" {
		t.Errorf("unsafe avatar URL should be dropped, got %q", created.Image)
	}
}

// user.updatedがイベント追記とプロフィール上書きを単一トランザクションで行うことを検証
func TestProcessWebhook_UserUpdated_Atomic(t *testing.T) {
	userRepo := &mockUserRepo{
		findByAuthUserIDFn: func(ctx context.Context, authUserID string) (*model.User, error) {
			return &model.User{ID: "internal-u1", AuthUserID: authUserID}, nil
		},
	}
	var gotEvent *model.AuthEvent
	var gotProfile repository.ProfileUpdate
	eventRepo := &mockEventRepo{
		insertWithProfileUpdateFn: func(ctx context.Context, event *model.AuthEvent, profile repository.ProfileUpdate) error {
			gotEvent = event
			gotProfile = profile
			return nil
		},
	}
	svc := newTestService(nil, userRepo, eventRepo, nil)

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"user.updated","data":{"id":"u1","first_name":"Jiro","last_name":"Tanaka","image_url":"https://img.example.com/j.png"}}`),
		validHeaders())
	if err != nil {
		t.Fatalf("ProcessWebhook returned error: %v", err)
	}
	if eventRepo.insertCalled {
		t.Error("user.updated must not use the single-insert path")
	}
	if gotEvent == nil || gotEvent.EventType != model.EventUserUpdated {
		t.Fatalf("unexpected event: %+v", gotEvent)
	}
	if gotProfile.AuthUserID != "u1" || gotProfile.FirstName != "Jiro" || gotProfile.LastName != "Tanaka" {
		t.Errorf("unexpected profile: %+v", gotProfile)
	}
}

// user.updatedのトランザクション失敗がdatabaseエラーとして返ることを検証（リトライなし）
func TestProcessWebhook_UserUpdated_TxFailure(t *testing.T) {
	userRepo := &mockUserRepo{
		findByAuthUserIDFn: func(ctx context.Context, authUserID string) (*model.User, error) {
			return &model.User{ID: "internal-u1", AuthUserID: authUserID}, nil
		},
	}
	callCount := 0
	eventRepo := &mockEventRepo{
		insertWithProfileUpdateFn: func(ctx context.Context, event *model.AuthEvent, profile repository.ProfileUpdate) error {
			callCount++
			return errors.New("serialization failure")
		},
	}
	svc := newTestService(nil, userRepo, eventRepo, nil)

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"user.updated","data":{"id":"u1"}}`), validHeaders())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDatabaseError {
		t.Fatalf("expected DATABASE_ERROR, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("transaction must not be retried, called %d times", callCount)
	}
}

// 未知のイベント種別が永続化なしで正常ACKされることを検証
func TestProcessWebhook_UnknownType_Ack(t *testing.T) {
	userRepo := &mockUserRepo{}
	eventRepo := &mockEventRepo{}
	svc := newTestService(nil, userRepo, eventRepo, nil)

	err := svc.ProcessWebhook(context.Background(), "myapp",
		[]byte(`{"type":"email.created","data":{}}`), validHeaders())
	if err != nil {
		t.Fatalf("unknown types should be acknowledged, got %v", err)
	}
	if eventRepo.insertCalled || eventRepo.txCalled || userRepo.createCalled {
		t.Error("unknown types must not touch the store")
	}
}
