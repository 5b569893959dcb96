// Package user はユーザープロジェクションの参照とアバタープロキシを提供する。
package user

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/authlog/internal/model"
	"github.com/hitoshi/authlog/internal/repository"
	"github.com/hitoshi/authlog/internal/security"
)

// avatarFetchTimeout は外部アバター画像取得のタイムアウト。
const avatarFetchTimeout = 10 * time.Second

// Service はユーザー参照のサービス層。
// ユーザーの作成・更新は取り込みパイプラインが行うため、ここは読み取り専用。
type Service struct {
	userRepo repository.UserRepository
	guard    security.AvatarGuardService
	client   *http.Client
}

// NewService はユーザー参照サービスを生成する。
func NewService(userRepo repository.UserRepository, guard security.AvatarGuardService) *Service {
	return &Service{
		userRepo: userRepo,
		guard:    guard,
		client:   guard.NewSafeClient(avatarFetchTimeout),
	}
}

// List は全ユーザーを作成日時降順で返す。フィルタ用ドロップダウンで使用する。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Avatar はユーザーのアバター画像を外部から取得して返す。
// 呼び出し元はbodyを必ずCloseすること。
// 保存済みURLであっても取得前に再検証する。
func (s *Service) Avatar(ctx context.Context, id string) (body io.ReadCloser, contentType string, err error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, "", model.NewUserNotFoundError(id)
	}
	if u.Image == "" {
		return nil, "", model.NewInvalidAvatarURLError()
	}

	if err := s.guard.ValidateURL(u.Image); err != nil {
		slog.Warn("保存済みアバターURLの検証に失敗しました",
			slog.String("user_id", id),
			slog.String("error", err.Error()))
		return nil, "", model.NewInvalidAvatarURLError()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Image, nil)
	if err != nil {
		return nil, "", model.NewInvalidAvatarURLError()
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("アバター画像の取得に失敗しました: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("アバター画像の取得に失敗しました: status %d", resp.StatusCode)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}
