// Package application はアプリケーション（テナント）管理のドメインロジックを提供する。
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/authlog/internal/model"
	"github.com/hitoshi/authlog/internal/repository"
	"github.com/hitoshi/authlog/internal/security"
)

// Service はアプリケーションのCRUDサービス。
// 名前・説明はサニタイズしてから永続化する。
type Service struct {
	appRepo   repository.ApplicationRepository
	eventRepo repository.EventRepository
	sanitizer security.TextSanitizerService
}

// NewService はアプリケーション管理サービスを生成する。
func NewService(
	appRepo repository.ApplicationRepository,
	eventRepo repository.EventRepository,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		appRepo:   appRepo,
		eventRepo: eventRepo,
		sanitizer: sanitizer,
	}
}

// Create はアプリケーションを新規作成する。
// 名前は必須で、サニタイズ後に空になる入力は拒否する。
func (s *Service) Create(ctx context.Context, name, description string) (*model.Application, error) {
	name = s.sanitizer.Sanitize(name)
	description = s.sanitizer.Sanitize(description)
	if name == "" {
		return nil, model.NewInvalidRequestError("アプリケーション名は必須です")
	}

	now := time.Now()
	app := &model.Application{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.appRepo.Create(ctx, app); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, model.NewAppNameExistsError(name)
		}
		return nil, fmt.Errorf("アプリケーションの作成に失敗しました: %w", err)
	}

	slog.Info("アプリケーションを作成しました",
		slog.String("application_id", app.ID),
		slog.String("name", app.Name))
	return app, nil
}

// Get は指定IDのアプリケーションを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Application, error) {
	app, err := s.appRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("アプリケーションの取得に失敗しました: %w", err)
	}
	if app == nil {
		return nil, model.NewAppNotFoundError()
	}
	return app, nil
}

// List は全アプリケーションを作成日時降順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Application, error) {
	apps, err := s.appRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("アプリケーション一覧の取得に失敗しました: %w", err)
	}
	return apps, nil
}

// ListForFilter はフィルタ用ドロップダウンのためID+名前を名前昇順で返す。
func (s *Service) ListForFilter(ctx context.Context) ([]model.ApplicationRef, error) {
	refs, err := s.appRepo.ListForFilter(ctx)
	if err != nil {
		return nil, fmt.Errorf("フィルタ用アプリケーション一覧の取得に失敗しました: %w", err)
	}
	return refs, nil
}

// Update はアプリケーションの名前と説明を更新する。
func (s *Service) Update(ctx context.Context, id, name, description string) (*model.Application, error) {
	name = s.sanitizer.Sanitize(name)
	description = s.sanitizer.Sanitize(description)
	if name == "" {
		return nil, model.NewInvalidRequestError("アプリケーション名は必須です")
	}

	app := &model.Application{
		ID:          id,
		Name:        name,
		Description: description,
		UpdatedAt:   time.Now(),
	}

	if err := s.appRepo.Update(ctx, app); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewAppNotFoundError()
		}
		if repository.IsUniqueViolation(err) {
			return nil, model.NewAppNameExistsError(name)
		}
		return nil, fmt.Errorf("アプリケーションの更新に失敗しました: %w", err)
	}

	return s.Get(ctx, id)
}

// Delete はアプリケーションを削除する。
// 関連する認証イベントが存在する場合は件数付きのエラーで拒否する。
func (s *Service) Delete(ctx context.Context, id string) error {
	count, err := s.eventRepo.CountByApplication(ctx, id)
	if err != nil {
		return fmt.Errorf("関連イベント数の集計に失敗しました: %w", err)
	}
	if count > 0 {
		return model.NewAppHasEventsError(count)
	}

	if err := s.appRepo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewAppNotFoundError()
		}
		return fmt.Errorf("アプリケーションの削除に失敗しました: %w", err)
	}

	slog.Info("アプリケーションを削除しました", slog.String("application_id", id))
	return nil
}
