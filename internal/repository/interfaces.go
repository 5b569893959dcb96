// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/authlog/internal/model"
)

// ApplicationRepository はアプリケーションデータの永続化インターフェース。
type ApplicationRepository interface {
	// Create はアプリケーションを作成する。名前の一意制約違反はそのまま返す。
	Create(ctx context.Context, app *model.Application) error

	// FindByID は指定IDのアプリケーションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Application, error)

	// FindByName は名前でアプリケーションを検索する。見つからない場合はnilを返す。
	// Webhookルートのアプリケーション解決に使用する。
	FindByName(ctx context.Context, name string) (*model.Application, error)

	// List は全アプリケーションをcreated_at降順で返す。
	List(ctx context.Context) ([]*model.Application, error)

	// ListForFilter はフィルタ用ドロップダウンのためID+名前を名前昇順で返す。
	ListForFilter(ctx context.Context) ([]model.ApplicationRef, error)

	// Update はアプリケーションの名前と説明を更新する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, app *model.Application) error

	// DeleteByID は指定IDのアプリケーションを削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	// 関連イベントの参照ガードはアプリケーション層で行う。
	DeleteByID(ctx context.Context, id string) error
}

// UserRepository はユーザープロジェクションの永続化インターフェース。
// 取り込みパイプラインが作成・更新し、削除は行わない。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByAuthUserID は外部IdPのsubject IDでユーザーを検索する。
	// create-or-connectの自然キー検索に使用する。見つからない場合はnilを返す。
	FindByAuthUserID(ctx context.Context, authUserID string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// List は全ユーザーを作成日時降順で返す。フィルタ用ドロップダウンで使用する。
	List(ctx context.Context) ([]*model.User, error)
}

// ProfileUpdate はuser.updatedイベントによるプロフィール上書き内容を表す。
type ProfileUpdate struct {
	AuthUserID string
	FirstName  string
	LastName   string
	Image      string
}

// EventRepository は認証イベントの永続化インターフェース。
// auth_eventsの書き込みは取り込みパイプラインが独占する。更新は存在しない。
type EventRepository interface {
	// Insert はイベントを1件追記する。
	Insert(ctx context.Context, event *model.AuthEvent) error

	// InsertWithProfileUpdate はイベント追記とユーザープロフィール上書きを
	// 単一のSERIALIZABLEトランザクションで実行する。
	// ロック待ちとトランザクション全体の時間に上限があり、超過時は
	// 全体が失敗する（部分書き込みは残らない）。リトライは行わない。
	InsertWithProfileUpdate(ctx context.Context, event *model.AuthEvent, profile ProfileUpdate) error

	// List はフィルタに一致するイベントをcreated_at降順で取得する。
	// Application/Userのプロジェクションを結合して返す。
	List(ctx context.Context, filter model.EventFilter, limit, offset int) ([]model.AuthEventDetail, error)

	// Count はフィルタに一致するイベント総数を返す。
	Count(ctx context.Context, filter model.EventFilter) (int, error)

	// CountByType はフィルタに一致するイベントを種別ごとに集計し、件数降順で返す。
	CountByType(ctx context.Context, filter model.EventFilter) ([]model.TypeCount, error)

	// CountDistinctUsers はフィルタに一致するイベントの相異なるユーザー数を返す。
	CountDistinctUsers(ctx context.Context, filter model.EventFilter) (int, error)

	// CountPerDay はfrom以降のイベントを日付（YYYY-MM-DD）ごとに集計して返す。
	// イベントのない日は含まれない（欠損日の補完は呼び出し側で行う）。
	CountPerDay(ctx context.Context, filter model.EventFilter, from time.Time) ([]model.DayCount, error)

	// CountByApplication は指定アプリケーションに関連するイベント数を返す。
	// アプリケーション削除時の参照ガードで使用する。
	CountByApplication(ctx context.Context, applicationID string) (int, error)

	// DeleteByFilter はフィルタに一致するイベントを最大limit件削除し、削除数を返す。
	// auth_eventsの唯一の削除経路。
	DeleteByFilter(ctx context.Context, filter model.EventFilter, limit int) (int, error)
}
