package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/authlog/internal/model"
)

// eventSelectColumns はイベント一覧で取得するカラム。
// Application/Userのプロジェクションを常に結合して返す。
const eventSelectColumns = `
	e.id, e.event_type, e.application_id, e.user_id, e.created_at,
	a.id, a.name,
	u.id, u.auth_user_id, u.first_name, u.last_name, u.image, u.created_at, u.updated_at`

// eventFromClause はイベント検索の共通FROM句。
// フリーテキスト検索がユーザー名を参照するため、usersは常に結合する。
const eventFromClause = `
	FROM auth_events e
	JOIN applications a ON a.id = e.application_id
	JOIN users u ON u.id = e.user_id`

// PostgresEventRepo はPostgreSQLを使用した認証イベントリポジトリ。
type PostgresEventRepo struct {
	db        *sql.DB
	txMaxWait time.Duration // SERIALIZABLEトランザクション内のロック待ち上限
	txTimeout time.Duration // トランザクション全体の上限
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
// txMaxWaitとtxTimeoutはInsertWithProfileUpdateの時間上限を指定する。
func NewPostgresEventRepo(db *sql.DB, txMaxWait, txTimeout time.Duration) *PostgresEventRepo {
	return &PostgresEventRepo{db: db, txMaxWait: txMaxWait, txTimeout: txTimeout}
}

// Insert はイベントを1件追記する。
func (r *PostgresEventRepo) Insert(ctx context.Context, event *model.AuthEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_events (id, event_type, application_id, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, string(event.EventType), event.ApplicationID, event.UserID, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}
	return nil
}

// InsertWithProfileUpdate はイベント追記とユーザープロフィール上書きを
// 単一のSERIALIZABLEトランザクションで実行する。
// ロック待ちはSET LOCAL lock_timeoutで、全体時間はコンテキスト期限で制限する。
// いずれかの超過・競合時はトランザクション全体が失敗し、部分書き込みは残らない。
func (r *PostgresEventRepo) InsertWithProfileUpdate(ctx context.Context, event *model.AuthEvent, profile ProfileUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// lock_timeoutはプレースホルダを使えないため整数を直接埋め込む
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.txMaxWait.Milliseconds()),
	)
	if err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	// イベントを追記
	_, err = tx.ExecContext(ctx,
		`INSERT INTO auth_events (id, event_type, application_id, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, string(event.EventType), event.ApplicationID, event.UserID, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}

	// プロフィールを上書き（自然キーで対象を特定する）
	result, err := tx.ExecContext(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, image = $4, updated_at = now()
		 WHERE auth_user_id = $1`,
		profile.AuthUserID, profile.FirstName, profile.LastName, profile.Image,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// List はフィルタに一致するイベントをcreated_at降順で取得する。
func (r *PostgresEventRepo) List(ctx context.Context, filter model.EventFilter, limit, offset int) ([]model.AuthEventDetail, error) {
	where, args := buildEventWhere(filter)
	args = append(args, limit)
	limitPos := len(args)
	args = append(args, offset)
	offsetPos := len(args)

	query := "SELECT" + eventSelectColumns + eventFromClause + where +
		fmt.Sprintf(" ORDER BY e.created_at DESC LIMIT $%d OFFSET $%d", limitPos, offsetPos)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth events: %w", err)
	}
	defer rows.Close()

	var events []model.AuthEventDetail
	for rows.Next() {
		var d model.AuthEventDetail
		user := &model.User{}
		var eventType string
		if err := rows.Scan(
			&d.ID, &eventType, &d.ApplicationID, &d.UserID, &d.CreatedAt,
			&d.Application.ID, &d.Application.Name,
			&user.ID, &user.AuthUserID, &user.FirstName, &user.LastName, &user.Image, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		d.EventType = model.EventType(eventType)
		d.User = user
		events = append(events, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auth events: %w", err)
	}

	return events, nil
}

// Count はフィルタに一致するイベント総数を返す。
func (r *PostgresEventRepo) Count(ctx context.Context, filter model.EventFilter) (int, error) {
	where, args := buildEventWhere(filter)

	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*)"+eventFromClause+where,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count auth events: %w", err)
	}

	return count, nil
}

// CountByType はフィルタに一致するイベントを種別ごとに集計し、件数降順で返す。
func (r *PostgresEventRepo) CountByType(ctx context.Context, filter model.EventFilter) ([]model.TypeCount, error) {
	where, args := buildEventWhere(filter)

	rows, err := r.db.QueryContext(ctx,
		"SELECT e.event_type, COUNT(*)"+eventFromClause+where+
			" GROUP BY e.event_type ORDER BY COUNT(*) DESC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count auth events by type: %w", err)
	}
	defer rows.Close()

	var counts []model.TypeCount
	for rows.Next() {
		var tc model.TypeCount
		var eventType string
		if err := rows.Scan(&eventType, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		tc.Type = model.EventType(eventType)
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate type counts: %w", err)
	}

	return counts, nil
}

// CountDistinctUsers はフィルタに一致するイベントの相異なるユーザー数を返す。
func (r *PostgresEventRepo) CountDistinctUsers(ctx context.Context, filter model.EventFilter) (int, error) {
	where, args := buildEventWhere(filter)

	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT e.user_id)"+eventFromClause+where,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct users: %w", err)
	}

	return count, nil
}

// CountPerDay はfrom以降のイベントを日付（YYYY-MM-DD）ごとに集計して返す。
// イベントのない日は含まれない。
func (r *PostgresEventRepo) CountPerDay(ctx context.Context, filter model.EventFilter, from time.Time) ([]model.DayCount, error) {
	where, args := buildEventWhere(filter)
	args = append(args, from)
	cond := fmt.Sprintf("e.created_at >= $%d", len(args))
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT to_char(e.created_at, 'YYYY-MM-DD'), COUNT(*)"+eventFromClause+where+
			" GROUP BY 1 ORDER BY 1 ASC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count auth events per day: %w", err)
	}
	defer rows.Close()

	var counts []model.DayCount
	for rows.Next() {
		var dc model.DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan day count: %w", err)
		}
		counts = append(counts, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day counts: %w", err)
	}

	return counts, nil
}

// CountByApplication は指定アプリケーションに関連するイベント数を返す。
func (r *PostgresEventRepo) CountByApplication(ctx context.Context, applicationID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM auth_events WHERE application_id = $1`,
		applicationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count auth events by application: %w", err)
	}

	return count, nil
}

// DeleteByFilter はフィルタに一致するイベントを古い順に最大limit件削除し、削除数を返す。
func (r *PostgresEventRepo) DeleteByFilter(ctx context.Context, filter model.EventFilter, limit int) (int, error) {
	where, args := buildEventWhere(filter)
	args = append(args, limit)

	query := fmt.Sprintf(
		`DELETE FROM auth_events WHERE id IN (
			SELECT e.id %s%s ORDER BY e.created_at ASC LIMIT $%d
		)`,
		eventFromClause, where, len(args),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete auth events: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
