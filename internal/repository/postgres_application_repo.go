package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/authlog/internal/model"
)

// PostgresApplicationRepo はPostgreSQLを使用したアプリケーションリポジトリ。
type PostgresApplicationRepo struct {
	db *sql.DB
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(db *sql.DB) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{db: db}
}

// Create はアプリケーションを作成する。名前の一意制約違反はそのまま返す。
func (r *PostgresApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO applications (id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		app.ID, app.Name, app.Description, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

// FindByID は指定IDのアプリケーションを取得する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	app := &model.Application{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at
		 FROM applications WHERE id = $1`,
		id,
	).Scan(&app.ID, &app.Name, &app.Description, &app.CreatedAt, &app.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find application by ID: %w", err)
	}

	return app, nil
}

// FindByName は名前でアプリケーションを検索する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByName(ctx context.Context, name string) (*model.Application, error) {
	app := &model.Application{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at
		 FROM applications WHERE name = $1`,
		name,
	).Scan(&app.ID, &app.Name, &app.Description, &app.CreatedAt, &app.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find application by name: %w", err)
	}

	return app, nil
}

// List は全アプリケーションをcreated_at降順で返す。
func (r *PostgresApplicationRepo) List(ctx context.Context) ([]*model.Application, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at
		 FROM applications ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*model.Application
	for rows.Next() {
		app := &model.Application{}
		if err := rows.Scan(&app.ID, &app.Name, &app.Description, &app.CreatedAt, &app.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}

	return apps, nil
}

// ListForFilter はフィルタ用ドロップダウンのためID+名前を名前昇順で返す。
func (r *PostgresApplicationRepo) ListForFilter(ctx context.Context) ([]model.ApplicationRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM applications ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications for filter: %w", err)
	}
	defer rows.Close()

	var refs []model.ApplicationRef
	for rows.Next() {
		var ref model.ApplicationRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("failed to scan application ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate application refs: %w", err)
	}

	return refs, nil
}

// Update はアプリケーションの名前と説明を更新する。
// 対象が存在しない場合はErrNotFoundを返す。
func (r *PostgresApplicationRepo) Update(ctx context.Context, app *model.Application) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		app.ID, app.Name, app.Description, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID は指定IDのアプリケーションを削除する。
// 対象が存在しない場合はErrNotFoundを返す。
func (r *PostgresApplicationRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM applications WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
