// Package model はドメインモデルを定義する。
package model

import "time"

// Application は認証イベントを収集する対象のテナント（利用側システム）を表す。
// Nameはグローバルに一意で、Webhookルートの識別子を兼ねる。
type Application struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ApplicationRef はフィルタ用ドロップダウン等で使うID+名前の軽量プロジェクション。
type ApplicationRef struct {
	ID   string
	Name string
}
