package model

import "time"

// User は外部IdPのsubjectを非正規化したプロジェクションを表す。
// 初回観測イベント時に遅延作成され（create-or-connect）、
// user.updatedイベントでプロフィールが上書きされる。削除はされない。
type User struct {
	ID         string
	AuthUserID string // 外部IdPのsubject ID（一意）
	FirstName  string
	LastName   string
	Image      string // アバターURL（空の場合あり）
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName は表示名を優先順位に従って解決する。
// 姓名両方 → 片方のみ → AuthUserID → "Unknown User" の順。
func (u *User) DisplayName() string {
	if u == nil {
		return "Unknown User"
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	case u.AuthUserID != "":
		return u.AuthUserID
	default:
		return "Unknown User"
	}
}
