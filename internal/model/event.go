package model

import "time"

// EventType は認証イベントの種別を表す。
type EventType string

const (
	EventSessionCreated EventType = "session.created"
	EventSessionEnded   EventType = "session.ended"
	EventSessionRevoked EventType = "session.revoked"
	EventSessionRemoved EventType = "session.removed"
	EventUserCreated    EventType = "user.created"
	EventUserUpdated    EventType = "user.updated"
)

// KnownEventType は既知のイベント種別かどうかを返す。
// 未知の種別のWebhookは永続化せずACKする判定に使用する。
func KnownEventType(t EventType) bool {
	switch t {
	case EventSessionCreated, EventSessionEnded,
		EventSessionRevoked, EventSessionRemoved,
		EventUserCreated, EventUserUpdated:
		return true
	default:
		return false
	}
}

// AuthEvent は認証イベントの監査レコードを表す。
// 書き込み後は不変であり、取り込みパイプラインのみが作成する。
// 削除はフィルタ指定の一括削除操作経由でのみ行われる。
type AuthEvent struct {
	ID            string
	EventType     EventType
	ApplicationID string
	UserID        string
	CreatedAt     time.Time
}

// AuthEventDetail はイベントにApplication/Userのプロジェクションを結合したもの。
// 一覧・統計・エクスポートの読み取り側で使用する。
type AuthEventDetail struct {
	AuthEvent
	Application ApplicationRef
	User        *User // FKはNOT NULLだが、読み取り側の防御としてnil許容
}

// EventFilter はイベント検索の正規化済み述語を表す。
// BuildFilterで一度だけ構築し、以降は不変値として扱う。
// ゼロ値のフィールドは「条件なし」を意味する。
type EventFilter struct {
	ApplicationID string
	UserID        string
	EventType     EventType
	Search        string // event_type／first_name／last_name への大文字小文字を区別しないOR一致
	Start         *time.Time
	End           *time.Time // その日の終端（23:59:59.999...）まで含む
}

// TypeCount はイベント種別ごとの件数を表す。
type TypeCount struct {
	Type  EventType
	Count int
}

// DayCount は日付（YYYY-MM-DD）ごとの件数を表す。トレンド系列で使用する。
type DayCount struct {
	Date  string
	Count int
}

// EventStats はひとつのフィルタ述語に対する統計のスナップショット。
type EventStats struct {
	Total         int
	ByType        []TypeCount
	Recent        []AuthEventDetail
	Today         int
	Last7Days     int
	DistinctUsers int
}
