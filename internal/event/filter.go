// Package event は認証イベントの検索・集計のドメインロジックを提供する。
package event

import (
	"time"

	"github.com/hitoshi/authlog/internal/model"
)

// ページネーションの既定値と上限
const (
	defaultLimit = 50
	maxLimit     = 100
)

// QueryParams は外部から渡される緩い型のフィルタ条件。
// 文字列の日付やオプションのページ番号をそのまま受け取り、
// BuildFilterで正規化する。
type QueryParams struct {
	ApplicationID string
	UserID        string
	EventType     string
	Search        string
	StartDate     string
	EndDate       string
	Limit         *int
	Page          *int // 1始まりのページ番号。Offset未指定時のみ使用する
	Offset        *int
}

// Page は正規化済みのページウィンドウ。
type Page struct {
	Limit  int
	Offset int
}

// BuildFilter は緩い型のフィルタ条件から不変のEventFilterとページウィンドウを構築する。
//
// 正規化規則:
//   - 解析不能な日付は条件なしとして扱う（エラーにしない）
//   - 終了日はその日の終端（23:59:59.999999999）まで含む
//   - limitは[1,100]にクランプ、デフォルト50
//   - offsetはPage（1始まり）から導出し、0未満は0に切り上げる
func BuildFilter(p QueryParams) (model.EventFilter, Page) {
	f := model.EventFilter{
		ApplicationID: p.ApplicationID,
		UserID:        p.UserID,
		EventType:     model.EventType(p.EventType),
		Search:        p.Search,
		Start:         parseDate(p.StartDate),
		End:           parseDate(p.EndDate),
	}

	if f.End != nil {
		// 終了日はその暦日の終端まで含める
		e := *f.End
		end := time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, 999999999, e.Location())
		f.End = &end
	}

	limit := defaultLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := 0
	switch {
	case p.Offset != nil:
		offset = *p.Offset
	case p.Page != nil:
		offset = (*p.Page - 1) * limit
	}
	if offset < 0 {
		offset = 0
	}

	return f, Page{Limit: limit, Offset: offset}
}

// dateLayouts は日付文字列の解釈で試行するレイアウト。
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDate は日付文字列を解釈する。
// 空文字列および解析不能な文字列はnil（条件なし）を返す。
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
