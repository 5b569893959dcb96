package repository

import (
	"fmt"
	"strings"

	"github.com/hitoshi/authlog/internal/model"
)

// buildEventWhere はEventFilterからWHERE句と位置引数を構築する。
// イベントテーブルのエイリアスはe、ユーザーテーブルのエイリアスはuを前提とする。
// フィルタが空の場合は空のWHERE句を返す。
// フリーテキスト検索はevent_type、first_name、last_nameへの
// 大文字小文字を区別しないOR一致（ILIKE）で行う。
func buildEventWhere(f model.EventFilter) (string, []any) {
	var conds []string
	var args []any

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ApplicationID != "" {
		conds = append(conds, "e.application_id = "+next(f.ApplicationID))
	}
	if f.UserID != "" {
		conds = append(conds, "e.user_id = "+next(f.UserID))
	}
	if f.EventType != "" {
		conds = append(conds, "e.event_type = "+next(string(f.EventType)))
	}
	if f.Search != "" {
		p := next("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(e.event_type ILIKE %s OR u.first_name ILIKE %s OR u.last_name ILIKE %s)", p, p, p))
	}
	if f.Start != nil {
		conds = append(conds, "e.created_at >= "+next(*f.Start))
	}
	if f.End != nil {
		conds = append(conds, "e.created_at <= "+next(*f.End))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
