package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/authlog/internal/model"
)

// 空のフィルタは空のWHERE句を生成することを検証
func TestBuildEventWhere_Empty(t *testing.T) {
	where, args := buildEventWhere(model.EventFilter{})
	if where != "" {
		t.Errorf("expected empty where clause, got %q", where)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %d", len(args))
	}
}

// 単一条件のフィルタが正しい述語と引数を生成することを検証
func TestBuildEventWhere_SingleCondition(t *testing.T) {
	where, args := buildEventWhere(model.EventFilter{ApplicationID: "app-1"})

	if where != " WHERE e.application_id = $1" {
		t.Errorf("unexpected where clause: %q", where)
	}
	if len(args) != 1 || args[0] != "app-1" {
		t.Errorf("unexpected args: %v", args)
	}
}

// 全条件指定時にANDで連結され、引数番号が連番になることを検証
func TestBuildEventWhere_AllConditions(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 23, 59, 59, 999999999, time.UTC)
	f := model.EventFilter{
		ApplicationID: "app-1",
		UserID:        "user-1",
		EventType:     model.EventSessionCreated,
		Search:        "alice",
		Start:         &start,
		End:           &end,
	}

	where, args := buildEventWhere(f)

	if !strings.HasPrefix(where, " WHERE ") {
		t.Fatalf("where clause should start with WHERE: %q", where)
	}
	if got := strings.Count(where, " AND "); got != 5 {
		t.Errorf("expected 5 AND connectors, got %d: %q", got, where)
	}
	// 検索パターンは1つの引数を3箇所で再利用する
	if len(args) != 6 {
		t.Errorf("expected 6 args, got %d: %v", len(args), args)
	}
	if args[3] != "%alice%" {
		t.Errorf("expected search pattern %%alice%%, got %v", args[3])
	}
	for i := 1; i <= 6; i++ {
		placeholder := "$" + string(rune('0'+i))
		if !strings.Contains(where, placeholder) {
			t.Errorf("where clause missing placeholder %s: %q", placeholder, where)
		}
	}
}

// フリーテキスト検索が種別・姓・名の3フィールドをOR一致することを検証
func TestBuildEventWhere_SearchMatchesThreeFields(t *testing.T) {
	where, args := buildEventWhere(model.EventFilter{Search: "session"})

	for _, col := range []string{"e.event_type ILIKE", "u.first_name ILIKE", "u.last_name ILIKE"} {
		if !strings.Contains(where, col) {
			t.Errorf("where clause missing %q: %q", col, where)
		}
	}
	// 同一プレースホルダの再利用により引数は1つ
	if len(args) != 1 {
		t.Errorf("expected 1 arg, got %d", len(args))
	}
	if got := strings.Count(where, "$1"); got != 3 {
		t.Errorf("expected $1 used 3 times, got %d", got)
	}
}

// 日付境界の条件が >= と <= で生成されることを検証
func TestBuildEventWhere_DateBounds(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 1, 23, 59, 59, 999999999, time.UTC)
	where, args := buildEventWhere(model.EventFilter{Start: &start, End: &end})

	if !strings.Contains(where, "e.created_at >= $1") {
		t.Errorf("missing start bound: %q", where)
	}
	if !strings.Contains(where, "e.created_at <= $2") {
		t.Errorf("missing end bound: %q", where)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}
}
