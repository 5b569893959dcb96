package event

import (
	"testing"
	"time"

	"github.com/hitoshi/authlog/internal/model"
)

func intPtr(v int) *int { return &v }

func TestBuildFilter_Defaults(t *testing.T) {
	f, page := BuildFilter(QueryParams{})

	if f.ApplicationID != "" || f.UserID != "" || f.EventType != "" || f.Search != "" {
		t.Errorf("空の条件は空のフィルタになるべき: %+v", f)
	}
	if f.Start != nil || f.End != nil {
		t.Errorf("日付未指定は条件なしになるべき: Start=%v End=%v", f.Start, f.End)
	}
	if page.Limit != 50 {
		t.Errorf("limitの既定値は50であるべき: %d", page.Limit)
	}
	if page.Offset != 0 {
		t.Errorf("offsetの既定値は0であるべき: %d", page.Offset)
	}
}

func TestBuildFilter_LimitClamp(t *testing.T) {
	tests := []struct {
		name  string
		limit *int
		want  int
	}{
		{"未指定は既定値", nil, 50},
		{"範囲内はそのまま", intPtr(25), 25},
		{"上限超過は100", intPtr(200), 100},
		{"0は1に切り上げ", intPtr(0), 1},
		{"負数は1に切り上げ", intPtr(-5), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, page := BuildFilter(QueryParams{Limit: tt.limit})
			if page.Limit != tt.want {
				t.Errorf("limit = %d, want %d", page.Limit, tt.want)
			}
		})
	}
}

func TestBuildFilter_PageToOffset(t *testing.T) {
	tests := []struct {
		name   string
		params QueryParams
		want   int
	}{
		{"page=1は先頭", QueryParams{Page: intPtr(1)}, 0},
		{"page=3はlimit×2", QueryParams{Page: intPtr(3), Limit: intPtr(20)}, 40},
		{"page=0は0に切り上げ", QueryParams{Page: intPtr(0)}, 0},
		{"負のpageも0に切り上げ", QueryParams{Page: intPtr(-2)}, 0},
		{"Offset指定はPageより優先", QueryParams{Page: intPtr(5), Offset: intPtr(7)}, 7},
		{"負のOffsetは0に切り上げ", QueryParams{Offset: intPtr(-1)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, page := BuildFilter(tt.params)
			if page.Offset != tt.want {
				t.Errorf("offset = %d, want %d", page.Offset, tt.want)
			}
		})
	}
}

func TestBuildFilter_EndDateInclusive(t *testing.T) {
	f, _ := BuildFilter(QueryParams{EndDate: "2026-03-15"})
	if f.End == nil {
		t.Fatal("終了日が解釈されるべき")
	}

	// 同日の23:59:59.998は境界内、翌日00:00:00.001は境界外
	inside := time.Date(2026, 3, 15, 23, 59, 59, 998000000, f.End.Location())
	outside := time.Date(2026, 3, 16, 0, 0, 0, 1000000, f.End.Location())
	if f.End.Before(inside) {
		t.Errorf("終了日はその日の終端まで含むべき: End=%v", f.End)
	}
	if !f.End.Before(outside) {
		t.Errorf("終了日は翌日を含んではならない: End=%v", f.End)
	}
}

func TestBuildFilter_EndInstantExtendsToDayEnd(t *testing.T) {
	// 時刻付きの終了日もその暦日の終端まで広げる
	f, _ := BuildFilter(QueryParams{EndDate: "2026-03-15T10:30:00Z"})
	if f.End == nil {
		t.Fatal("終了日が解釈されるべき")
	}
	if f.End.Hour() != 23 || f.End.Minute() != 59 || f.End.Second() != 59 {
		t.Errorf("終了日はその日の終端であるべき: %v", f.End)
	}
	if f.End.Day() != 15 {
		t.Errorf("暦日が変わってはならない: %v", f.End)
	}
}

func TestBuildFilter_UnparseableDatesIgnored(t *testing.T) {
	f, _ := BuildFilter(QueryParams{StartDate: "not-a-date", EndDate: "2026/03/15"})
	if f.Start != nil {
		t.Errorf("解析不能な開始日は条件なしであるべき: %v", f.Start)
	}
	if f.End != nil {
		t.Errorf("解析不能な終了日は条件なしであるべき: %v", f.End)
	}
}

func TestBuildFilter_CarriesPredicates(t *testing.T) {
	f, _ := BuildFilter(QueryParams{
		ApplicationID: "app-1",
		UserID:        "user-1",
		EventType:     "session.created",
		Search:        "alice",
		StartDate:     "2026-01-01",
	})

	if f.ApplicationID != "app-1" || f.UserID != "user-1" {
		t.Errorf("ID条件が引き継がれるべき: %+v", f)
	}
	if f.EventType != model.EventSessionCreated {
		t.Errorf("イベント種別が引き継がれるべき: %v", f.EventType)
	}
	if f.Search != "alice" {
		t.Errorf("検索語が引き継がれるべき: %v", f.Search)
	}
	if f.Start == nil || f.Start.Year() != 2026 || f.Start.Month() != time.January {
		t.Errorf("開始日が解釈されるべき: %v", f.Start)
	}
}
