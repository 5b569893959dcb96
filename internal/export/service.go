package export

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/authlog/internal/metrics"
	"github.com/hitoshi/authlog/internal/model"
	"github.com/hitoshi/authlog/internal/repository"
)

// maxExportRows は1回のエクスポートで取得する行数の上限。
// 超過分はエラーにせず黙って切り捨てる。
const maxExportRows = 10000

// sheetName はワークシート名。
const sheetName = "Events"

// Service は認証イベントのExcelエクスポートサービス。
type Service struct {
	appRepo   repository.ApplicationRepository
	eventRepo repository.EventRepository
	collector metrics.MetricsCollector
}

// NewService はエクスポートサービスを生成する。
func NewService(
	appRepo repository.ApplicationRepository,
	eventRepo repository.EventRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		appRepo:   appRepo,
		eventRepo: eventRepo,
		collector: collector,
	}
}

// Result はエクスポート結果のバイナリとメタデータ。
type Result struct {
	Filename string
	Content  []byte
	Rows     int
}

// Export はフィルタに一致するイベントをxlsxバイナリに変換する。
// ApplicationIDは必須。一致行が0件の場合はエラーを返す。
func (s *Service) Export(ctx context.Context, filter model.EventFilter, tmpl Template) (*Result, error) {
	if filter.ApplicationID == "" {
		return nil, model.NewInvalidRequestError("applicationIdは必須です")
	}

	started := time.Now()

	events, err := s.eventRepo.List(ctx, filter, maxExportRows, 0)
	if err != nil {
		return nil, fmt.Errorf("エクスポート対象イベントの取得に失敗しました: %w", err)
	}
	if len(events) == 0 {
		return nil, model.NewNoExportDataError()
	}

	content, err := buildWorkbook(events, tmpl)
	if err != nil {
		return nil, fmt.Errorf("ワークブックの生成に失敗しました: %w", err)
	}

	appName := "Unknown"
	app, err := s.appRepo.FindByID(ctx, filter.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("アプリケーションの取得に失敗しました: %w", err)
	}
	if app != nil {
		appName = app.Name
	}

	s.collector.RecordExportRows(len(events))
	s.collector.RecordExportLatency(time.Since(started))
	slog.Info("イベントをエクスポートしました",
		slog.String("application_id", filter.ApplicationID),
		slog.String("template", string(tmpl)),
		slog.Int("rows", len(events)))

	return &Result{
		Filename: buildFilename(appName, filter, time.Now()),
		Content:  content,
		Rows:     len(events),
	}, nil
}

// buildWorkbook はイベント一覧をテンプレートに従ってxlsxに変換する。
func buildWorkbook(events []model.AuthEventDetail, tmpl Template) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), sheetName)

	var (
		headers []interface{}
		widths  []float64
		rows    [][]interface{}
	)

	switch tmpl {
	case TemplateSimple:
		headers = []interface{}{"User Name", "Event Type", "Date", "Time"}
		widths = []float64{30, 15, 12, 12}
		for _, e := range events {
			rows = append(rows, []interface{}{
				e.User.DisplayName(),
				string(e.EventType),
				e.CreatedAt.Format("2006-01-02"),
				e.CreatedAt.Format("15:04:05"),
			})
		}
	case TemplateUserActivity:
		headers = []interface{}{"User Name", "User ID", "Date", "Event Count"}
		widths = []float64{30, 36, 12, 12}
		rows = userActivityRows(events)
	default: // TemplateFull
		headers = []interface{}{
			"Event ID", "Event Type", "User ID", "User Name",
			"Application", "Timestamp", "Date", "Time",
		}
		widths = []float64{36, 15, 36, 30, 20, 20, 12, 12}
		for _, e := range events {
			rows = append(rows, []interface{}{
				e.ID,
				string(e.EventType),
				e.UserID,
				e.User.DisplayName(),
				e.Application.Name,
				e.CreatedAt.Format(time.RFC3339),
				e.CreatedAt.Format("2006-01-02"),
				e.CreatedAt.Format("15:04:05"),
			})
		}
	}

	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return nil, err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	// 列幅は内容から計算せず、テンプレートごとの固定値を使う
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// userActivityRows はユーザー×日付ごとの件数に集計した行を返す。
// 行は表示名、日付の順で整列する。
func userActivityRows(events []model.AuthEventDetail) [][]interface{} {
	type activityKey struct {
		userID string
		date   string
	}
	type activity struct {
		name   string
		userID string
		date   string
		count  int
	}

	byKey := make(map[activityKey]*activity)
	for _, e := range events {
		key := activityKey{userID: e.UserID, date: e.CreatedAt.Format("2006-01-02")}
		if a, ok := byKey[key]; ok {
			a.count++
			continue
		}
		byKey[key] = &activity{
			name:   e.User.DisplayName(),
			userID: e.UserID,
			date:   key.date,
			count:  1,
		}
	}

	activities := make([]*activity, 0, len(byKey))
	for _, a := range byKey {
		activities = append(activities, a)
	}
	sort.Slice(activities, func(i, j int) bool {
		if activities[i].name != activities[j].name {
			return activities[i].name < activities[j].name
		}
		return activities[i].date < activities[j].date
	})

	rows := make([][]interface{}, 0, len(activities))
	for _, a := range activities {
		rows = append(rows, []interface{}{a.name, a.userID, a.date, a.count})
	}
	return rows
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// buildFilename はエクスポートのファイル名を組み立てる。
// アプリケーション名の空白はアンダースコアに置換する。同日・同条件の
// エクスポートは同じ名前になる（呼び出し側は一意性を仮定しない）。
func buildFilename(appName string, filter model.EventFilter, now time.Time) string {
	name := whitespacePattern.ReplaceAllString(appName, "_")

	var dateRange string
	switch {
	case filter.Start != nil && filter.End != nil:
		dateRange = fmt.Sprintf("_%s_to_%s",
			filter.Start.Format("2006-01-02"), filter.End.Format("2006-01-02"))
	case filter.Start != nil:
		dateRange = "_from_" + filter.Start.Format("2006-01-02")
	case filter.End != nil:
		dateRange = "_to_" + filter.End.Format("2006-01-02")
	}

	return fmt.Sprintf("auth_events_%s%s_%s.xlsx", name, dateRange, now.Format("2006-01-02"))
}
