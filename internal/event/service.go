package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/authlog/internal/model"
	"github.com/hitoshi/authlog/internal/repository"
)

const (
	// recentActivityCount は統計に含める直近イベントの件数。
	recentActivityCount = 10

	// defaultTrendDays はトレンド系列の既定日数。
	defaultTrendDays = 30
)

// Service は認証イベントの検索・集計サービス。
type Service struct {
	eventRepo repository.EventRepository
}

// NewService は検索・集計サービスを生成する。
func NewService(eventRepo repository.EventRepository) *Service {
	return &Service{eventRepo: eventRepo}
}

// ListResult はイベント一覧とページネーション情報。
type ListResult struct {
	Events  []model.AuthEventDetail
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// List はフィルタに一致するイベントの1ページと総件数を返す。
// ページ取得と総件数の集計は並行して実行する。
func (s *Service) List(ctx context.Context, filter model.EventFilter, page Page) (*ListResult, error) {
	var (
		wg       sync.WaitGroup
		events   []model.AuthEventDetail
		total    int
		listErr  error
		countErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		events, listErr = s.eventRepo.List(ctx, filter, page.Limit, page.Offset)
	}()
	go func() {
		defer wg.Done()
		total, countErr = s.eventRepo.Count(ctx, filter)
	}()
	wg.Wait()

	if listErr != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", listErr)
	}
	if countErr != nil {
		return nil, fmt.Errorf("イベント総数の集計に失敗しました: %w", countErr)
	}

	return &ListResult{
		Events:  events,
		Total:   total,
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: page.Offset+page.Limit < total,
	}, nil
}

// Stats はひとつのフィルタ述語に対する統計スナップショットを返す。
// 6つの集計はすべて同一の述語（期間系は開始境界のみ派生）で並行実行する。
func (s *Service) Stats(ctx context.Context, filter model.EventFilter) (*model.EventStats, error) {
	now := time.Now()
	todayFilter := narrowStart(filter, startOfDay(now))
	weekFilter := narrowStart(filter, now.AddDate(0, 0, -7))

	var (
		wg    sync.WaitGroup
		stats model.EventStats
		errs  [6]error
	)

	wg.Add(6)
	go func() {
		defer wg.Done()
		stats.Total, errs[0] = s.eventRepo.Count(ctx, filter)
	}()
	go func() {
		defer wg.Done()
		stats.ByType, errs[1] = s.eventRepo.CountByType(ctx, filter)
	}()
	go func() {
		defer wg.Done()
		stats.Recent, errs[2] = s.eventRepo.List(ctx, filter, recentActivityCount, 0)
	}()
	go func() {
		defer wg.Done()
		stats.Today, errs[3] = s.eventRepo.Count(ctx, todayFilter)
	}()
	go func() {
		defer wg.Done()
		stats.Last7Days, errs[4] = s.eventRepo.Count(ctx, weekFilter)
	}()
	go func() {
		defer wg.Done()
		stats.DistinctUsers, errs[5] = s.eventRepo.CountDistinctUsers(ctx, filter)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("イベント統計の集計に失敗しました: %w", err)
		}
	}
	return &stats, nil
}

// Trend はフィルタに一致するイベントの日次件数系列を返す。
// daysが0以下の場合は既定の30日とする。系列はdays日前の日から今日まで
// 欠損なく連続し、イベントのない日は件数0で埋める（常にdays+1要素）。
func (s *Service) Trend(ctx context.Context, filter model.EventFilter, days int) ([]model.DayCount, error) {
	if days <= 0 {
		days = defaultTrendDays
	}

	from := startOfDay(time.Now()).AddDate(0, 0, -days)
	counts, err := s.eventRepo.CountPerDay(ctx, filter, from)
	if err != nil {
		return nil, fmt.Errorf("イベントトレンドの集計に失敗しました: %w", err)
	}

	byDate := make(map[string]int, len(counts))
	for _, c := range counts {
		byDate[c.Date] = c.Count
	}

	series := make([]model.DayCount, 0, days+1)
	for i := 0; i <= days; i++ {
		date := from.AddDate(0, 0, i).Format("2006-01-02")
		series = append(series, model.DayCount{Date: date, Count: byDate[date]})
	}
	return series, nil
}

// DeleteByFilter はフィルタに一致するイベントを古い順に最大limit件削除し、
// 削除数を返す。limitが0以下の場合は不正なリクエストとして拒否する。
func (s *Service) DeleteByFilter(ctx context.Context, filter model.EventFilter, limit int) (int, error) {
	if limit <= 0 {
		return 0, model.NewInvalidRequestError("削除件数の上限は1以上を指定してください")
	}

	deleted, err := s.eventRepo.DeleteByFilter(ctx, filter, limit)
	if err != nil {
		return 0, fmt.Errorf("イベントの削除に失敗しました: %w", err)
	}
	return deleted, nil
}

// narrowStart はフィルタの開始境界をstart以降に狭めたコピーを返す。
// 元のフィルタがstartより後の開始境界を持つ場合はそちらを維持する。
func narrowStart(f model.EventFilter, start time.Time) model.EventFilter {
	if f.Start == nil || f.Start.Before(start) {
		f.Start = &start
	}
	return f
}

// startOfDay はtと同じ暦日の00:00:00を返す。
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
