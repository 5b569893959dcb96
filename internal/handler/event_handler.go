package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/authlog/internal/event"
	"github.com/hitoshi/authlog/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	// List はフィルタに一致するイベントの1ページと総件数を返す。
	List(ctx context.Context, filter model.EventFilter, page event.Page) (*event.ListResult, error)
	// Stats はフィルタに対する統計スナップショットを返す。
	Stats(ctx context.Context, filter model.EventFilter) (*model.EventStats, error)
	// Trend は日次件数の系列を返す。
	Trend(ctx context.Context, filter model.EventFilter, days int) ([]model.DayCount, error)
	// DeleteByFilter はフィルタに一致するイベントを最大limit件削除する。
	DeleteByFilter(ctx context.Context, filter model.EventFilter, limit int) (int, error)
}

// EventHandler はイベント検索・集計のHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface) *EventHandler {
	return &EventHandler{service: service}
}

// eventUserResponse はイベントに結合されたユーザーのAPIレスポンス。
type eventUserResponse struct {
	ID          string `json:"id"`
	AuthUserID  string `json:"authUserId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DisplayName string `json:"displayName"`
}

// eventResponse はイベント詳細のAPIレスポンス。
type eventResponse struct {
	ID            string             `json:"id"`
	EventType     string             `json:"eventType"`
	ApplicationID string             `json:"applicationId"`
	UserID        string             `json:"userId"`
	CreatedAt     time.Time          `json:"createdAt"`
	Application   appRefResponse     `json:"application"`
	User          *eventUserResponse `json:"user"`
}

// appRefResponse はID+名前のアプリケーション参照。
type appRefResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// listEventsResponse はイベント一覧のAPIレスポンス。
type listEventsResponse struct {
	Events  []eventResponse `json:"events"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"hasMore"`
}

// typeCountResponse は種別ごとの件数。
type typeCountResponse struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// statsResponse はイベント統計のAPIレスポンス。
type statsResponse struct {
	Total         int                 `json:"total"`
	ByType        []typeCountResponse `json:"byType"`
	Recent        []eventResponse     `json:"recent"`
	Today         int                 `json:"today"`
	Last7Days     int                 `json:"last7Days"`
	DistinctUsers int                 `json:"distinctUsers"`
}

// dayCountResponse は日次件数。
type dayCountResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// deleteEventsResponse は一括削除のAPIレスポンス。
type deleteEventsResponse struct {
	Deleted int `json:"deleted"`
}

// ListEvents はフィルタ付きのイベント一覧を返す。
// GET /api/events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, page := event.BuildFilter(queryParamsFromRequest(r))

	result, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := listEventsResponse{
		Events:  make([]eventResponse, 0, len(result.Events)),
		Total:   result.Total,
		Limit:   result.Limit,
		Offset:  result.Offset,
		HasMore: result.HasMore,
	}
	for _, e := range result.Events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetStats はフィルタに対するイベント統計を返す。
// GET /api/events/stats
func (h *EventHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	filter, _ := event.BuildFilter(queryParamsFromRequest(r))

	stats, err := h.service.Stats(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := statsResponse{
		Total:         stats.Total,
		ByType:        make([]typeCountResponse, 0, len(stats.ByType)),
		Recent:        make([]eventResponse, 0, len(stats.Recent)),
		Today:         stats.Today,
		Last7Days:     stats.Last7Days,
		DistinctUsers: stats.DistinctUsers,
	}
	for _, tc := range stats.ByType {
		resp.ByType = append(resp.ByType, typeCountResponse{Type: string(tc.Type), Count: tc.Count})
	}
	for _, e := range stats.Recent {
		resp.Recent = append(resp.Recent, toEventResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetTrend は日次件数のトレンド系列を返す。
// GET /api/events/trend
func (h *EventHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	filter, _ := event.BuildFilter(queryParamsFromRequest(r))

	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			days = parsed
		}
	}

	series, err := h.service.Trend(r.Context(), filter, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]dayCountResponse, 0, len(series))
	for _, dc := range series {
		resp = append(resp, dayCountResponse{Date: dc.Date, Count: dc.Count})
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteEvents はフィルタに一致するイベントを一括削除する。
// DELETE /api/events
// limitクエリパラメータは必須。
func (h *EventHandler) DeleteEvents(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("削除件数の上限（limit）は必須です"))
		return
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("limitは整数を指定してください"))
		return
	}

	filter, _ := event.BuildFilter(queryParamsFromRequest(r))

	deleted, err := h.service.DeleteByFilter(r.Context(), filter, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteEventsResponse{Deleted: deleted})
}

// --- ヘルパー関数 ---

// queryParamsFromRequest はクエリ文字列からフィルタ条件を組み立てる。
// 数値パラメータの解析失敗は未指定として扱う（日付の扱いと同じ）。
func queryParamsFromRequest(r *http.Request) event.QueryParams {
	q := r.URL.Query()
	return event.QueryParams{
		ApplicationID: q.Get("applicationId"),
		UserID:        q.Get("userId"),
		EventType:     q.Get("eventType"),
		Search:        q.Get("search"),
		StartDate:     q.Get("startDate"),
		EndDate:       q.Get("endDate"),
		Limit:         parseOptionalInt(q.Get("limit")),
		Page:          parseOptionalInt(q.Get("page")),
		Offset:        parseOptionalInt(q.Get("offset")),
	}
}

// parseOptionalInt は整数文字列を解析する。空または解析不能はnilを返す。
func parseOptionalInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// toEventResponse はmodel.AuthEventDetailからAPIレスポンスに変換する。
func toEventResponse(e model.AuthEventDetail) eventResponse {
	resp := eventResponse{
		ID:            e.ID,
		EventType:     string(e.EventType),
		ApplicationID: e.ApplicationID,
		UserID:        e.UserID,
		CreatedAt:     e.CreatedAt,
		Application:   appRefResponse{ID: e.Application.ID, Name: e.Application.Name},
	}
	if e.User != nil {
		resp.User = &eventUserResponse{
			ID:          e.User.ID,
			AuthUserID:  e.User.AuthUserID,
			FirstName:   e.User.FirstName,
			LastName:    e.User.LastName,
			DisplayName: e.User.DisplayName(),
		}
	}
	return resp
}
