package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hitoshi/authlog/internal/event"
	"github.com/hitoshi/authlog/internal/export"
	"github.com/hitoshi/authlog/internal/model"
)

// ExportServiceInterface はエクスポートハンドラーが必要とするサービスインターフェース。
type ExportServiceInterface interface {
	// Export はフィルタに一致するイベントをxlsxバイナリに変換する。
	Export(ctx context.Context, filter model.EventFilter, tmpl export.Template) (*export.Result, error)
}

// ExportHandler はExcelエクスポートのHTTPハンドラー。
type ExportHandler struct {
	service ExportServiceInterface
}

// NewExportHandler はExportHandlerを生成する。
func NewExportHandler(service ExportServiceInterface) *ExportHandler {
	return &ExportHandler{service: service}
}

// ExportEvents はフィルタに一致するイベントをxlsxバイナリで返す。
// GET /api/export/events
// Content-Dispositionに決定的なファイル名、Content-Lengthに正確なバイト長を設定する。
func (h *ExportHandler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	tmpl, err := export.ParseTemplate(r.URL.Query().Get("exportType"))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
		handleServiceError(w, err)
		return
	}

	filter, _ := event.BuildFilter(queryParamsFromRequest(r))

	result, err := h.service.Export(r.Context(), filter, tmpl)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Content)))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Content)
}
