// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーおよびサービス層から利用する。
type MetricsCollector interface {
	RecordWebhookReceived(eventType string)
	RecordWebhookVerifyFailure(reason string)
	RecordWebhookUnknownType(eventType string)
	RecordEventInserted(eventType string)
	RecordExportRows(count int)
	RecordExportLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	webhookReceived   *prometheus.CounterVec
	webhookVerifyFail *prometheus.CounterVec
	webhookUnknown    *prometheus.CounterVec
	eventsInserted    *prometheus.CounterVec
	exportRows        prometheus.Counter
	exportLatency     prometheus.Histogram
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		webhookReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authlog_webhook_received_total",
			Help: "受信したWebhookイベントの合計数（種別別）",
		}, []string{"event_type"}),
		webhookVerifyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authlog_webhook_verify_fail_total",
			Help: "Webhook検証失敗の合計数（理由別）",
		}, []string{"reason"}),
		webhookUnknown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authlog_webhook_unknown_type_total",
			Help: "未知の種別としてACKしたWebhookの合計数",
		}, []string{"event_type"}),
		eventsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authlog_events_inserted_total",
			Help: "永続化された認証イベントの合計数（種別別）",
		}, []string{"event_type"}),
		exportRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authlog_export_rows_total",
			Help: "Excelエクスポートに書き出された行の合計数",
		}),
		exportLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authlog_export_latency_seconds",
			Help:    "Excelエクスポート処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authlog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.webhookReceived,
		c.webhookVerifyFail,
		c.webhookUnknown,
		c.eventsInserted,
		c.exportRows,
		c.exportLatency,
		c.httpStatus,
	)

	return c
}

// RecordWebhookReceived はWebhook受信を記録する。
func (c *Collector) RecordWebhookReceived(eventType string) {
	c.webhookReceived.WithLabelValues(eventType).Inc()
}

// RecordWebhookVerifyFailure はWebhook検証失敗を記録する。
// reasonはmissing_secret、missing_headers、invalid_signatureのいずれか。
func (c *Collector) RecordWebhookVerifyFailure(reason string) {
	c.webhookVerifyFail.WithLabelValues(reason).Inc()
}

// RecordWebhookUnknownType は未知種別のWebhook ACKを記録する。
func (c *Collector) RecordWebhookUnknownType(eventType string) {
	c.webhookUnknown.WithLabelValues(eventType).Inc()
}

// RecordEventInserted はイベント永続化を記録する。
func (c *Collector) RecordEventInserted(eventType string) {
	c.eventsInserted.WithLabelValues(eventType).Inc()
}

// RecordExportRows はエクスポート行数を記録する。
func (c *Collector) RecordExportRows(count int) {
	c.exportRows.Add(float64(count))
}

// RecordExportLatency はエクスポートのレイテンシを記録する。
func (c *Collector) RecordExportLatency(duration time.Duration) {
	c.exportLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
