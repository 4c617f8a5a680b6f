package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// 升级引擎相关指标
	RemindersSentTotal       metric.Int64Counter
	EscalationsTotal         metric.Int64Counter
	InheritanceTriggersTotal metric.Int64Counter
	TickDuration             metric.Float64Histogram
	TickRecordsScanned       metric.Int64Counter
	CASConflictsTotal        metric.Int64Counter
	DispatchRetriesTotal     metric.Int64Counter

	// HTTP 相关指标
	HTTPServerRequestTotal   metric.Int64Counter
	HTTPServerDuration       metric.Float64Histogram
	HTTPServerActiveRequests metric.Int64UpDownCounter
}

var (
	metrics *OTelMetrics
	meter   = otel.Meter("heritage")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	var err error

	metrics = &OTelMetrics{}

	metrics.RemindersSentTotal, err = meter.Int64Counter(
		"liveness_reminders_sent_total",
		metric.WithDescription("Total number of check-in reminders sent"),
		metric.WithUnit("{reminder}"),
	)
	if err != nil {
		return err
	}

	metrics.EscalationsTotal, err = meter.Int64Counter(
		"liveness_escalations_total",
		metric.WithDescription("Total number of records escalated to beneficiary alert"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return err
	}

	metrics.InheritanceTriggersTotal, err = meter.Int64Counter(
		"liveness_inheritance_triggers_total",
		metric.WithDescription("Total number of inheritance release triggers"),
		metric.WithUnit("{trigger}"),
	)
	if err != nil {
		return err
	}

	metrics.TickDuration, err = meter.Float64Histogram(
		"liveness_tick_duration_seconds",
		metric.WithDescription("Time spent running a scheduler tick in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	metrics.TickRecordsScanned, err = meter.Int64Counter(
		"liveness_tick_records_scanned_total",
		metric.WithDescription("Total number of records scanned by scheduler ticks"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return err
	}

	metrics.CASConflictsTotal, err = meter.Int64Counter(
		"liveness_cas_conflicts_total",
		metric.WithDescription("Total number of optimistic lock conflicts during ticks"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return err
	}

	metrics.DispatchRetriesTotal, err = meter.Int64Counter(
		"liveness_dispatch_retries_total",
		metric.WithDescription("Total number of notification dispatch retry attempts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return err
	}

	metrics.HTTPServerRequestTotal, err = meter.Int64Counter(
		"http_server_request_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	metrics.HTTPServerDuration, err = meter.Float64Histogram(
		"http_server_duration_seconds",
		metric.WithDescription("HTTP request handling duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	metrics.HTTPServerActiveRequests, err = meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// GetMetrics 获取全局指标实例
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordReminderSent 记录提醒短信发送
func RecordReminderSent(offsetDays int) {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.RemindersSentTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Int("offset_days", offsetDays),
	))
}

// RecordEscalation 记录受益人告警
func RecordEscalation() {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.EscalationsTotal.Add(context.Background(), 1)
}

// RecordInheritanceTrigger 记录资产释放触发
func RecordInheritanceTrigger() {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.InheritanceTriggersTotal.Add(context.Background(), 1)
}

// RecordTick 记录一次调度 tick 的耗时与扫描量
func RecordTick(duration float64, scanned int64) {
	m := GetMetrics()
	if m == nil {
		return
	}
	ctx := context.Background()
	m.TickDuration.Record(ctx, duration)
	m.TickRecordsScanned.Add(ctx, scanned)
}

// RecordCASConflict 记录调度 tick 的乐观锁冲突
func RecordCASConflict() {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.CASConflictsTotal.Add(context.Background(), 1)
}

// RecordDispatchRetry 记录投递重试
func RecordDispatchRetry(effectType string) {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.DispatchRetriesTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("effect_type", effectType),
	))
}
