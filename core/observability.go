package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	metricCallTotal    = "dispatcher.run_sync.total"
	metricCallDuration = "dispatcher.run_sync.duration_ms"
)

func (d *Dispatcher) observeCall(
	ctx context.Context,
	startedAt time.Time,
	desc ServiceDescriptor,
	result Result,
) {
	if d == nil {
		return
	}
	duration := time.Since(startedAt)
	status := StatusSuccess
	if result.Failed() {
		status = StatusError
	}

	fields := map[string]any{
		"event_type":  "dispatcher.run_sync",
		"service":     desc.Name,
		"engine":      desc.EngineName,
		"status":      status,
		"transaction": desc.Transactional(),
		"duration_ms": duration.Milliseconds(),
	}
	tags := map[string]string{
		"service": desc.Name,
		"status":  status,
	}
	if engine := strings.TrimSpace(desc.EngineName); engine != "" {
		tags["engine"] = engine
	}
	if code := result.ErrorCode(); code != "" {
		fields["error_code"] = code
		fields["error_message"] = result.Message()
		tags["error_code"] = code
	}
	if reason := result.Reason(); reason != "" {
		fields["reason"] = reason
	}

	d.recordCounter(ctx, metricCallTotal, 1, tags)
	d.recordHistogram(ctx, metricCallDuration, float64(duration.Milliseconds()), tags)

	if status == StatusSuccess {
		d.logWithLevel(ctx, "debug", "dispatcher: service call succeeded", fields)
	} else {
		d.logWithLevel(ctx, "info", "dispatcher: service call failed", fields)
	}

	if d.callRecorder == nil {
		return
	}
	record := CallRecord{
		ID:          uuid.NewString(),
		Service:     desc.Name,
		Engine:      desc.EngineName,
		Status:      status,
		ErrorCode:   result.ErrorCode(),
		Message:     result.Message(),
		Transaction: desc.Transactional(),
		StartedAt:   startedAt,
		Duration:    duration,
	}
	if err := d.callRecorder.RecordCall(ctx, record); err != nil {
		d.logWithLevel(ctx, "warn", "dispatcher: unable to record service call", map[string]any{
			"service": desc.Name,
			"error":   err.Error(),
		})
	}
}

func (d *Dispatcher) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if d == nil || d.logger == nil {
		return
	}
	logger := d.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (d *Dispatcher) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if d == nil || d.metricsRecorder == nil {
		return
	}
	d.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (d *Dispatcher) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if d == nil || d.metricsRecorder == nil {
		return
	}
	d.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
