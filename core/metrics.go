package core

import (
	"context"
	"maps"
)

// NopMetricsRecorder is the default sink for the dispatcher.run_sync.total
// counter and dispatcher.run_sync.duration_ms histogram when no recorder is
// configured.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// cloneTags hands each recorder call its own tag map.
func cloneTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	maps.Copy(out, tags)
	return out
}

var _ MetricsRecorder = NopMetricsRecorder{}
