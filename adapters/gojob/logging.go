package gojob

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// JobLoggers resolves the dispatcher's glog logger (provider > logger > nop)
// and returns the same sink wrapped for go-job workers and queues.
func JobLoggers(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := glog.Resolve(name, provider, logger)
	return job.GoLoggerProvider(resolvedProvider), job.GoLogger(resolvedLogger)
}
