package gojob

import (
	"strings"
	"time"

	"github.com/goliatone/go-dispatcher/core"
	goerrors "github.com/goliatone/go-errors"
)

// RetryPolicy bounds how often a failed service call is redelivered. Once
// MaxAttempts is reached the call is dead-lettered.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
	}
}

// Backoff doubles BaseDelay per attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Decide maps a failed call on the given attempt to nack options. Failures a
// retry cannot fix skip the budget and go straight to the dead letter queue.
func (p RetryPolicy) Decide(attempt int, result core.Result, err error) core.JobNackOptions {
	opts := core.JobNackOptions{Reason: failureReason(result, err)}
	if !retryable(err) || (p.MaxAttempts > 0 && attempt >= p.MaxAttempts) {
		opts.DeadLetter = true
		return opts
	}
	opts.Requeue = true
	opts.Delay = p.Backoff(attempt)
	return opts
}

func retryable(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return true
	}
	switch rich.TextCode {
	case core.ErrorServiceNotFound, core.ErrorUnsupportedServiceEngine, core.ErrorBadInput:
		return false
	default:
		return true
	}
}

func failureReason(result core.Result, err error) string {
	if reason := result.Reason(); reason != "" {
		return reason
	}
	if code := result.ErrorCode(); code != "" {
		return code
	}
	if err != nil {
		return strings.TrimSpace(err.Error())
	}
	return ""
}
