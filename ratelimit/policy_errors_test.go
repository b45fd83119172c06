package ratelimit

import (
	"testing"
	"time"
)

func TestThrottledError_ToServiceError(t *testing.T) {
	err := ThrottledError{Service: " reports.build ", RetryAfter: 3 * time.Second}

	mapped := err.ToServiceError()
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode != ErrorServiceThrottled {
		t.Fatalf("expected %q text code, got %q", ErrorServiceThrottled, mapped.TextCode)
	}
	if mapped.Code != 429 {
		t.Fatalf("expected status code 429, got %d", mapped.Code)
	}
	if mapped.Metadata["service"] != "reports.build" || mapped.Metadata["retry_after_ms"] != int64(3000) {
		t.Fatalf("unexpected metadata %#v", mapped.Metadata)
	}
}
