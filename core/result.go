package core

import (
	"fmt"
	"strings"
)

const (
	ResultKeyStatus       = "status"
	ResultKeyErrorCode    = "error_code"
	ResultKeyErrorMessage = "error_message"
	ResultKeyReason       = "reason"
	ResultKeyService      = "service"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the normalized key/value map returned by every dispatch.
type Result map[string]any

func Success() Result {
	return Result{ResultKeyStatus: StatusSuccess}
}

func SuccessWith(values map[string]any) Result {
	out := Success()
	for key, value := range values {
		if key == ResultKeyStatus {
			continue
		}
		out[key] = value
	}
	return out
}

func Problem(code string, message string) Result {
	return Result{
		ResultKeyStatus:       StatusError,
		ResultKeyErrorCode:    strings.TrimSpace(code),
		ResultKeyErrorMessage: strings.TrimSpace(message),
	}
}

func (r Result) Status() string {
	if r == nil {
		return ""
	}
	return stringValue(r[ResultKeyStatus])
}

// Failed reports an error status or an error code. Results without a status
// are engine pass-through values and count as successes.
func (r Result) Failed() bool {
	return r.Status() == StatusError || r.ErrorCode() != ""
}

func (r Result) IsSuccess() bool {
	return !r.Failed()
}

func (r Result) ErrorCode() string {
	if r == nil {
		return ""
	}
	return stringValue(r[ResultKeyErrorCode])
}

func (r Result) Message() string {
	if r == nil {
		return ""
	}
	return stringValue(r[ResultKeyErrorMessage])
}

func (r Result) Reason() string {
	if r == nil {
		return ""
	}
	return stringValue(r[ResultKeyReason])
}

func (r Result) Clone() Result {
	if r == nil {
		return nil
	}
	out := make(Result, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}

func (p Params) Clone() Params {
	if len(p) == 0 {
		return Params{}
	}
	out := make(Params, len(p))
	for key, value := range p {
		out[key] = value
	}
	return out
}

func stringValue(value any) string {
	if value == nil {
		return ""
	}
	if typed, ok := value.(string); ok {
		return strings.TrimSpace(typed)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
