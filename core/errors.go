package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorServiceNotFound          = "SERVICE_NOT_FOUND"
	ErrorUnsupportedServiceEngine = "UNSUPPORTED_SERVICE_ENGINE"
	ErrorServiceCallException     = "SERVICE_CALL_EXCEPTION"
	ErrorBadInput                 = "SERVICE_BAD_INPUT"
	ErrorInternal                 = "SERVICE_INTERNAL_ERROR"
)

// Reasons split the shared UNSUPPORTED_SERVICE_ENGINE kind and annotate call
// exceptions without changing the failure kind callers match on.
const (
	ReasonEngineNotRegistered    = "engine_not_registered"
	ReasonPersistenceUnavailable = "persistence_unavailable"
	ReasonBeginFailed            = "begin_failed"
	ReasonCallbackFailed         = "callback_failed"
	ReasonEngineFailed           = "engine_failed"
	ReasonEnginePanicked         = "engine_panicked"
	ReasonCommitFailed           = "commit_failed"
)

func dispatchError(
	message string,
	category goerrors.Category,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(dispatchHTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func dispatchWrapError(
	source error,
	category goerrors.Category,
	message string,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return dispatchError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(dispatchHTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func badInputError(message string, metadata map[string]any) *goerrors.Error {
	return dispatchError(message, goerrors.CategoryBadInput, ErrorBadInput, metadata)
}

func internalError(message string, metadata map[string]any) *goerrors.Error {
	return dispatchError(message, goerrors.CategoryInternal, ErrorInternal, metadata)
}

// ProblemFromError converts an error envelope into a failure Result. The
// reason and service metadata entries are surfaced as top level keys.
func ProblemFromError(err error) Result {
	if err == nil {
		return Success()
	}
	mapped := dispatchErrorMapper(err)
	result := Problem(mapped.TextCode, mapped.Message)
	if mapped.Metadata != nil {
		if reason := stringValue(mapped.Metadata[ResultKeyReason]); reason != "" {
			result[ResultKeyReason] = reason
		}
		if service := stringValue(mapped.Metadata[ResultKeyService]); service != "" {
			result[ResultKeyService] = service
		}
	}
	return result
}

// ErrorFromResult returns nil unless the result failed, in which case the
// envelope carries the failure kind.
func ErrorFromResult(result Result) error {
	if !result.Failed() {
		return nil
	}
	code := result.ErrorCode()
	if code == "" {
		code = ErrorInternal
	}
	message := result.Message()
	if message == "" {
		message = "core: service call failed"
	}
	metadata := map[string]any{}
	if reason := result.Reason(); reason != "" {
		metadata[ResultKeyReason] = reason
	}
	if service := stringValue(result[ResultKeyService]); service != "" {
		metadata[ResultKeyService] = service
	}
	return dispatchError(message, categoryForCode(code), code, metadata)
}

func dispatchErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureDispatchErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "service") && strings.Contains(msg, "not found"):
		return ensureDispatchErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).
			WithTextCode(ErrorServiceNotFound))
	case strings.Contains(msg, "engine") && strings.Contains(msg, "not registered"):
		return ensureDispatchErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryOperation).
			WithTextCode(ErrorUnsupportedServiceEngine))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unknown"):
		return ensureDispatchErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).
			WithTextCode(ErrorBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureDispatchErrorEnvelope(mapped)
}

func ensureDispatchErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = dispatchHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultDispatchTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultDispatchTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorServiceNotFound
	case goerrors.CategoryOperation, goerrors.CategoryExternal:
		return ErrorServiceCallException
	default:
		return ErrorInternal
	}
}

func categoryForCode(code string) goerrors.Category {
	switch code {
	case ErrorServiceNotFound:
		return goerrors.CategoryNotFound
	case ErrorUnsupportedServiceEngine, ErrorServiceCallException:
		return goerrors.CategoryOperation
	case ErrorBadInput:
		return goerrors.CategoryBadInput
	default:
		return goerrors.CategoryInternal
	}
}

func dispatchHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
