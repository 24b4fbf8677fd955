package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable machine-readable reason strings surfaced to webhook callers.
// Handlers return these verbatim; anything richer stays in internal logs.
const (
	ReasonUnknownRoute           = "Unknown webhook route"
	ReasonChannelNotAvailable    = "Channel not available"
	ReasonProviderMismatch       = "Channel/provider mismatch"
	ReasonSignatureFailed        = "Signature verification failed"
	ReasonTransportNotConfigured = "Transport not configured"
)

const (
	ChannelsErrorBadInput               = "CHANNELS_BAD_INPUT"
	ChannelsErrorUnknownRoute           = "CHANNELS_UNKNOWN_ROUTE"
	ChannelsErrorChannelUnavailable     = "CHANNELS_CHANNEL_UNAVAILABLE"
	ChannelsErrorProviderMismatch       = "CHANNELS_PROVIDER_MISMATCH"
	ChannelsErrorSignatureInvalid       = "CHANNELS_SIGNATURE_INVALID"
	ChannelsErrorTransportNotConfigured = "CHANNELS_TRANSPORT_NOT_CONFIGURED"
	ChannelsErrorDecryptionFailed       = "CHANNELS_DECRYPTION_FAILED"
	ChannelsErrorNotFound               = "CHANNELS_NOT_FOUND"
	ChannelsErrorUnauthorized           = "CHANNELS_UNAUTHORIZED"
	ChannelsErrorConflict               = "CHANNELS_CONFLICT"
	ChannelsErrorRateLimited            = "CHANNELS_RATE_LIMITED"
	ChannelsErrorOperationFailed        = "CHANNELS_OPERATION_FAILED"
	ChannelsErrorInternal               = "CHANNELS_INTERNAL_ERROR"
)

func channelsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureChannelsErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unknown webhook route"):
		return newChannelsError(err.Error(), goerrors.CategoryNotFound, ChannelsErrorUnknownRoute)
	case strings.Contains(msg, "channel not available"), strings.Contains(msg, "channel not found"):
		return newChannelsError(err.Error(), goerrors.CategoryAuthz, ChannelsErrorChannelUnavailable)
	case strings.Contains(msg, "provider mismatch"):
		return newChannelsError(err.Error(), goerrors.CategoryAuthz, ChannelsErrorProviderMismatch)
	case strings.Contains(msg, "signature"), strings.Contains(msg, "verification"):
		return newChannelsError(err.Error(), goerrors.CategoryAuth, ChannelsErrorSignatureInvalid)
	case strings.Contains(msg, "not configured"):
		return newChannelsError(err.Error(), goerrors.CategoryOperation, ChannelsErrorTransportNotConfigured)
	case strings.Contains(msg, "decrypt"):
		return newChannelsError(err.Error(), goerrors.CategoryInternal, ChannelsErrorDecryptionFailed)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newChannelsError(err.Error(), goerrors.CategoryRateLimit, ChannelsErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newChannelsError(err.Error(), goerrors.CategoryBadInput, ChannelsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureChannelsErrorEnvelope(mapped)
}

func newChannelsError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureChannelsErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureChannelsErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = channelsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultChannelsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultChannelsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ChannelsErrorBadInput
	case goerrors.CategoryNotFound:
		return ChannelsErrorNotFound
	case goerrors.CategoryAuth:
		return ChannelsErrorSignatureInvalid
	case goerrors.CategoryAuthz:
		return ChannelsErrorUnauthorized
	case goerrors.CategoryConflict:
		return ChannelsErrorConflict
	case goerrors.CategoryRateLimit:
		return ChannelsErrorRateLimited
	case goerrors.CategoryOperation:
		return ChannelsErrorOperationFailed
	default:
		return ChannelsErrorInternal
	}
}

func channelsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsNotFound reports whether err signals a missing record, either through
// the domain sentinels or a mapped NotFound envelope.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChannelNotFound) || errors.Is(err, ErrSessionNotFound) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}

// ReasonFor extracts the coarse reason string a webhook caller may see.
// Unknown internals collapse to the signature failure reason so nothing
// leaks past the boundary.
func ReasonFor(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, reason := range []string{
		ReasonUnknownRoute,
		ReasonChannelNotAvailable,
		ReasonProviderMismatch,
		ReasonSignatureFailed,
		ReasonTransportNotConfigured,
	} {
		if strings.Contains(msg, reason) {
			return reason
		}
	}
	return ReasonSignatureFailed
}
