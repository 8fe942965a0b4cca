package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"google.golang.org/api/googleapi"
)

// ErrProvidersExhausted is returned when every provider failed its retry budget.
var ErrProvidersExhausted = errors.New("llm: all providers exhausted")

// Kind is the failure category that drives retry decisions.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindRateLimit
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server"
	default:
		return "other"
	}
}

// Retriable reports whether another attempt may succeed.
func (k Kind) Retriable() bool {
	return k == KindTimeout || k == KindRateLimit || k == KindServer
}

// ProviderError tags an error with its provider and category.
type ProviderError struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm: %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

var bedrockCodes = map[string]Kind{
	"ThrottlingException":           KindRateLimit,
	"TooManyRequestsException":      KindRateLimit,
	"ServiceQuotaExceededException": KindRateLimit,
	"ModelTimeoutException":         KindTimeout,
	"RequestTimeout":                KindTimeout,
	"RequestTimeoutException":       KindTimeout,
	"InternalServerException":       KindServer,
	"ServiceUnavailableException":   KindServer,
	"ModelNotReadyException":        KindServer,
	"ModelErrorException":           KindServer,
}

// Classify maps a provider error to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return kindFromStatus(gerr.Code)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := bedrockCodes[apiErr.ErrorCode()]; ok {
			return kind
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return kindFromStatus(respErr.HTTPStatusCode())
	}

	// The Gemini SDK sometimes surfaces gRPC-style errors only as text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "resource exhausted"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return KindRateLimit
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return KindTimeout
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "internal error"), strings.Contains(msg, "503"), strings.Contains(msg, "500"):
		return KindServer
	}
	return KindOther
}

// IsRetriable reports whether err is worth another attempt on the same provider.
func IsRetriable(err error) bool {
	return Classify(err).Retriable()
}

func kindFromStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindServer
	}
	return KindOther
}
