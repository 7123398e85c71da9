package provider

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/joshuadavidthomas/meteofetch/internal/httpclient"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

var (
	ErrCredentialRejected = errors.New("credential rejected")
	ErrRateLimited        = errors.New("provider rate limited")
	ErrServer             = errors.New("provider server error")
	ErrUnexpectedStatus   = errors.New("unexpected status")
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider   models.ProviderID
	StatusCode int
	Body       string
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v: HTTP %d (%s)", e.Provider, e.kind, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return e.kind }

// Transient reports whether err is the provider's fault rather than the
// request's: transport errors, timeouts, 429 and 5xx. Other 4xx responses
// are not.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return errors.Is(se.kind, ErrServer) || errors.Is(se.kind, ErrRateLimited)
	}
	return true
}

// CheckResponse returns nil for a 2xx response and a *StatusError otherwise.
func CheckResponse(resp *httpclient.Response, id models.ProviderID) error {
	if resp.OK() {
		return nil
	}
	var kind error
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = ErrCredentialRejected
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case resp.StatusCode >= 500:
		kind = ErrServer
	default:
		kind = ErrUnexpectedStatus
	}
	return &StatusError{
		Provider:   id,
		StatusCode: resp.StatusCode,
		Body:       httpclient.SummarizeBody(resp.Body),
		kind:       kind,
	}
}
