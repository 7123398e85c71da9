package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/joshuadavidthomas/meteofetch/internal/aggregate"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/provider"
	"github.com/joshuadavidthomas/meteofetch/internal/routing"
)

var (
	// ErrChainExhausted means every provider in the chain was tried and failed.
	ErrChainExhausted = errors.New("all providers failed")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("coordinator closed")
)

// Status is the terminal classification of a task.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Attempt is one provider tried by a task and why it did not serve the
// request.
type Attempt struct {
	Provider models.ProviderID `json:"provider"`
	Reason   string            `json:"reason"`
	Err      error             `json:"-"`
}

// ExhaustedError carries the ordered attempt history of a failed chain.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %s", a.Provider, a.Reason)
	}
	return fmt.Sprintf("%v (%s)", ErrChainExhausted, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() error { return ErrChainExhausted }

// Coverage summarises the returned series.
type Coverage struct {
	Start    models.Date `json:"start"`
	End      models.Date `json:"end"`
	Days     int         `json:"days"`
	WithData int         `json:"days_with_data"`
}

// Outcome is the terminal result of one task.
type Outcome struct {
	TaskID  string              `json:"task_id"`
	Request models.FetchRequest `json:"request"`
	Status  Status              `json:"status"`

	// Provider served the data. Requested is the provider the caller or use
	// case asked for; Fallback is set when they differ.
	Provider  models.ProviderID `json:"provider,omitempty"`
	Requested models.ProviderID `json:"requested,omitempty"`
	Fallback  bool              `json:"fallback"`

	Records  []models.DailyRecord `json:"records,omitempty"`
	Coverage *Coverage            `json:"coverage,omitempty"`
	Attempts []Attempt            `json:"attempts"`
	Rejected *routing.Rejection   `json:"rejected,omitempty"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (o Outcome) Succeeded() bool { return o.Status == StatusSucceeded }

func (o Outcome) Cancelled() bool { return o.Status == StatusCancelled }

// AttemptedProviders lists the providers tried, in order.
func (o Outcome) AttemptedProviders() []models.ProviderID {
	ids := make([]models.ProviderID, len(o.Attempts))
	for i, a := range o.Attempts {
		ids[i] = a.Provider
	}
	return ids
}

func (o *Outcome) setErr(err error) {
	o.Err = err
	if err != nil {
		o.Error = err.Error()
	}
}

// reasonFor renders a short, stable failure reason for an attempt.
func reasonFor(err error) string {
	var se *provider.StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Sprintf("HTTP %d: %v", se.StatusCode, errors.Unwrap(se))
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, aggregate.ErrMalformedBody):
		return "malformed response"
	default:
		return err.Error()
	}
}

// requestStatus is the metrics label for one upstream call.
func requestStatus(err error) string {
	var se *provider.StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &se):
		return fmt.Sprintf("http_%d", se.StatusCode)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
